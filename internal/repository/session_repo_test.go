package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/repository"
	"github.com/timmy/sitequeue/internal/repository/repotest"
)

func TestSiteSessionRepository_ApplyResultOnce(t *testing.T) {
	repo := repository.NewSiteSessionRepository(repotest.NewDB(t))
	ctx := context.Background()

	calls := 0
	apply := func(c *domain.SessionContent) error {
		calls++
		c.Hero = &domain.HeroBlock{Headline: "Hello"}
		return nil
	}

	changed, err := repo.ApplyResult(ctx, "sess-1", "cust-1", "r1", apply, baseTime)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.ApplyResult(ctx, "sess-1", "cust-1", "r1", apply, baseTime)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, calls)

	session, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StringArray{"r1"}, session.AppliedRequests)
	assert.Equal(t, "cust-1", session.CustomerID)

	content, err := repository.DecodeContent(session)
	require.NoError(t, err)
	require.NotNil(t, content.Hero)
	assert.Equal(t, "Hello", content.Hero.Headline)
}

func TestSiteSessionRepository_ApplyResultKeepsOtherSections(t *testing.T) {
	repo := repository.NewSiteSessionRepository(repotest.NewDB(t))
	ctx := context.Background()

	_, err := repo.ApplyResult(ctx, "sess-1", "cust-1", "r1", func(c *domain.SessionContent) error {
		c.About = &domain.AboutBlock{Content: "Since 1990"}
		return nil
	}, baseTime)
	require.NoError(t, err)

	_, err = repo.ApplyResult(ctx, "sess-1", "cust-1", "r2", func(c *domain.SessionContent) error {
		c.FAQs = []domain.FAQItem{{Question: "Q", Answer: "A"}}
		return nil
	}, baseTime)
	require.NoError(t, err)

	session, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	content, err := repository.DecodeContent(session)
	require.NoError(t, err)
	assert.Equal(t, "Since 1990", content.About.Content)
	assert.Len(t, content.FAQs, 1)
	assert.Equal(t, domain.StringArray{"r1", "r2"}, session.AppliedRequests)
}

func TestSiteSessionRepository_ApplyErrorRollsBack(t *testing.T) {
	repo := repository.NewSiteSessionRepository(repotest.NewDB(t))
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := repo.ApplyResult(ctx, "sess-1", "cust-1", "r1", func(*domain.SessionContent) error { return boom }, baseTime)
	assert.ErrorIs(t, err, boom)

	_, err = repo.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSiteSessionRepository_ApplyResultRejectsOtherCustomer(t *testing.T) {
	repo := repository.NewSiteSessionRepository(repotest.NewDB(t))
	ctx := context.Background()

	hero := func(c *domain.SessionContent) error {
		c.Hero = &domain.HeroBlock{Headline: "Owner headline"}
		return nil
	}
	_, err := repo.ApplyResult(ctx, "sess-1", "cust-1", "r1", hero, baseTime)
	require.NoError(t, err)

	changed, err := repo.ApplyResult(ctx, "sess-1", "cust-2", "r2", func(c *domain.SessionContent) error {
		c.Hero = &domain.HeroBlock{Headline: "Intruder"}
		return nil
	}, baseTime)
	assert.False(t, changed)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	var ownerErr *domain.SessionOwnerError
	require.ErrorAs(t, err, &ownerErr)
	assert.Equal(t, "cust-1", ownerErr.OwnerID)

	session, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StringArray{"r1"}, session.AppliedRequests)
	content, err := repository.DecodeContent(session)
	require.NoError(t, err)
	assert.Equal(t, "Owner headline", content.Hero.Headline)
}
