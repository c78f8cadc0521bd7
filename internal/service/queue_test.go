package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/repository"
)

func TestQueueService_SubmitPending(t *testing.T) {
	env := newTestEnv(t)

	raw := `{"siteName":"Acme", "businessType": "consulting"}`
	req, err := env.queue.Submit(env.ctx, SubmitInput{
		RequestType: "services",
		RequestData: domain.Document(raw),
		CustomerID:  "cust-1",
	})
	require.NoError(t, err)

	got := env.get(t, req.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.RequestTypeServices, got.RequestType)
	assert.Len(t, got.History, 1)
	assert.Equal(t, raw, string(got.RequestData), "request data is stored byte-for-byte")
	assert.True(t, got.ExpiresAt.Equal(t0.Add(testTTL)))
	assert.Equal(t, estimatedCosts[domain.RequestTypeServices], got.EstimatedCost)
	assert.Nil(t, got.AssignedAdminID)
	requireHistoryInvariants(t, got)
}

func TestQueueService_SubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	negative := -1.0

	tests := []struct {
		name string
		in   SubmitInput
	}{
		{"missing type", SubmitInput{CustomerID: "c"}},
		{"unknown type", SubmitInput{RequestType: "BLOG", CustomerID: "c"}},
		{"missing customer", SubmitInput{RequestType: "HERO"}},
		{"data not an object", SubmitInput{RequestType: "HERO", CustomerID: "c", RequestData: domain.Document(`"text"`)}},
		{"negative cost", SubmitInput{RequestType: "HERO", CustomerID: "c", EstimatedCost: &negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.queue.Submit(env.ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestQueueService_AssignTwice(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeHero, "")

	assigned, err := env.queue.Assign(env.ctx, req.ID, "admin-a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, assigned.Status)
	assert.Equal(t, "admin-a", assigned.HolderID())
	require.NotNil(t, assigned.AssignedAt)

	_, err = env.queue.Assign(env.ctx, req.ID, "admin-b")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, "admin-a", env.get(t, req.ID).HolderID())
}

func TestQueueService_AssignValidation(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeHero, "")

	_, err := env.queue.Assign(env.ctx, req.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.queue.Assign(env.ctx, req.ID, domain.ActorSystem)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.queue.Assign(env.ctx, "missing", "admin-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueService_ConcurrentAssignHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeFAQ, "")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.queue.Assign(env.ctx, req.ID, fmt.Sprintf("admin-%d", i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	}
	assert.Equal(t, 1, wins)

	got := env.get(t, req.ID)
	assert.Len(t, got.History, 2)
	requireHistoryInvariants(t, got)
}

func TestQueueService_ListForOperator(t *testing.T) {
	env := newTestEnv(t)

	first := env.submit(t, domain.RequestTypeHero, "")
	env.clock.Advance(time.Second)
	second := env.submit(t, domain.RequestTypeFAQ, "")
	env.clock.Advance(time.Second)
	mine := env.submit(t, domain.RequestTypeSEO, "")
	_, err := env.queue.Assign(env.ctx, mine.ID, "admin-a")
	require.NoError(t, err)

	page, err := env.queue.ListForOperator(env.ctx, "admin-a", ViewUnassigned, repository.ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, first.ID, page.Items[0].ID, "oldest pending first")
	assert.Equal(t, second.ID, page.Items[1].ID)
	assert.Equal(t, repository.DefaultListLimit, page.Limit)

	page, err = env.queue.ListForOperator(env.ctx, "admin-a", ViewMine, repository.ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine.ID, page.Items[0].ID)

	page, err = env.queue.ListForOperator(env.ctx, "admin-b", ViewMine, repository.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)

	page, err = env.queue.ListForOperator(env.ctx, "admin-a", ViewAll, repository.ListFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, repository.MaxListLimit, page.Limit)
}

func TestQueueService_Stats(t *testing.T) {
	env := newTestEnv(t)
	env.submit(t, domain.RequestTypeHero, "")
	req := env.processing(t, domain.RequestTypeHero, "", "admin-a")
	_, err := env.completion.Complete(env.ctx, req.ID, "admin-a", CompleteInput{GeneratedContent: domain.Document(heroContent)})
	require.NoError(t, err)

	stats, err := env.queue.Stats(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Open)
	assert.Equal(t, int64(1), stats.ByStatus[domain.StatusPending])
	assert.Equal(t, int64(1), stats.ByStatus[domain.StatusCompleted])
}

func TestQueueService_Resubmit(t *testing.T) {
	env := newTestEnv(t)
	req := env.processing(t, domain.RequestTypeAbout, "sess-1", "admin-a")
	_, err := env.workflow.Fail(env.ctx, req.ID, "admin-a", "brief too thin")
	require.NoError(t, err)

	child, err := env.queue.Resubmit(env.ctx, req.ID, "admin-b")
	require.NoError(t, err)

	got := env.get(t, child.ID)
	assert.NotEqual(t, req.ID, got.ID)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, req.ID, *got.ParentID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, string(req.RequestData), string(got.RequestData))
	assert.Equal(t, "sess-1", got.WizardSessionID)
	requireHistoryInvariants(t, got)
	assert.Contains(t, got.History[0].Note, "admin-b")

	// parent is untouched
	assert.Equal(t, domain.StatusFailed, env.get(t, req.ID).Status)
}

func TestQueueService_ResubmitOpenRequest(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeHero, "")

	_, err := env.queue.Resubmit(env.ctx, req.ID, "admin-a")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
