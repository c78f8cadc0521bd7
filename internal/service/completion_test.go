package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sitequeue/internal/domain"
)

func TestCompletionService_Complete(t *testing.T) {
	env := newTestEnv(t)
	req := env.processing(t, domain.RequestTypeServices, "", "admin-a")

	content := `{"services": [{"name":"Consulting","description":"Strategy sessions for small firms."}]}`
	cost := 2.75
	env.clock.Advance(10 * time.Minute)
	done, err := env.completion.Complete(env.ctx, req.ID, "admin-a", CompleteInput{
		GeneratedContent: domain.Document(content),
		ActualCost:       &cost,
		AdminNotes:       "edited tone",
	})
	require.NoError(t, err)

	got := env.get(t, done.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(t0.Add(10*time.Minute)))
	assert.Equal(t, content, string(got.GeneratedContent))
	require.NotNil(t, got.ActualCost)
	assert.Equal(t, 2.75, *got.ActualCost)
	assert.Equal(t, "edited tone", got.AdminNotes)
	assert.Nil(t, got.AssignedAdminID)

	require.Len(t, got.History, 4)
	statuses := []domain.RequestStatus{}
	for _, h := range got.History {
		statuses = append(statuses, h.Status)
	}
	assert.Equal(t, []domain.RequestStatus{
		domain.StatusPending, domain.StatusAssigned, domain.StatusProcessing, domain.StatusCompleted,
	}, statuses)
	assert.Equal(t, "admin-a", got.History[3].Actor)
	requireHistoryInvariants(t, got)
}

func TestCompletionService_CompleteDefaultsCostToEstimate(t *testing.T) {
	env := newTestEnv(t)
	req := env.processing(t, domain.RequestTypeHero, "", "admin-a")

	done, err := env.completion.Complete(env.ctx, req.ID, "admin-a", CompleteInput{GeneratedContent: domain.Document(heroContent)})
	require.NoError(t, err)
	require.NotNil(t, done.ActualCost)
	assert.Equal(t, req.EstimatedCost, *done.ActualCost)
}

func TestCompletionService_CompleteByOtherOperator(t *testing.T) {
	env := newTestEnv(t)
	req := env.processing(t, domain.RequestTypeHero, "", "admin-a")

	// authorization is checked before content
	_, err := env.completion.Complete(env.ctx, req.ID, "admin-b", CompleteInput{GeneratedContent: domain.Document(`{}`)})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	got := env.get(t, req.ID)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestCompletionService_CompleteValidation(t *testing.T) {
	env := newTestEnv(t)
	req := env.processing(t, domain.RequestTypeFAQ, "", "admin-a")

	tests := []struct {
		name string
		in   CompleteInput
	}{
		{"missing content", CompleteInput{}},
		{"wrong section", CompleteInput{GeneratedContent: domain.Document(heroContent)}},
		{"incomplete item", CompleteInput{GeneratedContent: domain.Document(`{"faqs":[{"question":"Open?"}]}`)}},
		{"negative cost", CompleteInput{GeneratedContent: domain.Document(`{"faqs":[{"question":"Q","answer":"A"}]}`), ActualCost: func() *float64 { v := -2.0; return &v }()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.completion.Complete(env.ctx, req.ID, "admin-a", tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	got := env.get(t, req.ID)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Empty(t, got.GeneratedContent)
}

func TestCompletionService_CompleteAssignedRequest(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeHero, "")
	_, err := env.queue.Assign(env.ctx, req.ID, "admin-a")
	require.NoError(t, err)

	_, err = env.completion.Complete(env.ctx, req.ID, "admin-a", CompleteInput{GeneratedContent: domain.Document(heroContent)})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCompletionService_Reject(t *testing.T) {
	env := newTestEnv(t)
	req := env.processing(t, domain.RequestTypeAbout, "", "admin-a")

	_, err := env.completion.Reject(env.ctx, req.ID, "admin-a", "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.completion.Reject(env.ctx, req.ID, "admin-b", "nope", "")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	rejected, err := env.completion.Reject(env.ctx, req.ID, "admin-a", "Brief contains no business details", "asked support to follow up")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "Brief contains no business details", rejected.ErrorMessage)
	assert.Equal(t, "asked support to follow up", rejected.AdminNotes)
	assert.Nil(t, rejected.CompletedAt)
	assert.Empty(t, rejected.GeneratedContent)
	assert.Equal(t, 0, rejected.RetryCount)
	requireHistoryInvariants(t, rejected)
}
