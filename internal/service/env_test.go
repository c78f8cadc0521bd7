package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/repository"
	"github.com/timmy/sitequeue/internal/repository/repotest"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const testTTL = 24 * time.Hour

// fakeClock is a settable Clock shared by every service under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	ctx        context.Context
	clock      *fakeClock
	requests   *repository.AIRequestRepository
	sessions   *repository.SiteSessionRepository
	workflow   *WorkflowService
	queue      *QueueService
	completion *CompletionService
	polling    *PollingService
	sweeper    *Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := repotest.NewDB(t)
	log := logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard})
	clock := &fakeClock{now: t0}

	requests := repository.NewAIRequestRepository(db)
	sessions := repository.NewSiteSessionRepository(db)

	workflow := NewWorkflowService(requests, log)
	workflow.SetClock(clock.Now)
	queue := NewQueueService(requests, workflow, log, &QueueConfig{RequestTTL: testTTL})
	queue.SetClock(clock.Now)
	polling := NewPollingService(requests, sessions, log, &PollingConfig{
		Interval:    5 * time.Millisecond,
		MaxDuration: time.Second,
	})
	polling.SetClock(clock.Now)
	sweeper := NewSweeper(requests, workflow, log, &SweepConfig{
		RequestTTL: testTTL,
		StaleAfter: 2 * time.Hour,
		BatchSize:  2,
		Schedule:   "@every 1m",
	})
	sweeper.SetClock(clock.Now)

	return &testEnv{
		ctx:        context.Background(),
		clock:      clock,
		requests:   requests,
		sessions:   sessions,
		workflow:   workflow,
		queue:      queue,
		completion: NewCompletionService(requests, workflow),
		polling:    polling,
		sweeper:    sweeper,
	}
}

func (e *testEnv) submit(t *testing.T, rt domain.RequestType, sessionID string) *domain.AIRequest {
	t.Helper()
	req, err := e.queue.Submit(e.ctx, SubmitInput{
		RequestType:     string(rt),
		BusinessType:    "salon",
		RequestData:     domain.Document(`{"siteName":"Bella Hair","services":["cuts","color"]}`),
		CustomerID:      "cust-1",
		WizardSessionID: sessionID,
	})
	require.NoError(t, err)
	return req
}

// processing submits a request and takes it to processing for adminID.
func (e *testEnv) processing(t *testing.T, rt domain.RequestType, sessionID, adminID string) *domain.AIRequest {
	t.Helper()
	req := e.submit(t, rt, sessionID)
	_, err := e.queue.Assign(e.ctx, req.ID, adminID)
	require.NoError(t, err)
	req, err = e.workflow.Start(e.ctx, req.ID, adminID)
	require.NoError(t, err)
	return req
}

func (e *testEnv) get(t *testing.T, id string) *domain.AIRequest {
	t.Helper()
	req, err := e.requests.GetByID(e.ctx, id)
	require.NoError(t, err)
	return req
}

// requireHistoryInvariants checks seq order, the system-authored first entry
// and that the last entry matches the current status.
func requireHistoryInvariants(t *testing.T, req *domain.AIRequest) {
	t.Helper()
	require.NotEmpty(t, req.History)
	require.Equal(t, domain.StatusPending, req.History[0].Status)
	require.Equal(t, domain.ActorSystem, req.History[0].Actor)
	for i, h := range req.History {
		require.Equal(t, i+1, h.Seq)
		if i > 0 {
			require.False(t, h.CreatedAt.Before(req.History[i-1].CreatedAt))
		}
	}
	last, _ := req.LastHistory()
	require.Equal(t, req.Status, last.Status)
	require.Equal(t, int64(len(req.History)), req.Version)
}

const heroContent = `{"hero":{"headline":"Fresh cuts, friendly faces","subheadline":"Walk-ins welcome","cta_text":"Book now"}}`
