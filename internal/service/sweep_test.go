package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/sitequeue/internal/domain"
)

func TestSweeper_ExpiresAbandonedPending(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeServices, "")
	assert.True(t, req.ExpiresAt.Equal(req.CreatedAt.Add(24*time.Hour)))

	env.clock.Advance(25 * time.Hour)
	stats, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expired)

	got := env.get(t, req.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "expired", got.ErrorMessage)
	last, _ := got.LastHistory()
	assert.Equal(t, domain.ActorSystem, last.Actor)
	requireHistoryInvariants(t, got)
}

func TestSweeper_LeavesUnexpiredAlone(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeHero, "")

	env.clock.Advance(23 * time.Hour)
	stats, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)
	assert.Equal(t, domain.StatusPending, env.get(t, req.ID).Status)
}

func TestSweeper_ReleasesStaleAssignment(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeHero, "")
	_, err := env.queue.Assign(env.ctx, req.ID, "admin-a")
	require.NoError(t, err)

	env.clock.Advance(25 * time.Hour)
	stats, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Released)

	got := env.get(t, req.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.AssignedAdminID)
	assert.True(t, got.ExpiresAt.Equal(env.clock.Now().Add(testTTL)), "released requests get a fresh window")
	requireHistoryInvariants(t, got)
}

func TestSweeper_KeepsFreshAssignment(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeHero, "")

	env.clock.Advance(23*time.Hour + 30*time.Minute)
	_, err := env.queue.Assign(env.ctx, req.ID, "admin-a")
	require.NoError(t, err)

	// expired, but claimed only an hour ago
	env.clock.Advance(time.Hour)
	stats, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Released)

	got := env.get(t, req.ID)
	assert.Equal(t, domain.StatusAssigned, got.Status)
	assert.Equal(t, "admin-a", got.HolderID())
}

func TestSweeper_NeverTouchesProcessing(t *testing.T) {
	env := newTestEnv(t)
	req := env.processing(t, domain.RequestTypeHero, "", "admin-a")

	env.clock.Advance(72 * time.Hour)
	_, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, env.get(t, req.ID).Status)
}

func TestSweeper_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ids := make([]string, 0, 5)
	for i := 0; i < 4; i++ {
		ids = append(ids, env.submit(t, domain.RequestTypeFAQ, "").ID)
	}
	held := env.submit(t, domain.RequestTypeHero, "")
	_, err := env.queue.Assign(env.ctx, held.ID, "admin-a")
	require.NoError(t, err)
	ids = append(ids, held.ID)

	env.clock.Advance(25 * time.Hour)
	first, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Expired, "batches of two cover every candidate")
	assert.Equal(t, 1, first.Released)

	snapshot := map[string]*domain.AIRequest{}
	for _, id := range ids {
		snapshot[id] = env.get(t, id)
	}

	second, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Expired)
	assert.Zero(t, second.Released)

	for _, id := range ids {
		got := env.get(t, id)
		assert.Equal(t, snapshot[id].Version, got.Version)
		assert.Len(t, got.History, len(snapshot[id].History))
		assert.Equal(t, snapshot[id].Status, got.Status)
	}
}

func TestSweeper_LosesRaceToOperator(t *testing.T) {
	env := newTestEnv(t)
	req := env.submit(t, domain.RequestTypeHero, "")
	env.clock.Advance(25 * time.Hour)

	// the sweep listed the request, then an operator claimed it
	stale := env.get(t, req.ID)
	_, err := env.queue.Assign(env.ctx, req.ID, "admin-a")
	require.NoError(t, err)

	stats := &SweepStats{}
	changed := env.sweeper.sweepOne(env.ctx, stale, env.clock.Now(), stats)
	assert.False(t, changed)
	assert.Equal(t, 1, stats.Skipped)

	got := env.get(t, req.ID)
	assert.Equal(t, domain.StatusAssigned, got.Status)
	assert.Equal(t, "admin-a", got.HolderID())
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	env := newTestEnv(t)
	env.sweeper.schedule = "every now and then"

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()
	assert.Error(t, env.sweeper.Start(ctx))
}

func TestSweeper_StartAndStop(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(env.ctx)
	require.NoError(t, env.sweeper.Start(ctx))
	cancel()
}
