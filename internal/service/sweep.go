package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/metrics"
	"github.com/timmy/sitequeue/internal/repository"
)

const expiredMessage = "expired"

// Sweeper expires abandoned pending requests and releases stale assignments.
// It acts as domain.ActorSystem and goes through the same conditional updates
// as operators, so it never overwrites a fresh assignment.
type Sweeper struct {
	store      RequestStore
	workflow   *WorkflowService
	logger     *logger.Logger
	ttl        time.Duration
	staleAfter time.Duration
	batchSize  int
	schedule   string
	now        Clock
}

// SweepConfig holds configuration for the sweeper
type SweepConfig struct {
	RequestTTL time.Duration
	StaleAfter time.Duration
	BatchSize  int
	Schedule   string
}

// NewSweeper creates a new sweeper
func NewSweeper(store RequestStore, workflow *WorkflowService, log *logger.Logger, cfg *SweepConfig) *Sweeper {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 200
	}
	return &Sweeper{
		store:      store,
		workflow:   workflow,
		logger:     log,
		ttl:        cfg.RequestTTL,
		staleAfter: cfg.StaleAfter,
		batchSize:  batch,
		schedule:   cfg.Schedule,
		now:        utcNow,
	}
}

// SetClock replaces the time source.
func (s *Sweeper) SetClock(now Clock) {
	s.now = now
}

// SweepStats holds statistics for one sweep run
type SweepStats struct {
	Scanned   int       `json:"scanned"`
	Expired   int       `json:"expired"`
	Released  int       `json:"released"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// RunOnce sweeps every candidate as of now. Per-record failures are logged and
// counted; only a failure to list candidates aborts the run. A second run with
// no activity in between changes nothing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *SweepStats: what the run did.
//   - error: non-nil if candidates could not be listed.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepStats, error) {
	ctx = logger.SetComponent(ctx, "sweep")
	now := s.now()
	stats := &SweepStats{StartTime: now}
	started := time.Now()

	for {
		candidates, err := s.store.ListSweepCandidates(ctx, now, now.Add(-s.staleAfter), s.batchSize)
		if err != nil {
			metrics.SweepRuns.WithLabelValues("error").Inc()
			return stats, fmt.Errorf("sweep: %w", err)
		}

		changed := 0
		for i := range candidates {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Scanned++
			if s.sweepOne(ctx, &candidates[i], now, stats) {
				changed++
			}
		}

		// skipped and failed rows stay candidates; stop rather than re-read them forever
		if len(candidates) < s.batchSize || changed == 0 {
			break
		}
	}

	stats.EndTime = s.now()
	metrics.SweepRuns.WithLabelValues("success").Inc()
	metrics.SweepDuration.Observe(time.Since(started).Seconds())

	entry := logger.With(logger.Fields{
		"expired":  stats.Expired,
		"released": stats.Released,
		"skipped":  stats.Skipped,
		"errors":   stats.Errors,
	}).WithCount(stats.Scanned).WithDuration(time.Since(started).Milliseconds())
	if stats.Expired+stats.Released+stats.Errors > 0 {
		entry.Info(ctx, "Sweep completed")
	} else {
		entry.Debug(ctx, "Sweep completed")
	}
	return stats, nil
}

// sweepOne applies the expiry policy to one request and reports whether it changed.
func (s *Sweeper) sweepOne(ctx context.Context, req *domain.AIRequest, now time.Time, stats *SweepStats) bool {
	var st step
	switch {
	case req.Status == domain.StatusPending && now.After(req.ExpiresAt):
		msg := expiredMessage
		st = step{
			to:    domain.StatusFailed,
			actor: domain.ActorSystem,
			note:  expiredMessage,
			fill: func(_ *domain.AIRequest, p *repository.Patch, _ time.Time) {
				p.ErrorMessage = &msg
			},
		}
	case req.Status == domain.StatusAssigned && now.After(req.ExpiresAt) && s.isStale(req, now):
		renewed := now.Add(s.ttl)
		st = step{
			to:    domain.StatusPending,
			actor: domain.ActorSystem,
			note:  "assignment stale, released by sweep",
			fill: func(_ *domain.AIRequest, p *repository.Patch, _ time.Time) {
				p.ExpiresAt = &renewed
			},
		}
	default:
		stats.Skipped++
		return false
	}

	_, err := s.workflow.transitionFrom(ctx, req, st)
	switch {
	case err == nil:
		if st.to == domain.StatusFailed {
			stats.Expired++
			metrics.SweepActions.WithLabelValues("expired").Inc()
		} else {
			stats.Released++
			metrics.SweepActions.WithLabelValues("released").Inc()
		}
		return true
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		// an operator acted on it since it was listed
		stats.Skipped++
	default:
		stats.Errors++
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldAIRequestID, req.ID).Warn("Sweep failed for request")
	}
	return false
}

func (s *Sweeper) isStale(req *domain.AIRequest, now time.Time) bool {
	if req.AssignedAt == nil {
		return true
	}
	return now.Sub(*req.AssignedAt) > s.staleAfter
}

// Start schedules RunOnce on the configured cron schedule until ctx is done.
// Overlapping runs are skipped.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.PrintfLogger(s.logger)),
	))

	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.logger.WithField("schedule", s.schedule).Info("Expiry sweep scheduled")

	go func() {
		<-ctx.Done()
		s.logger.Info("Stopping expiry sweep...")
		<-c.Stop().Done()
	}()
	return nil
}
