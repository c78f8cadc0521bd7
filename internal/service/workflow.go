package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/metrics"
	"github.com/timmy/sitequeue/internal/repository"
)

// RequestStore is the persistence the queue services need.
type RequestStore interface {
	Create(ctx context.Context, req *domain.AIRequest) error
	GetByID(ctx context.Context, id string) (*domain.AIRequest, error)
	List(ctx context.Context, filter repository.ListFilter) ([]domain.AIRequest, int64, error)
	Update(ctx context.Context, id string, pre repository.Precondition, patch repository.Patch, entry domain.HistoryEntry) (*domain.AIRequest, error)
	ListSweepCandidates(ctx context.Context, now, staleBefore time.Time, limit int) ([]domain.AIRequest, error)
	CountByStatus(ctx context.Context) (map[domain.RequestStatus]int64, error)
}

// Clock returns the current time. Services store UTC.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// WorkflowService applies status transitions to stored requests.
// Every transition is a conditional update on (status, version), so concurrent
// callers racing for the same edge see exactly one winner.
type WorkflowService struct {
	store  RequestStore
	logger *logger.Logger
	now    Clock
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(store RequestStore, log *logger.Logger) *WorkflowService {
	return &WorkflowService{
		store:  store,
		logger: log,
		now:    utcNow,
	}
}

// SetClock replaces the time source.
func (s *WorkflowService) SetClock(now Clock) {
	s.now = now
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *WorkflowService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// step is one requested transition. fill adds transition-specific columns.
type step struct {
	to    domain.RequestStatus
	actor string
	note  string
	fill  func(req *domain.AIRequest, patch *repository.Patch, now time.Time)
}

func (s *WorkflowService) transition(ctx context.Context, id string, st step) (*domain.AIRequest, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transitionFrom(ctx, req, st)
}

// transitionFrom moves req along st using req's status and version as the precondition.
func (s *WorkflowService) transitionFrom(ctx context.Context, req *domain.AIRequest, st step) (*domain.AIRequest, error) {
	if err := domain.CheckTransition(req, st.to, st.actor); err != nil {
		return nil, err
	}

	now := s.now()
	patch := repository.Patch{Status: st.to, UpdatedAt: now}
	switch st.to {
	case domain.StatusAssigned:
		holder := st.actor
		patch.AssignedAdminID = &holder
		patch.AssignedAt = &now
	case domain.StatusFailed:
		patch.ClearAssignment = true
		patch.IncrementRetry = true
	case domain.StatusPending, domain.StatusCompleted, domain.StatusRejected:
		patch.ClearAssignment = true
	}
	if st.fill != nil {
		st.fill(req, &patch, now)
	}

	entry := domain.HistoryEntry{
		Status:    st.to,
		Actor:     st.actor,
		Note:      st.note,
		CreatedAt: now,
	}
	pre := repository.Precondition{Status: req.Status, Version: req.Version}

	updated, err := s.store.Update(ctx, req.ID, pre, patch, entry)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			metrics.TransitionConflicts.WithLabelValues(string(st.to)).Inc()
			return nil, s.explainConflict(ctx, req, st, err)
		}
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(req.Status), string(st.to), metrics.ActorKind(st.actor, domain.ActorSystem)).Inc()
	logger.ForRequest(req.ID).With(logger.Fields{
		logger.FieldAdminID: st.actor,
	}).WithTransition(string(req.Status), string(st.to)).Info(ctx, "Request transitioned")

	return updated, nil
}

// explainConflict re-reads a request whose conditional update lost a race.
// When the status moved, the caller gets the transition error the fresh state
// produces; otherwise the original conflict stands.
func (s *WorkflowService) explainConflict(ctx context.Context, req *domain.AIRequest, st step, cause error) error {
	fresh, err := s.store.GetByID(ctx, req.ID)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to re-read request after conflict")
		return cause
	}
	if fresh.Status != req.Status {
		if err := domain.CheckTransition(fresh, st.to, st.actor); err != nil {
			return err
		}
	}
	return cause
}

// Start moves an assigned request into processing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: request ID.
//   - adminID: operator holding the request.
// Returns:
//   - *domain.AIRequest: updated request.
//   - error: *domain.InvalidTransitionError or *domain.NotAuthorizedError on guard failure.
func (s *WorkflowService) Start(ctx context.Context, id, adminID string) (*domain.AIRequest, error) {
	if err := requireOperator(adminID); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, step{to: domain.StatusProcessing, actor: adminID})
}

// Release hands an assigned request back to the queue.
// The expiry window is left as it was.
func (s *WorkflowService) Release(ctx context.Context, id, adminID, note string) (*domain.AIRequest, error) {
	if err := requireOperator(adminID); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, step{to: domain.StatusPending, actor: adminID, note: note})
}

// Fail marks an assigned or processing request as failed.
// Any operator may fail a request; reason becomes the error message.
func (s *WorkflowService) Fail(ctx context.Context, id, adminID, reason string) (*domain.AIRequest, error) {
	if err := requireOperator(adminID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}
	return s.transition(ctx, id, step{
		to:    domain.StatusFailed,
		actor: adminID,
		note:  reason,
		fill: func(_ *domain.AIRequest, p *repository.Patch, _ time.Time) {
			p.ErrorMessage = &reason
		},
	})
}

// requireOperator rejects missing or reserved operator ids.
func requireOperator(adminID string) error {
	if strings.TrimSpace(adminID) == "" {
		return domain.NewValidationError("admin_id", "is required")
	}
	if adminID == domain.ActorSystem {
		return domain.NewValidationError("admin_id", "%q is reserved", domain.ActorSystem)
	}
	return nil
}
