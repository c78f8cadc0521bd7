package service

import (
	"context"
	"strings"
	"time"

	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/metrics"
	"github.com/timmy/sitequeue/internal/repository"
)

// CompletionService records operator results for processing requests.
type CompletionService struct {
	store    RequestStore
	workflow *WorkflowService
}

// NewCompletionService creates a new completion service
func NewCompletionService(store RequestStore, workflow *WorkflowService) *CompletionService {
	return &CompletionService{store: store, workflow: workflow}
}

// CompleteInput is the operator's result for a request.
type CompleteInput struct {
	GeneratedContent domain.Document `json:"generated_content"`
	ActualCost       *float64        `json:"actual_cost"`
	AdminNotes       string          `json:"admin_notes"`
}

// Complete validates content against the request type and moves the request to completed.
// The content is stored byte-for-byte; when no cost is given the estimate is kept as actual cost.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: request ID.
//   - adminID: operator holding the request.
//   - in: generated content, cost and notes.
// Returns:
//   - *domain.AIRequest: completed request.
//   - error: *domain.ValidationError for malformed content, or a transition error.
func (s *CompletionService) Complete(ctx context.Context, id, adminID string, in CompleteInput) (*domain.AIRequest, error) {
	if err := requireOperator(adminID); err != nil {
		return nil, err
	}
	if in.ActualCost != nil && *in.ActualCost < 0 {
		return nil, domain.NewValidationError("actual_cost", "must not be negative")
	}

	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckTransition(req, domain.StatusCompleted, adminID); err != nil {
		return nil, err
	}
	if err := domain.ValidateContent(req.RequestType, in.GeneratedContent); err != nil {
		return nil, err
	}

	content := append(domain.Document(nil), in.GeneratedContent...)
	cost := req.EstimatedCost
	if in.ActualCost != nil {
		cost = *in.ActualCost
	}
	notes := in.AdminNotes

	updated, err := s.workflow.transitionFrom(ctx, req, step{
		to:    domain.StatusCompleted,
		actor: adminID,
		fill: func(_ *domain.AIRequest, p *repository.Patch, now time.Time) {
			p.GeneratedContent = content
			p.ActualCost = &cost
			p.CompletedAt = &now
			if notes != "" {
				p.AdminNotes = &notes
			}
		},
	})
	if err != nil {
		return nil, err
	}

	if updated.CompletedAt != nil {
		metrics.TimeToComplete.WithLabelValues(string(updated.RequestType)).
			Observe(updated.CompletedAt.Sub(updated.CreatedAt).Seconds())
	}
	return updated, nil
}

// Reject closes a processing request without content; reason is shown to the customer.
func (s *CompletionService) Reject(ctx context.Context, id, adminID, reason, adminNotes string) (*domain.AIRequest, error) {
	if err := requireOperator(adminID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}

	return s.workflow.transition(ctx, id, step{
		to:    domain.StatusRejected,
		actor: adminID,
		note:  reason,
		fill: func(_ *domain.AIRequest, p *repository.Patch, _ time.Time) {
			p.ErrorMessage = &reason
			if adminNotes != "" {
				p.AdminNotes = &adminNotes
			}
		},
	})
}
