package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/metrics"
	"github.com/timmy/sitequeue/internal/repository"
)

// estimatedCosts is the default cost estimate per request type, in USD.
var estimatedCosts = map[domain.RequestType]float64{
	domain.RequestTypeServices:     0.05,
	domain.RequestTypeHero:         0.02,
	domain.RequestTypeAbout:        0.03,
	domain.RequestTypeTestimonials: 0.04,
	domain.RequestTypeFAQ:          0.04,
	domain.RequestTypeSEO:          0.02,
	domain.RequestTypeImages:       0.40,
}

// QueueService admits new requests and hands them to operators.
type QueueService struct {
	store    RequestStore
	workflow *WorkflowService
	logger   *logger.Logger
	ttl      time.Duration
	now      Clock
}

// QueueConfig holds configuration for the queue service
type QueueConfig struct {
	RequestTTL time.Duration
}

// NewQueueService creates a new queue service
func NewQueueService(store RequestStore, workflow *WorkflowService, log *logger.Logger, cfg *QueueConfig) *QueueService {
	return &QueueService{
		store:    store,
		workflow: workflow,
		logger:   log,
		ttl:      cfg.RequestTTL,
		now:      utcNow,
	}
}

// SetClock replaces the time source.
func (s *QueueService) SetClock(now Clock) {
	s.now = now
}

// SubmitInput is what the wizard sends to enqueue work.
type SubmitInput struct {
	RequestType     string          `json:"request_type"`
	BusinessType    string          `json:"business_type"`
	Terminology     string          `json:"terminology"`
	RequestData     domain.Document `json:"request_data"`
	CustomerID      string          `json:"customer_id"`
	SiteID          string          `json:"site_id"`
	WizardSessionID string          `json:"wizard_session_id"`
	EstimatedCost   *float64        `json:"estimated_cost"`
}

// Submit validates and enqueues a new pending request.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - in: request fields from the wizard.
// Returns:
//   - *domain.AIRequest: stored request with its first history entry.
//   - error: *domain.ValidationError for malformed input.
func (s *QueueService) Submit(ctx context.Context, in SubmitInput) (*domain.AIRequest, error) {
	rt, ok := domain.ParseRequestType(in.RequestType)
	if in.RequestType == "" {
		return nil, domain.NewValidationError("request_type", "is required")
	}
	if !ok {
		return nil, domain.NewValidationError("request_type", "unknown type %q", in.RequestType)
	}

	cost := estimatedCosts[rt]
	if in.EstimatedCost != nil {
		cost = *in.EstimatedCost
	}

	now := s.now()
	req := &domain.AIRequest{
		ID:              uuid.NewString(),
		RequestType:     rt,
		BusinessType:    strings.TrimSpace(in.BusinessType),
		Terminology:     in.Terminology,
		RequestData:     append(domain.Document(nil), in.RequestData...),
		CustomerID:      strings.TrimSpace(in.CustomerID),
		SiteID:          in.SiteID,
		WizardSessionID: in.WizardSessionID,
		Status:          domain.StatusPending,
		EstimatedCost:   cost,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
		History: []domain.HistoryEntry{{
			Seq:       1,
			Status:    domain.StatusPending,
			Actor:     domain.ActorSystem,
			CreatedAt: now,
		}},
	}

	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	metrics.RequestsSubmitted.WithLabelValues(string(rt)).Inc()
	logger.CtxInfo(logger.WithFields(ctx, logger.Fields{
		logger.FieldAIRequestID: req.ID,
		logger.FieldSessionID:   req.WizardSessionID,
	}), "Request %s submitted", rt)

	return req, nil
}

// Assign claims a pending request for adminID.
// Of several concurrent calls on the same request exactly one succeeds; the
// others fail with *domain.InvalidTransitionError.
func (s *QueueService) Assign(ctx context.Context, id, adminID string) (*domain.AIRequest, error) {
	if err := requireOperator(adminID); err != nil {
		return nil, err
	}
	return s.workflow.transition(ctx, id, step{to: domain.StatusAssigned, actor: adminID})
}

// OperatorView selects which part of the queue an operator sees.
type OperatorView string

const (
	ViewUnassigned OperatorView = "unassigned"
	ViewMine       OperatorView = "mine"
	ViewAll        OperatorView = "all"
)

// ParseOperatorView maps a query value to a view, defaulting to ViewAll.
func ParseOperatorView(s string) (OperatorView, bool) {
	switch OperatorView(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewAll:
		return ViewAll, true
	case ViewUnassigned:
		return ViewUnassigned, true
	case ViewMine:
		return ViewMine, true
	}
	return ViewAll, false
}

// Page is one page of a listing.
type Page struct {
	Items  []domain.AIRequest `json:"items"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// ListForOperator lists requests for the operator-facing queue.
// ViewUnassigned shows pending work oldest first, ViewMine shows what adminID
// holds, and ViewAll applies only the given filter.
func (s *QueueService) ListForOperator(ctx context.Context, adminID string, view OperatorView, filter repository.ListFilter) (*Page, error) {
	switch view {
	case ViewUnassigned:
		filter.Statuses = []domain.RequestStatus{domain.StatusPending}
		filter.Unassigned = true
		filter.Ascending = true
	case ViewMine:
		if err := requireOperator(adminID); err != nil {
			return nil, err
		}
		filter.AssignedAdminID = adminID
		if len(filter.Statuses) == 0 {
			filter.Statuses = []domain.RequestStatus{domain.StatusAssigned, domain.StatusProcessing}
		}
	}

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.AIRequest{}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	if limit > repository.MaxListLimit {
		limit = repository.MaxListLimit
	}
	return &Page{Items: items, Total: total, Limit: limit, Offset: filter.Offset}, nil
}

// Get returns a request with its full history.
func (s *QueueService) Get(ctx context.Context, id string) (*domain.AIRequest, error) {
	return s.store.GetByID(ctx, id)
}

// Stats is the dashboard summary of the queue.
type Stats struct {
	ByStatus map[domain.RequestStatus]int64 `json:"by_status"`
	Total    int64                          `json:"total"`
	Open     int64                          `json:"open"`
}

// Stats counts requests per status and refreshes the queue depth gauge.
func (s *QueueService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByStatus: counts}
	for status, n := range counts {
		stats.Total += n
		if !status.IsTerminal() {
			stats.Open += n
		}
		metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(n))
	}
	return stats, nil
}

// Resubmit enqueues a fresh copy of a failed or rejected request.
// The copy keeps the original payload and correlation keys, points back through
// ParentID and carries the parent's retry count. Nothing calls this automatically.
func (s *QueueService) Resubmit(ctx context.Context, id, adminID string) (*domain.AIRequest, error) {
	if err := requireOperator(adminID); err != nil {
		return nil, err
	}
	parent, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if parent.Status != domain.StatusFailed && parent.Status != domain.StatusRejected {
		return nil, &domain.InvalidTransitionError{
			RequestID: parent.ID,
			From:      parent.Status,
			To:        domain.StatusPending,
			Reason:    "only failed or rejected requests can be resubmitted",
		}
	}

	now := s.now()
	parentID := parent.ID
	req := &domain.AIRequest{
		ID:              uuid.NewString(),
		RequestType:     parent.RequestType,
		BusinessType:    parent.BusinessType,
		Terminology:     parent.Terminology,
		RequestData:     append(domain.Document(nil), parent.RequestData...),
		CustomerID:      parent.CustomerID,
		SiteID:          parent.SiteID,
		WizardSessionID: parent.WizardSessionID,
		ParentID:        &parentID,
		Status:          domain.StatusPending,
		EstimatedCost:   parent.EstimatedCost,
		RetryCount:      parent.RetryCount,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
		History: []domain.HistoryEntry{{
			Seq:       1,
			Status:    domain.StatusPending,
			Actor:     domain.ActorSystem,
			Note:      "resubmitted from " + parent.ID + " by " + adminID,
			CreatedAt: now,
		}},
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	metrics.RequestsSubmitted.WithLabelValues(string(req.RequestType)).Inc()
	logger.With(logger.Fields{
		logger.FieldAIRequestID: req.ID,
		logger.FieldAdminID:     adminID,
		"parent_id":             parent.ID,
	}).Info(ctx, "Request resubmitted")
	return req, nil
}
