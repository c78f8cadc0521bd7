package service

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/repository"
)

// ErrWatchTimeout is returned by Watch when the request is still open after the max poll duration.
var ErrWatchTimeout = errors.New("request did not finish within the max poll duration")

// SessionStore persists wizard-session content.
type SessionStore interface {
	Get(ctx context.Context, id string) (*domain.SiteSession, error)
	ApplyResult(ctx context.Context, sessionID, customerID, requestID string, apply func(*domain.SessionContent) error, now time.Time) (bool, error)
}

// PollingService is the read-only status surface the wizard polls.
// It never returns operator details or the error taxonomy beyond not-found.
type PollingService struct {
	store       RequestStore
	sessions    SessionStore
	logger      *logger.Logger
	interval    time.Duration
	maxDuration time.Duration
	now         Clock
}

// PollingConfig holds configuration for the polling service
type PollingConfig struct {
	Interval    time.Duration
	MaxDuration time.Duration
}

// NewPollingService creates a new polling service
func NewPollingService(store RequestStore, sessions SessionStore, log *logger.Logger, cfg *PollingConfig) *PollingService {
	return &PollingService{
		store:       store,
		sessions:    sessions,
		logger:      log,
		interval:    cfg.Interval,
		maxDuration: cfg.MaxDuration,
		now:         utcNow,
	}
}

// SetClock replaces the time source.
func (s *PollingService) SetClock(now Clock) {
	s.now = now
}

func (s *PollingService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Interval is the advertised poll interval.
func (s *PollingService) Interval() time.Duration {
	return s.interval
}

// MaxDuration is the advertised client-side give-up time.
func (s *PollingService) MaxDuration() time.Duration {
	return s.maxDuration
}

// StatusView is the customer-facing status of one request.
type StatusView struct {
	RequestID        string               `json:"request_id"`
	RequestType      domain.RequestType   `json:"request_type"`
	Status           domain.RequestStatus `json:"status"`
	Progress         int                  `json:"progress"`
	Terminal         bool                 `json:"terminal"`
	GeneratedContent domain.Document      `json:"generated_content,omitempty"`
	ErrorMessage     string               `json:"error_message,omitempty"`
	UpdatedAt        time.Time            `json:"updated_at"`
	PollAfterMs      int64                `json:"poll_after_ms,omitempty"`
}

var progressByStatus = map[domain.RequestStatus]int{
	domain.StatusPending:    10,
	domain.StatusAssigned:   30,
	domain.StatusProcessing: 60,
	domain.StatusCompleted:  100,
	domain.StatusRejected:   100,
	domain.StatusFailed:     100,
}

func (s *PollingService) view(req *domain.AIRequest) *StatusView {
	v := &StatusView{
		RequestID:   req.ID,
		RequestType: req.RequestType,
		Status:      req.Status,
		Progress:    progressByStatus[req.Status],
		Terminal:    req.Status.IsTerminal(),
		UpdatedAt:   req.UpdatedAt,
	}
	switch req.Status {
	case domain.StatusCompleted:
		v.GeneratedContent = req.GeneratedContent
	case domain.StatusFailed, domain.StatusRejected:
		v.ErrorMessage = req.ErrorMessage
	}
	if !v.Terminal {
		v.PollAfterMs = s.interval.Milliseconds()
	}
	return v
}

// GetStatus returns the current status of a request. When it is completed and
// belongs to a wizard session, its content is merged into the session first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: request ID.
// Returns:
//   - *StatusView: customer view of the request.
//   - error: *domain.NotFoundError when the request does not exist.
func (s *PollingService) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.applyCompleted(ctx, req)
	return s.view(req), nil
}

// GetSessionStatus returns the latest request of a wizard session,
// optionally narrowed to one request type.
func (s *PollingService) GetSessionStatus(ctx context.Context, sessionID string, requestType string) (*StatusView, error) {
	filter := repository.ListFilter{WizardSessionID: sessionID, Limit: 1}
	if requestType != "" {
		rt, ok := domain.ParseRequestType(requestType)
		if !ok {
			return nil, domain.NewValidationError("request_type", "unknown type %q", requestType)
		}
		filter.RequestType = rt
	}

	items, _, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &domain.NotFoundError{Kind: "wizard session", ID: sessionID}
	}

	req := &items[0]
	s.applyCompleted(ctx, req)
	return s.view(req), nil
}

// SessionContentView is the merged content of a wizard session.
type SessionContentView struct {
	SessionID       string                 `json:"session_id"`
	Content         *domain.SessionContent `json:"content"`
	AppliedRequests []string               `json:"applied_requests"`
	UpdatedAt       *time.Time             `json:"updated_at,omitempty"`
}

// GetSessionContent returns the session document after applying any completed
// requests of the session that were not applied yet.
func (s *PollingService) GetSessionContent(ctx context.Context, sessionID string) (*SessionContentView, error) {
	offset := 0
	for {
		items, total, err := s.store.List(ctx, repository.ListFilter{
			WizardSessionID: sessionID,
			Statuses:        []domain.RequestStatus{domain.StatusCompleted},
			Ascending:       true,
			Limit:           repository.MaxListLimit,
			Offset:          offset,
		})
		if err != nil {
			return nil, err
		}
		for i := range items {
			s.applyCompleted(ctx, &items[i])
		}
		offset += len(items)
		if len(items) == 0 || int64(offset) >= total {
			break
		}
	}

	view := &SessionContentView{
		SessionID:       sessionID,
		Content:         &domain.SessionContent{},
		AppliedRequests: []string{},
	}
	session, err := s.sessions.Get(ctx, sessionID)
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}

	content, err := repository.DecodeContent(session)
	if err != nil {
		return nil, err
	}
	view.Content = content
	if session.AppliedRequests != nil {
		view.AppliedRequests = session.AppliedRequests
	}
	updatedAt := session.UpdatedAt
	view.UpdatedAt = &updatedAt
	return view, nil
}

// applyCompleted merges a completed request into its wizard session once.
// Failures are logged; the status read still succeeds.
func (s *PollingService) applyCompleted(ctx context.Context, req *domain.AIRequest) {
	if req.Status != domain.StatusCompleted || req.WizardSessionID == "" {
		return
	}

	content, err := domain.ParseContent(req.RequestType, req.GeneratedContent)
	if err != nil {
		s.log(ctx).WithError(err).WithField(logger.FieldAIRequestID, req.ID).Warn("Stored content does not parse, not applied")
		return
	}

	applied, err := s.sessions.ApplyResult(ctx, req.WizardSessionID, req.CustomerID, req.ID,
		func(session *domain.SessionContent) error {
			return domain.ApplyContent(session, req.RequestType, content)
		}, s.now())
	if err != nil {
		s.log(ctx).WithError(err).WithFields(logger.Fields{
			logger.FieldAIRequestID: req.ID,
			logger.FieldSessionID:   req.WizardSessionID,
		}).Warn("Failed to apply content to session")
		return
	}
	if applied {
		logger.With(logger.Fields{
			logger.FieldAIRequestID: req.ID,
			logger.FieldSessionID:   req.WizardSessionID,
		}).Info(ctx, "Applied %s content to session", req.RequestType)
	}
}

// Watch calls emit with the request's status now and after every change,
// re-reading the store each interval. It returns nil once a terminal status was
// emitted and ErrWatchTimeout after the max poll duration.
func (s *PollingService) Watch(ctx context.Context, id string, emit func(*StatusView) error) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.maxDuration)
	defer deadline.Stop()

	var lastStatus domain.RequestStatus
	for {
		v, err := s.GetStatus(ctx, id)
		if err != nil {
			return err
		}
		if v.Status != lastStatus {
			if err := emit(v); err != nil {
				return err
			}
			lastStatus = v.Status
		}
		if v.Terminal {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrWatchTimeout
		case <-ticker.C:
		}
	}
}
