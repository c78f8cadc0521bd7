package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/sitequeue/internal/domain"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	Statuses        []domain.RequestStatus
	RequestType     domain.RequestType
	BusinessType    string
	CustomerID      string
	WizardSessionID string
	AssignedAdminID string
	Unassigned      bool
	Ascending       bool
	Limit           int
	Offset          int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Precondition is the state an update expects to find.
type Precondition struct {
	Status  domain.RequestStatus
	Version int64
}

// Patch lists the columns a transition writes. Nil pointers leave a column untouched.
type Patch struct {
	Status           domain.RequestStatus
	AssignedAdminID  *string
	ClearAssignment  bool
	AssignedAt       *time.Time
	GeneratedContent domain.Document
	ActualCost       *float64
	CompletedAt      *time.Time
	ErrorMessage     *string
	AdminNotes       *string
	IncrementRetry   bool
	ExpiresAt        *time.Time
	UpdatedAt        time.Time
}

func (p Patch) columns() map[string]interface{} {
	cols := map[string]interface{}{
		"status":     p.Status,
		"version":    gorm.Expr("version + 1"),
		"updated_at": p.UpdatedAt,
	}
	if p.ClearAssignment {
		cols["assigned_admin_id"] = nil
		cols["assigned_at"] = nil
	} else {
		if p.AssignedAdminID != nil {
			cols["assigned_admin_id"] = *p.AssignedAdminID
		}
		if p.AssignedAt != nil {
			cols["assigned_at"] = *p.AssignedAt
		}
	}
	if len(p.GeneratedContent) > 0 {
		cols["generated_content"] = p.GeneratedContent
	}
	if p.ActualCost != nil {
		cols["actual_cost"] = *p.ActualCost
	}
	if p.CompletedAt != nil {
		cols["completed_at"] = *p.CompletedAt
	}
	if p.ErrorMessage != nil {
		cols["error_message"] = *p.ErrorMessage
	}
	if p.AdminNotes != nil {
		cols["admin_notes"] = *p.AdminNotes
	}
	if p.IncrementRetry {
		cols["retry_count"] = gorm.Expr("retry_count + 1")
	}
	if p.ExpiresAt != nil {
		cols["expires_at"] = *p.ExpiresAt
	}
	return cols
}

// AIRequestRepository persists AI requests and their history.
type AIRequestRepository struct {
	db *gorm.DB
}

// NewAIRequestRepository creates a new AIRequestRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *AIRequestRepository: repository instance bound to db.
func NewAIRequestRepository(db *gorm.DB) *AIRequestRepository {
	return &AIRequestRepository{db: db}
}

// Create inserts a new request together with its initial history.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: request to persist; History must hold the initial pending entry.
// Returns:
//   - error: *domain.ValidationError for missing fields, or the insert error.
func (r *AIRequestRepository) Create(ctx context.Context, req *domain.AIRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if len(req.History) == 0 {
		return domain.NewValidationError("history", "initial entry is required")
	}
	if req.Version == 0 {
		req.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("create ai request: %w", err)
	}
	return nil
}

// GetByID retrieves a request with its history ordered by sequence.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: request ID.
// Returns:
//   - *domain.AIRequest: request if found.
//   - error: *domain.NotFoundError when absent.
func (r *AIRequestRepository) GetByID(ctx context.Context, id string) (*domain.AIRequest, error) {
	var req domain.AIRequest
	if err := loadRequest(r.db.WithContext(ctx), id, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func loadRequest(db *gorm.DB, id string, req *domain.AIRequest) error {
	err := db.Preload("History", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("get ai request %s: %w", id, err)
	}
	return nil
}

// List returns one page of requests matching filter and the total match count.
// History is not loaded.
func (r *AIRequestRepository) List(ctx context.Context, filter ListFilter) ([]domain.AIRequest, int64, error) {
	filter = filter.normalized()

	query := r.db.WithContext(ctx).Model(&domain.AIRequest{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.RequestType != "" {
		query = query.Where("request_type = ?", filter.RequestType)
	}
	if filter.BusinessType != "" {
		query = query.Where("business_type = ?", filter.BusinessType)
	}
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.WizardSessionID != "" {
		query = query.Where("wizard_session_id = ?", filter.WizardSessionID)
	}
	if filter.AssignedAdminID != "" {
		query = query.Where("assigned_admin_id = ?", filter.AssignedAdminID)
	}
	if filter.Unassigned {
		query = query.Where("assigned_admin_id IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count ai requests: %w", err)
	}

	order := "created_at DESC, id DESC"
	if filter.Ascending {
		order = "created_at ASC, id ASC"
	}

	var items []domain.AIRequest
	if err := query.
		Order(order).
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list ai requests: %w", err)
	}
	return items, total, nil
}

// Update applies patch only if the row still matches pre, then appends entry to
// the history in the same transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: request ID.
//   - pre: status and version the caller read.
//   - patch: columns to write; version is always incremented.
//   - entry: history entry to append; RequestID and Seq are assigned here.
// Returns:
//   - *domain.AIRequest: the updated request with history.
//   - error: *domain.NotFoundError if the row is gone, *domain.ConflictError if
//     another writer got there first.
func (r *AIRequestRepository) Update(ctx context.Context, id string, pre Precondition, patch Patch, entry domain.HistoryEntry) (*domain.AIRequest, error) {
	var updated domain.AIRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.AIRequest{}).
			Where("id = ? AND status = ? AND version = ?", id, pre.Status, pre.Version).
			Updates(patch.columns())
		if res.Error != nil {
			return fmt.Errorf("update ai request %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.AIRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("check ai request %s: %w", id, err)
			}
			if count == 0 {
				return &domain.NotFoundError{ID: id}
			}
			return &domain.ConflictError{RequestID: id, Version: pre.Version}
		}

		var last int
		if err := tx.Model(&domain.HistoryEntry{}).
			Where("request_id = ?", id).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error; err != nil {
			return fmt.Errorf("read history sequence for %s: %w", id, err)
		}

		entry.ID = 0
		entry.RequestID = id
		entry.Seq = last + 1
		if entry.Status == "" {
			entry.Status = patch.Status
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = patch.UpdatedAt
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append history for %s: %w", id, err)
		}

		return loadRequest(tx, id, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListSweepCandidates returns requests the expiry sweep should act on, oldest
// expiry first: pending requests past expiry, and assigned requests past expiry
// whose assignment started before staleBefore.
func (r *AIRequestRepository) ListSweepCandidates(ctx context.Context, now, staleBefore time.Time, limit int) ([]domain.AIRequest, error) {
	var items []domain.AIRequest
	if err := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Where(r.db.Where("status = ?", domain.StatusPending).
			Or("status = ? AND assigned_at < ?", domain.StatusAssigned, staleBefore)).
		Order("expires_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list sweep candidates: %w", err)
	}
	return items, nil
}

type statusCount struct {
	Status domain.RequestStatus
	Count  int64
}

// CountByStatus returns the number of requests in each status.
// Statuses with no requests are reported as zero.
func (r *AIRequestRepository) CountByStatus(ctx context.Context) (map[domain.RequestStatus]int64, error) {
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&domain.AIRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count ai requests by status: %w", err)
	}

	counts := make(map[domain.RequestStatus]int64, len(domain.RequestStatuses))
	for _, s := range domain.RequestStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
