package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/sitequeue/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SiteSessionRepository stores the wizard-session content documents.
type SiteSessionRepository struct {
	db *gorm.DB
}

// NewSiteSessionRepository creates a new SiteSessionRepository.
func NewSiteSessionRepository(db *gorm.DB) *SiteSessionRepository {
	return &SiteSessionRepository{db: db}
}

// Get retrieves a session by its wizard session id.
// Returns *domain.NotFoundError when the session has no content yet.
func (r *SiteSessionRepository) Get(ctx context.Context, id string) (*domain.SiteSession, error) {
	var session domain.SiteSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Kind: "site session", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get site session %s: %w", id, err)
	}
	return &session, nil
}

// DecodeContent unmarshals the stored session document.
func DecodeContent(session *domain.SiteSession) (*domain.SessionContent, error) {
	var content domain.SessionContent
	if session.Content.IsEmpty() {
		return &content, nil
	}
	if err := json.Unmarshal(session.Content, &content); err != nil {
		return nil, fmt.Errorf("decode site session %s: %w", session.ID, err)
	}
	return &content, nil
}

// ApplyResult merges one completed request into the session document, creating
// the session on first use. A request already recorded in AppliedRequests is
// skipped, so repeated calls for the same request are no-ops. Only requests of
// the customer who owns the session are applied.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sessionID: wizard session id.
//   - customerID: owner recorded when the session is created.
//   - requestID: completed request being applied.
//   - apply: mutates the decoded content.
//   - now: timestamp for created_at/updated_at.
// Returns:
//   - bool: true if the content changed.
//   - error: *domain.SessionOwnerError for another customer's session,
//     or non-nil if apply or the write fails.
func (r *SiteSessionRepository) ApplyResult(
	ctx context.Context,
	sessionID, customerID, requestID string,
	apply func(*domain.SessionContent) error,
	now time.Time,
) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := domain.SiteSession{
			ID:              sessionID,
			CustomerID:      customerID,
			AppliedRequests: domain.StringArray{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("ensure site session %s: %w", sessionID, err)
		}

		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var session domain.SiteSession
		if err := query.First(&session, "id = ?", sessionID).Error; err != nil {
			return fmt.Errorf("lock site session %s: %w", sessionID, err)
		}
		if session.CustomerID != customerID {
			return &domain.SessionOwnerError{SessionID: sessionID, CustomerID: customerID, OwnerID: session.CustomerID}
		}
		if session.AppliedRequests.Contains(requestID) {
			return nil
		}

		content, err := DecodeContent(&session)
		if err != nil {
			return err
		}
		if err := apply(content); err != nil {
			return err
		}
		raw, err := json.Marshal(content)
		if err != nil {
			return fmt.Errorf("encode site session %s: %w", sessionID, err)
		}

		if err := tx.Model(&domain.SiteSession{}).
			Where("id = ?", sessionID).
			Updates(map[string]interface{}{
				"content":          domain.Document(raw),
				"applied_requests": append(session.AppliedRequests, requestID),
				"updated_at":       now,
			}).Error; err != nil {
			return fmt.Errorf("update site session %s: %w", sessionID, err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
