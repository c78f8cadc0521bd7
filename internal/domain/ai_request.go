package domain

import (
	"strings"
	"time"
)

// RequestType classifies the content a request asks for.
type RequestType string

const (
	RequestTypeServices     RequestType = "SERVICES"
	RequestTypeHero         RequestType = "HERO"
	RequestTypeAbout        RequestType = "ABOUT"
	RequestTypeTestimonials RequestType = "TESTIMONIALS"
	RequestTypeFAQ          RequestType = "FAQ"
	RequestTypeSEO          RequestType = "SEO"
	RequestTypeImages       RequestType = "IMAGES"
)

// RequestTypes lists every supported request type in display order.
var RequestTypes = []RequestType{
	RequestTypeServices,
	RequestTypeHero,
	RequestTypeAbout,
	RequestTypeTestimonials,
	RequestTypeFAQ,
	RequestTypeSEO,
	RequestTypeImages,
}

// ParseRequestType normalizes s and reports whether it names a known type.
func ParseRequestType(s string) (RequestType, bool) {
	rt := RequestType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range RequestTypes {
		if rt == known {
			return rt, true
		}
	}
	return rt, false
}

// RequestStatus is the lifecycle state of an AI request.
// Values include StatusPending, StatusAssigned, StatusProcessing,
// StatusCompleted, StatusRejected and StatusFailed.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusAssigned   RequestStatus = "assigned"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusRejected   RequestStatus = "rejected"
	StatusFailed     RequestStatus = "failed"
)

// RequestStatuses lists every status in lifecycle order.
var RequestStatuses = []RequestStatus{
	StatusPending,
	StatusAssigned,
	StatusProcessing,
	StatusCompleted,
	StatusRejected,
	StatusFailed,
}

// ParseRequestStatus normalizes s and reports whether it names a known status.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	st := RequestStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range RequestStatuses {
		if st == known {
			return st, true
		}
	}
	return st, false
}

// IsTerminal reports whether no transition leaves s.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusFailed
}

// IsHeld reports whether s requires an assigned operator.
func (s RequestStatus) IsHeld() bool {
	return s == StatusAssigned || s == StatusProcessing
}

// ActorSystem is the history actor for transitions made by the service itself.
const ActorSystem = "system"

// AIRequest is a unit of AI content work raised by the wizard and fulfilled by an operator.
type AIRequest struct {
	ID               string         `gorm:"type:text;primaryKey" json:"id"`
	RequestType      RequestType    `gorm:"type:text;not null;index:idx_ai_requests_type" json:"request_type"`
	BusinessType     string         `gorm:"type:text;index:idx_ai_requests_business" json:"business_type"`
	Terminology      string         `gorm:"type:text" json:"terminology,omitempty"`
	RequestData      Document       `gorm:"type:text" json:"request_data"`
	CustomerID       string         `gorm:"type:text;not null;index:idx_ai_requests_customer" json:"customer_id"`
	SiteID           string         `gorm:"type:text" json:"site_id,omitempty"`
	WizardSessionID  string         `gorm:"type:text;index:idx_ai_requests_session" json:"wizard_session_id,omitempty"`
	ParentID         *string        `gorm:"type:text" json:"parent_id,omitempty"`
	AssignedAdminID  *string        `gorm:"type:text;index:idx_ai_requests_admin" json:"assigned_admin_id,omitempty"`
	Status           RequestStatus  `gorm:"type:text;not null;index:idx_ai_requests_status;default:pending" json:"status"`
	EstimatedCost    float64        `gorm:"default:0" json:"estimated_cost"`
	ActualCost       *float64       `json:"actual_cost,omitempty"`
	GeneratedContent Document       `gorm:"type:text" json:"generated_content,omitempty"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	AdminNotes       string         `gorm:"type:text" json:"admin_notes,omitempty"`
	RetryCount       int            `gorm:"default:0" json:"retry_count"`
	Version          int64          `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time      `gorm:"index:idx_ai_requests_created" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	AssignedAt       *time.Time     `json:"assigned_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	ExpiresAt        time.Time      `gorm:"index:idx_ai_requests_expires" json:"expires_at"`
	History          []HistoryEntry `gorm:"foreignKey:RequestID;references:ID" json:"history,omitempty"`
}

// TableName returns the database table name for AIRequest.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (AIRequest) TableName() string {
	return "ai_requests"
}

// Validate checks the fields every stored request must carry.
// Returns:
//   - error: *ValidationError naming the first missing field, or nil.
func (r *AIRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return NewValidationError("customer_id", "is required")
	}
	if r.RequestType == "" {
		return NewValidationError("request_type", "is required")
	}
	if _, ok := ParseRequestType(string(r.RequestType)); !ok {
		return NewValidationError("request_type", "unknown type %q", r.RequestType)
	}
	if len(r.RequestData) > 0 && !r.RequestData.IsObject() {
		return NewValidationError("request_data", "must be a JSON object")
	}
	if r.EstimatedCost < 0 {
		return NewValidationError("estimated_cost", "must not be negative")
	}
	return nil
}

// HolderID returns the assigned operator or an empty string.
func (r *AIRequest) HolderID() string {
	if r.AssignedAdminID == nil {
		return ""
	}
	return *r.AssignedAdminID
}

// LastHistory returns the most recent history entry, if any.
func (r *AIRequest) LastHistory() (HistoryEntry, bool) {
	if len(r.History) == 0 {
		return HistoryEntry{}, false
	}
	return r.History[len(r.History)-1], true
}

// HistoryEntry records one accepted transition of an AI request.
// Rows are append-only and ordered by Seq within a request.
type HistoryEntry struct {
	ID        uint          `gorm:"primaryKey;autoIncrement" json:"-"`
	RequestID string        `gorm:"type:text;not null;uniqueIndex:idx_ai_request_history_seq,priority:1" json:"-"`
	Seq       int           `gorm:"not null;uniqueIndex:idx_ai_request_history_seq,priority:2" json:"seq"`
	Status    RequestStatus `gorm:"type:text;not null" json:"status"`
	Actor     string        `gorm:"type:text;not null" json:"actor"`
	Note      string        `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time     `json:"timestamp"`
}

// TableName returns the database table name for HistoryEntry.
func (HistoryEntry) TableName() string {
	return "ai_request_history"
}
