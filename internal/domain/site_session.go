package domain

import "time"

// SiteSession holds the wizard-session content completed requests are applied to.
type SiteSession struct {
	ID              string      `gorm:"type:text;primaryKey" json:"id"`
	CustomerID      string      `gorm:"type:text;index:idx_site_sessions_customer" json:"customer_id,omitempty"`
	Content         Document    `gorm:"type:text" json:"content"`
	AppliedRequests StringArray `gorm:"type:text" json:"applied_requests"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName returns the database table name for SiteSession.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (SiteSession) TableName() string {
	return "site_sessions"
}
