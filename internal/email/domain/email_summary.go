package domain

import "time"

// Summary priorities and categories the model is allowed to emit.
var (
	ValidPriorities = []string{"high", "medium", "low"}
	ValidCategories = []string{"work", "personal", "newsletter", "notification", "spam", "other"}
)

// SummaryData is the structured result of summarizing one email.
type SummaryData struct {
	Summary        string   `json:"summary"`
	ActionItems    []string `json:"actionItems"`
	Priority       string   `json:"priority"`
	SuggestedReply *string  `json:"suggestedReply"`
	Category       string   `json:"category"`
}

// Valid reports whether the summary conforms to the expected schema.
func (s *SummaryData) Valid() bool {
	return s.Summary != "" && contains(ValidPriorities, s.Priority) && contains(ValidCategories, s.Category)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// EmailSummary stores cached AI-generated summaries for emails. A (user,
// email) pair holds at most one record; it is inserted once and never updated
// in place.
type EmailSummary struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"uniqueIndex:idx_user_email_unique;index;not null"`
	EmailID      string    `json:"email_id" gorm:"uniqueIndex:idx_user_email_unique;not null"`
	EmailSubject string    `json:"email_subject"`
	EmailFrom    string    `json:"email_from"`
	SummaryData  string    `json:"summary_data" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (EmailSummary) TableName() string {
	return "email_summaries"
}
