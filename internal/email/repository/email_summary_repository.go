package repository

import (
	"errors"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailSummaryRepository defines the interface for cached summary operations
type EmailSummaryRepository interface {
	// GetSummary retrieves a cached summary for an email, or nil on miss
	GetSummary(userID, emailID string) (*emaildomain.EmailSummary, error)
	// GetSummaries retrieves cached summaries for multiple emails
	// Returns a map of emailID -> summary_data JSON
	GetSummaries(userID string, emailIDs []string) (map[string]string, error)
	// Insert stores a newly computed summary. Records are never updated in
	// place; the unique (user, email) index rejects duplicates.
	Insert(summary *emaildomain.EmailSummary) error
}

// emailSummaryRepository implements EmailSummaryRepository interface
type emailSummaryRepository struct {
	db *gorm.DB
}

// NewEmailSummaryRepository creates a new instance of emailSummaryRepository
func NewEmailSummaryRepository(db *gorm.DB) EmailSummaryRepository {
	return &emailSummaryRepository{
		db: db,
	}
}

func (r *emailSummaryRepository) GetSummary(userID, emailID string) (*emaildomain.EmailSummary, error) {
	var summary emaildomain.EmailSummary
	err := r.db.Where("user_id = ? AND email_id = ?", userID, emailID).First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (r *emailSummaryRepository) GetSummaries(userID string, emailIDs []string) (map[string]string, error) {
	if len(emailIDs) == 0 {
		return map[string]string{}, nil
	}

	var summaries []emaildomain.EmailSummary
	err := r.db.Where("user_id = ? AND email_id IN ?", userID, emailIDs).Find(&summaries).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(summaries))
	for _, s := range summaries {
		result[s.EmailID] = s.SummaryData
	}
	return result, nil
}

func (r *emailSummaryRepository) Insert(summary *emaildomain.EmailSummary) error {
	summary.ID = uuid.New().String()
	summary.CreatedAt = time.Now()
	return r.db.Create(summary).Error
}
