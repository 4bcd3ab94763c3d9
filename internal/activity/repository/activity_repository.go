package repository

import (
	"time"

	activitydomain "mailpilot-backend/internal/activity/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogRepository defines the interface for activity log operations
type ActivityLogRepository interface {
	// Append inserts a new log entry
	Append(entry *activitydomain.ActivityLog) error
	// ListByUser returns a user's entries, newest first
	ListByUser(userID string, limit int) ([]*activitydomain.ActivityLog, error)
}

// activityLogRepository implements ActivityLogRepository interface
type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository creates a new instance of activityLogRepository
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{
		db: db,
	}
}

func (r *activityLogRepository) Append(entry *activitydomain.ActivityLog) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now()
	return r.db.Create(entry).Error
}

func (r *activityLogRepository) ListByUser(userID string, limit int) ([]*activitydomain.ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []*activitydomain.ActivityLog
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
