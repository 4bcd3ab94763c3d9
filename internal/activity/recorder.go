package activity

import (
	"encoding/json"

	activitydomain "mailpilot-backend/internal/activity/domain"
	"mailpilot-backend/internal/activity/repository"

	"go.uber.org/zap"
)

// Recorder appends audit entries without ever failing the parent operation.
type Recorder struct {
	repo   repository.ActivityLogRepository
	logger *zap.Logger
}

func NewRecorder(repo repository.ActivityLogRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Record appends an entry in the background. Write failures are logged and
// swallowed.
func (r *Recorder) Record(userID, action string, details map[string]interface{}) {
	go func() {
		payload, err := json.Marshal(details)
		if err != nil {
			payload = []byte("{}")
		}

		entry := &activitydomain.ActivityLog{
			UserID:  userID,
			Action:  action,
			Details: string(payload),
		}

		if err := r.repo.Append(entry); err != nil {
			r.logger.Warn("activity log write failed",
				zap.String("user_id", userID),
				zap.String("action", action),
				zap.Error(err))
		}
	}()
}

// ListByUser returns the user's recent entries, newest first.
func (r *Recorder) ListByUser(userID string, limit int) ([]*activitydomain.ActivityLog, error) {
	return r.repo.ListByUser(userID, limit)
}
