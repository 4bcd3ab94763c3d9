package repository

import (
	"errors"
	"time"

	gmaildomain "mailpilot-backend/internal/gmail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for Gmail connection storage
type ConnectionRepository interface {
	// FindByUserID returns the user's connection, or nil when none exists
	FindByUserID(userID string) (*gmaildomain.GmailConnection, error)
	// Upsert creates or overwrites the user's connection
	Upsert(conn *gmaildomain.GmailConnection) error
	// UpdateToken persists a refreshed access token and expiry
	UpdateToken(userID, accessToken string, expiry *time.Time) error
	// Delete removes the user's connection
	Delete(userID string) error
}

// connectionRepository implements ConnectionRepository interface
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new instance of connectionRepository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{
		db: db,
	}
}

func (r *connectionRepository) FindByUserID(userID string) (*gmaildomain.GmailConnection, error) {
	var conn gmaildomain.GmailConnection
	err := r.db.Where("user_id = ?", userID).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) Upsert(conn *gmaildomain.GmailConnection) error {
	existing, err := r.FindByUserID(conn.UserID)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing == nil {
		conn.ID = uuid.New().String()
		conn.CreatedAt = now
		conn.UpdatedAt = now
		return r.db.Create(conn).Error
	}

	existing.Email = conn.Email
	existing.AccessToken = conn.AccessToken
	if conn.RefreshToken != "" {
		existing.RefreshToken = conn.RefreshToken
	}
	existing.TokenExpiry = conn.TokenExpiry
	existing.UpdatedAt = now
	return r.db.Save(existing).Error
}

func (r *connectionRepository) UpdateToken(userID, accessToken string, expiry *time.Time) error {
	return r.db.Model(&gmaildomain.GmailConnection{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"access_token": accessToken,
			"token_expiry": expiry,
			"updated_at":   time.Now(),
		}).Error
}

func (r *connectionRepository) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&gmaildomain.GmailConnection{}).Error
}
