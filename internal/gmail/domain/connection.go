package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// GmailConnection stores a user's delegated Gmail credential. One row per
// user; reconnecting overwrites the existing row.
type GmailConnection struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"uniqueIndex;not null"`
	Email        string     `json:"email"`
	AccessToken  string     `json:"-" gorm:"type:text"`
	RefreshToken string     `json:"-" gorm:"type:text"`
	TokenExpiry  *time.Time `json:"token_expiry"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (GmailConnection) TableName() string {
	return "gmail_connections"
}

// Expired reports whether the stored access token is past its expiry. A nil
// expiry means the provider gave no lifetime and the token is used as-is.
func (c *GmailConnection) Expired(now time.Time) bool {
	return c.TokenExpiry != nil && c.TokenExpiry.Before(now)
}

// OAuthProvider covers the provider-side OAuth operations the connect flow
// and the token refresher need.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	UserEmail(ctx context.Context, token *oauth2.Token) (string, error)
}
