package usecase

import (
	"context"
	"fmt"
	"time"

	"mailpilot-backend/internal/activity"
	gmaildomain "mailpilot-backend/internal/gmail/domain"
	"mailpilot-backend/internal/gmail/repository"
	"mailpilot-backend/pkg/apperrors"
	"mailpilot-backend/pkg/keymutex"

	"go.uber.org/zap"
)

const providerCallTimeout = 30 * time.Second

// ConnectionStatus describes whether a user has a usable Gmail connection.
type ConnectionStatus struct {
	Connected   bool       `json:"connected"`
	Email       string     `json:"email,omitempty"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
	TokenExpiry *time.Time `json:"tokenExpiry,omitempty"`
}

// ConnectionUsecase manages the Gmail connect flow and resolves delegated
// access tokens for the other usecases.
type ConnectionUsecase interface {
	AuthURL(userID string) string
	HandleCallback(ctx context.Context, code, state string) error
	Status(userID string) (*ConnectionStatus, error)
	Disconnect(userID string) error
	// ResolveAccessToken returns a usable access token and the connected
	// address, refreshing and persisting the stored credential when expired.
	ResolveAccessToken(ctx context.Context, userID string) (string, string, error)
}

// connectionUsecase implements ConnectionUsecase interface
type connectionUsecase struct {
	connRepo repository.ConnectionRepository
	oauth    gmaildomain.OAuthProvider
	recorder *activity.Recorder
	logger   *zap.Logger
	refresh  *keymutex.KeyMutex
	now      func() time.Time
}

// NewConnectionUsecase creates a new instance of connectionUsecase
func NewConnectionUsecase(connRepo repository.ConnectionRepository, oauth gmaildomain.OAuthProvider, recorder *activity.Recorder, logger *zap.Logger) ConnectionUsecase {
	return &connectionUsecase{
		connRepo: connRepo,
		oauth:    oauth,
		recorder: recorder,
		logger:   logger,
		refresh:  keymutex.New(),
		now:      time.Now,
	}
}

func (u *connectionUsecase) AuthURL(userID string) string {
	// State carries the user id so the callback can attribute the tokens.
	return u.oauth.AuthCodeURL(userID)
}

func (u *connectionUsecase) HandleCallback(ctx context.Context, code, state string) error {
	if code == "" || state == "" {
		return fmt.Errorf("%w: code and state required", apperrors.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	token, err := u.oauth.Exchange(ctx, code)
	if err != nil {
		return err
	}

	email, err := u.oauth.UserEmail(ctx, token)
	if err != nil {
		return err
	}

	conn := &gmaildomain.GmailConnection{
		UserID:       state,
		Email:        email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		conn.TokenExpiry = &expiry
	}

	if err := u.connRepo.Upsert(conn); err != nil {
		return err
	}

	u.recorder.Record(state, "gmail_connected", map[string]interface{}{"email": email})
	u.logger.Info("gmail connected", zap.String("user_id", state), zap.String("email", email))

	return nil
}

func (u *connectionUsecase) Status(userID string) (*ConnectionStatus, error) {
	conn, err := u.connRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &ConnectionStatus{Connected: false}, nil
	}

	connectedAt := conn.CreatedAt
	return &ConnectionStatus{
		Connected:   true,
		Email:       conn.Email,
		ConnectedAt: &connectedAt,
		TokenExpiry: conn.TokenExpiry,
	}, nil
}

func (u *connectionUsecase) Disconnect(userID string) error {
	if err := u.connRepo.Delete(userID); err != nil {
		return err
	}

	u.recorder.Record(userID, "gmail_disconnected", map[string]interface{}{})
	return nil
}

func (u *connectionUsecase) ResolveAccessToken(ctx context.Context, userID string) (string, string, error) {
	conn, err := u.connRepo.FindByUserID(userID)
	if err != nil {
		return "", "", err
	}
	if conn == nil {
		return "", "", apperrors.ErrNotConnected
	}

	if !conn.Expired(u.now()) {
		return conn.AccessToken, conn.Email, nil
	}

	if conn.RefreshToken == "" {
		return "", "", apperrors.ErrReauthRequired
	}

	// Serialize concurrent refreshes for the same user; the loser of the race
	// sees the winner's token on the re-read and returns it without a second
	// provider call.
	u.refresh.Lock(userID)
	defer u.refresh.Unlock(userID)

	conn, err = u.connRepo.FindByUserID(userID)
	if err != nil {
		return "", "", err
	}
	if conn == nil {
		return "", "", apperrors.ErrNotConnected
	}
	if !conn.Expired(u.now()) {
		return conn.AccessToken, conn.Email, nil
	}

	refreshCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	token, err := u.oauth.Refresh(refreshCtx, conn.RefreshToken)
	if err != nil {
		return "", "", err
	}

	var expiry *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry
		expiry = &e
	}

	// The refreshed token must be durable before anyone uses it.
	if err := u.connRepo.UpdateToken(userID, token.AccessToken, expiry); err != nil {
		return "", "", err
	}

	u.logger.Debug("gmail token refreshed", zap.String("user_id", userID))

	return token.AccessToken, conn.Email, nil
}
