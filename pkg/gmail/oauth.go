package gmail

import (
	"context"
	"fmt"

	"mailpilot-backend/pkg/apperrors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Delegated scopes requested when a user connects their account.
var connectScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/userinfo.email",
}

// OAuthService wraps the Google OAuth endpoints used by the connect flow and
// token refresher.
type OAuthService struct {
	config *oauth2.Config
}

func NewOAuthService(clientID, clientSecret, redirectURI string) *OAuthService {
	return &OAuthService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       connectScopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthCodeURL builds the consent URL. Offline access with a forced consent
// prompt so Google issues a refresh token.
func (s *OAuthService) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for tokens.
func (s *OAuthService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", apperrors.ErrUpstream, err)
	}
	return token, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *OAuthService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh failed: %v", apperrors.ErrUpstream, err)
	}
	return token, nil
}

// UserEmail resolves the email address the token was granted for.
func (s *OAuthService) UserEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	srv, err := oauth2api.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return "", fmt.Errorf("%w: unable to create userinfo client: %v", apperrors.ErrUpstream, err)
	}

	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: unable to retrieve userinfo: %v", apperrors.ErrUpstream, err)
	}

	return info.Email, nil
}
