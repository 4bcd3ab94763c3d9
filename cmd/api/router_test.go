package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	actionDelivery "mailpilot-backend/internal/action/delivery"
	actionUsecase "mailpilot-backend/internal/action/usecase"
	"mailpilot-backend/internal/activity"
	activitydomain "mailpilot-backend/internal/activity/domain"
	activityRepo "mailpilot-backend/internal/activity/repository"
	emailDelivery "mailpilot-backend/internal/email/delivery"
	emaildomain "mailpilot-backend/internal/email/domain"
	emailRepo "mailpilot-backend/internal/email/repository"
	emailUsecase "mailpilot-backend/internal/email/usecase"
	gmailDelivery "mailpilot-backend/internal/gmail/delivery"
	gmaildomain "mailpilot-backend/internal/gmail/domain"
	gmailRepo "mailpilot-backend/internal/gmail/repository"
	gmailUsecase "mailpilot-backend/internal/gmail/usecase"
	"mailpilot-backend/pkg/apperrors"
	"mailpilot-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

type fakeOAuth struct{}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}
func (f *fakeOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "granted"}, nil
}
func (f *fakeOAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "refreshed"}, nil
}
func (f *fakeOAuth) UserEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	return "connected@example.com", nil
}

type fakeMailProvider struct {
	emails map[string]*emaildomain.Email
	sent   []emaildomain.OutgoingReply
}

func (f *fakeMailProvider) ListEmails(ctx context.Context, accessToken string, opts emaildomain.ListOptions) ([]*emaildomain.Email, error) {
	emails := make([]*emaildomain.Email, 0, len(f.emails))
	for _, email := range f.emails {
		emails = append(emails, email)
	}
	return emails, nil
}

func (f *fakeMailProvider) GetEmail(ctx context.Context, accessToken, emailID string) (*emaildomain.Email, error) {
	email, ok := f.emails[emailID]
	if !ok {
		return nil, fmt.Errorf("%w: unable to retrieve message", apperrors.ErrUpstream)
	}
	return email, nil
}

func (f *fakeMailProvider) SendReply(ctx context.Context, accessToken string, reply emaildomain.OutgoingReply) error {
	f.sent = append(f.sent, reply)
	return nil
}

type fakeLLM struct {
	response string
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, nil
}

type testEnv struct {
	engine      *gin.Engine
	db          *gorm.DB
	provider    *fakeMailProvider
	llm         *fakeLLM
	summaryRepo emailRepo.EmailSummaryRepository
	connRepo    gmailRepo.ConnectionRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&gmaildomain.GmailConnection{}, &emaildomain.EmailSummary{}, &activitydomain.ActivityLog{}))

	cfg := &config.Config{
		Port:             "8080",
		JWTSecret:        testJWTSecret,
		FrontendURL:      "http://localhost:5173",
		EmailDefaultDays: 3,
	}

	logger := zap.NewNop()
	provider := &fakeMailProvider{emails: map[string]*emaildomain.Email{}}
	llm := &fakeLLM{response: `{"summary":"s","actionItems":[],"priority":"low","suggestedReply":null,"category":"other"}`}

	connRepo := gmailRepo.NewConnectionRepository(db)
	summaryRepo := emailRepo.NewEmailSummaryRepository(db)
	recorder := activity.NewRecorder(activityRepo.NewActivityLogRepository(db), logger)

	connections := gmailUsecase.NewConnectionUsecase(connRepo, &fakeOAuth{}, recorder, logger)
	emails := emailUsecase.NewEmailUsecase(summaryRepo, connections, provider, llm, recorder, logger, cfg.EmailDefaultDays)
	actions := actionUsecase.NewActionUsecase(connections, provider, llm, recorder)

	handler := NewHandler(cfg,
		gmailDelivery.NewConnectionHandler(connections, cfg.FrontendURL, logger),
		emailDelivery.NewEmailHandler(emails),
		actionDelivery.NewActionHandler(actions),
		recorder,
	)

	return &testEnv{
		engine:      handler.Engine(),
		db:          db,
		provider:    provider,
		llm:         llm,
		summaryRepo: summaryRepo,
		connRepo:    connRepo,
	}
}

func sessionToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   "user@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) connectUser(t *testing.T, userID string) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	require.NoError(t, e.connRepo.Upsert(&gmaildomain.GmailConnection{
		UserID:      userID,
		Email:       "connected@example.com",
		AccessToken: "stored-token",
		TokenExpiry: &future,
	}))
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.engine.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestListEmailsRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/emails", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestListEmailsWithoutConnectionReturns403(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/emails", sessionToken(t, "user-1"), nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "Gmail not connected")
}

func TestSummarizeServesCachedRecordWithoutModelCall(t *testing.T) {
	env := newTestEnv(t)
	env.connectUser(t, "user-1")

	stored := `{"summary":"cached summary","actionItems":["follow up"],"priority":"medium","suggestedReply":null,"category":"work"}`
	require.NoError(t, env.summaryRepo.Insert(&emaildomain.EmailSummary{
		UserID:      "user-1",
		EmailID:     "abc123",
		SummaryData: stored,
	}))

	resp := env.request(t, http.MethodPost, "/api/emails/abc123/summarize", sessionToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Summary emaildomain.SummaryData `json:"summary"`
		Cached  bool                    `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Cached)
	assert.Equal(t, "cached summary", body.Summary.Summary)
	assert.Zero(t, env.llm.calls)
}

func TestSummarizeAllRejectsMissingIDs(t *testing.T) {
	env := newTestEnv(t)
	env.connectUser(t, "user-1")

	resp := env.request(t, http.MethodPost, "/api/emails/summarize-all", sessionToken(t, "user-1"), map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReplyThreadsUnderOriginalMessage(t *testing.T) {
	env := newTestEnv(t)
	env.connectUser(t, "user-1")
	env.provider.emails["abc123"] = &emaildomain.Email{
		ID:       "abc123",
		ThreadID: "thread-1",
		From:     "alice@example.com",
		Subject:  "Planning",
	}

	resp := env.request(t, http.MethodPost, "/api/actions/reply", sessionToken(t, "user-1"), map[string]string{
		"emailId":   "abc123",
		"replyBody": "Works for me.",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])

	require.Len(t, env.provider.sent, 1)
	assert.Equal(t, "thread-1", env.provider.sent[0].ThreadID)
	assert.Equal(t, "Re: Planning", env.provider.sent[0].Subject)
}

func TestGmailStatusRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/gmail/status", sessionToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var before map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &before))
	assert.Equal(t, false, before["connected"])

	env.connectUser(t, "user-1")

	resp = env.request(t, http.MethodGet, "/api/gmail/status", sessionToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var after map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &after))
	assert.Equal(t, true, after["connected"])
	assert.Equal(t, "connected@example.com", after["email"])
}

func TestDisconnectRemovesConnection(t *testing.T) {
	env := newTestEnv(t)
	env.connectUser(t, "user-1")

	resp := env.request(t, http.MethodPost, "/api/gmail/disconnect", sessionToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	conn, err := env.connRepo.FindByUserID("user-1")
	require.NoError(t, err)
	assert.Nil(t, conn)
}
