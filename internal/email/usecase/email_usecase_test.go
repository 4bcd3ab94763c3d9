package usecase

import (
	"context"
	"fmt"
	"testing"

	"mailpilot-backend/internal/activity"
	activitydomain "mailpilot-backend/internal/activity/domain"
	activityRepo "mailpilot-backend/internal/activity/repository"
	emaildomain "mailpilot-backend/internal/email/domain"
	emailRepo "mailpilot-backend/internal/email/repository"
	gmailusecase "mailpilot-backend/internal/gmail/usecase"
	"mailpilot-backend/pkg/apperrors"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const validSummaryJSON = `{
  "summary": "Alice asks for the Q3 report by Friday.",
  "actionItems": ["Send the Q3 report"],
  "priority": "high",
  "suggestedReply": "On it, you'll have it by Thursday.",
  "category": "work"
}`

type fakeConnections struct {
	token string
	err   error
}

func (f *fakeConnections) AuthURL(userID string) string { return "" }
func (f *fakeConnections) HandleCallback(ctx context.Context, code, state string) error {
	return nil
}
func (f *fakeConnections) Status(userID string) (*gmailusecase.ConnectionStatus, error) {
	return nil, nil
}
func (f *fakeConnections) Disconnect(userID string) error { return nil }
func (f *fakeConnections) ResolveAccessToken(ctx context.Context, userID string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.token, "user@example.com", nil
}

type fakeMailProvider struct {
	emails   map[string]*emaildomain.Email
	listed   []*emaildomain.Email
	getCalls int
}

func (f *fakeMailProvider) ListEmails(ctx context.Context, accessToken string, opts emaildomain.ListOptions) ([]*emaildomain.Email, error) {
	return f.listed, nil
}

func (f *fakeMailProvider) GetEmail(ctx context.Context, accessToken, emailID string) (*emaildomain.Email, error) {
	f.getCalls++
	email, ok := f.emails[emailID]
	if !ok {
		return nil, fmt.Errorf("%w: unable to retrieve message", apperrors.ErrUpstream)
	}
	return email, nil
}

func (f *fakeMailProvider) SendReply(ctx context.Context, accessToken string, reply emaildomain.OutgoingReply) error {
	return nil
}

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testEmail(id string) *emaildomain.Email {
	return &emaildomain.Email{
		ID:       id,
		ThreadID: "thread-" + id,
		From:     "alice@example.com",
		Subject:  "Q3 report",
		Date:     "Mon, 24 Aug 2026 10:00:00 +0000",
		Body:     "Please send the Q3 report by Friday.",
	}
}

func newTestEmailUsecase(t *testing.T, provider *fakeMailProvider, llm *fakeLLM) EmailUsecase {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&emaildomain.EmailSummary{}, &activitydomain.ActivityLog{}))

	recorder := activity.NewRecorder(activityRepo.NewActivityLogRepository(db), zap.NewNop())
	return NewEmailUsecase(
		emailRepo.NewEmailSummaryRepository(db),
		&fakeConnections{token: "token"},
		provider,
		llm,
		recorder,
		zap.NewNop(),
		3,
	)
}

func TestSummarizeComputesOnceAndCaches(t *testing.T) {
	provider := &fakeMailProvider{emails: map[string]*emaildomain.Email{"abc123": testEmail("abc123")}}
	llm := &fakeLLM{response: validSummaryJSON}
	uc := newTestEmailUsecase(t, provider, llm)

	first, err := uc.Summarize(context.Background(), "user-1", "abc123")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "high", first.Summary.Priority)
	assert.Equal(t, 1, llm.calls)

	second, err := uc.Summarize(context.Background(), "user-1", "abc123")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, 1, llm.calls, "cache hit must not call the model again")
}

func TestSummarizeToleratesSurroundingProse(t *testing.T) {
	provider := &fakeMailProvider{emails: map[string]*emaildomain.Email{"abc123": testEmail("abc123")}}
	llm := &fakeLLM{response: "Sure! Here is the analysis:\n" + validSummaryJSON + "\nLet me know if you need more."}
	uc := newTestEmailUsecase(t, provider, llm)

	result, err := uc.Summarize(context.Background(), "user-1", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "work", result.Summary.Category)
	require.NotNil(t, result.Summary.SuggestedReply)
}

func TestSummarizeFailsWithoutJSON(t *testing.T) {
	provider := &fakeMailProvider{emails: map[string]*emaildomain.Email{"abc123": testEmail("abc123")}}
	llm := &fakeLLM{response: "I could not analyze this email."}
	uc := newTestEmailUsecase(t, provider, llm)

	_, err := uc.Summarize(context.Background(), "user-1", "abc123")
	assert.ErrorIs(t, err, apperrors.ErrSummaryParse)
}

func TestSummarizeRejectsSchemaViolations(t *testing.T) {
	provider := &fakeMailProvider{emails: map[string]*emaildomain.Email{"abc123": testEmail("abc123")}}
	llm := &fakeLLM{response: `{"summary": "x", "actionItems": [], "priority": "urgent", "suggestedReply": null, "category": "work"}`}
	uc := newTestEmailUsecase(t, provider, llm)

	_, err := uc.Summarize(context.Background(), "user-1", "abc123")
	assert.ErrorIs(t, err, apperrors.ErrSummarySchema)
}

func TestSummarizeAllCapsAtTen(t *testing.T) {
	provider := &fakeMailProvider{emails: map[string]*emaildomain.Email{}}
	ids := make([]string, 12)
	for i := range ids {
		id := fmt.Sprintf("email-%d", i)
		ids[i] = id
		provider.emails[id] = testEmail(id)
	}
	llm := &fakeLLM{response: validSummaryJSON}
	uc := newTestEmailUsecase(t, provider, llm)

	results, err := uc.SummarizeAll(context.Background(), "user-1", ids)
	require.NoError(t, err)
	assert.Len(t, results, 10)
	assert.Equal(t, 10, llm.calls)
	for i, result := range results {
		assert.Equal(t, ids[i], result.EmailID)
		assert.Empty(t, result.Error)
	}
}

func TestSummarizeAllIsolatesFailures(t *testing.T) {
	provider := &fakeMailProvider{emails: map[string]*emaildomain.Email{
		"good-1": testEmail("good-1"),
		"good-2": testEmail("good-2"),
	}}
	llm := &fakeLLM{response: validSummaryJSON}
	uc := newTestEmailUsecase(t, provider, llm)

	results, err := uc.SummarizeAll(context.Background(), "user-1", []string{"good-1", "missing", "good-2"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NotNil(t, results[0].Summary)
	assert.Empty(t, results[0].Error)

	assert.Nil(t, results[1].Summary)
	assert.NotEmpty(t, results[1].Error)

	// The failing middle item must not abort the last one.
	assert.NotNil(t, results[2].Summary)
	assert.Empty(t, results[2].Error)
}

func TestListEmailsAnnotatesCachedSummaries(t *testing.T) {
	provider := &fakeMailProvider{
		emails: map[string]*emaildomain.Email{"abc123": testEmail("abc123")},
		listed: []*emaildomain.Email{testEmail("abc123"), testEmail("def456")},
	}
	llm := &fakeLLM{response: validSummaryJSON}
	uc := newTestEmailUsecase(t, provider, llm)

	_, err := uc.Summarize(context.Background(), "user-1", "abc123")
	require.NoError(t, err)

	result, err := uc.ListEmails(context.Background(), "user-1", 20, 0, "")
	require.NoError(t, err)
	require.Len(t, result.Emails, 2)
	assert.True(t, result.Emails[0].Summarized)
	assert.NotEmpty(t, result.Emails[0].Summary)
	assert.False(t, result.Emails[1].Summarized)
	assert.Equal(t, 3, result.Days)
	assert.Contains(t, result.Query, "after:")
}

func TestListEmailsRawQueryWins(t *testing.T) {
	provider := &fakeMailProvider{listed: []*emaildomain.Email{}}
	uc := newTestEmailUsecase(t, provider, &fakeLLM{})

	result, err := uc.ListEmails(context.Background(), "user-1", 20, 7, "is:starred")
	require.NoError(t, err)
	assert.Equal(t, "is:starred", result.Query)
	assert.Zero(t, result.Days)
}

func TestListEmailsRequiresConnection(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&emaildomain.EmailSummary{}, &activitydomain.ActivityLog{}))
	recorder := activity.NewRecorder(activityRepo.NewActivityLogRepository(db), zap.NewNop())

	uc := NewEmailUsecase(
		emailRepo.NewEmailSummaryRepository(db),
		&fakeConnections{err: apperrors.ErrNotConnected},
		&fakeMailProvider{},
		&fakeLLM{},
		recorder,
		zap.NewNop(),
		3,
	)

	_, err = uc.ListEmails(context.Background(), "user-1", 20, 0, "")
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
}
