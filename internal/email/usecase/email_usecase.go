package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mailpilot-backend/internal/activity"
	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/repository"
	gmailusecase "mailpilot-backend/internal/gmail/usecase"
	"mailpilot-backend/pkg/apperrors"
	"mailpilot-backend/pkg/keymutex"

	"go.uber.org/zap"
)

const (
	// summaryBodyLimit caps how much of the body is embedded in the
	// summarization prompt.
	summaryBodyLimit = 4000
	// batchLimit caps a summarize-all call; extra ids are silently dropped.
	batchLimit = 10

	llmCallTimeout = 30 * time.Second
)

// EmailWithSummary is a normalized email annotated with its cached summary,
// when one exists.
type EmailWithSummary struct {
	*emaildomain.Email
	Summary    json.RawMessage `json:"summary"`
	Summarized bool            `json:"summarized"`
}

// ListResult is the payload for a mailbox listing.
type ListResult struct {
	Emails []*EmailWithSummary `json:"emails"`
	Query  string              `json:"query,omitempty"`
	Days   int                 `json:"days,omitempty"`
}

// SummarizeResult carries one email's summary and whether it came from cache.
type SummarizeResult struct {
	Summary *emaildomain.SummaryData `json:"summary"`
	Cached  bool                     `json:"cached"`
}

// BatchItemResult is one entry of a summarize-all response. A failed item
// carries its error text and never aborts its siblings.
type BatchItemResult struct {
	EmailID string                   `json:"emailId"`
	Summary *emaildomain.SummaryData `json:"summary,omitempty"`
	Cached  bool                     `json:"cached"`
	Error   string                   `json:"error,omitempty"`
}

// EmailUsecase fetches mailbox listings and produces cached AI summaries.
type EmailUsecase interface {
	ListEmails(ctx context.Context, userID string, maxResults, days int, query string) (*ListResult, error)
	Summarize(ctx context.Context, userID, emailID string) (*SummarizeResult, error)
	SummarizeAll(ctx context.Context, userID string, emailIDs []string) ([]BatchItemResult, error)
}

// emailUsecase implements EmailUsecase interface
type emailUsecase struct {
	summaryRepo  repository.EmailSummaryRepository
	connections  gmailusecase.ConnectionUsecase
	mailProvider emaildomain.MailProvider
	llm          emaildomain.LLMClient
	recorder     *activity.Recorder
	logger       *zap.Logger
	inFlight     *keymutex.KeyMutex
	defaultDays  int
}

// NewEmailUsecase creates a new instance of emailUsecase
func NewEmailUsecase(summaryRepo repository.EmailSummaryRepository, connections gmailusecase.ConnectionUsecase, mailProvider emaildomain.MailProvider, llm emaildomain.LLMClient, recorder *activity.Recorder, logger *zap.Logger, defaultDays int) EmailUsecase {
	if defaultDays <= 0 {
		defaultDays = 3
	}
	return &emailUsecase{
		summaryRepo:  summaryRepo,
		connections:  connections,
		mailProvider: mailProvider,
		llm:          llm,
		recorder:     recorder,
		logger:       logger,
		inFlight:     keymutex.New(),
		defaultDays:  defaultDays,
	}
}

func (u *emailUsecase) ListEmails(ctx context.Context, userID string, maxResults, days int, query string) (*ListResult, error) {
	accessToken, _, err := u.connections.ResolveAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A raw query wins; otherwise the day window is turned into a provider
	// date filter.
	effectiveDays := 0
	if query == "" {
		if days <= 0 {
			days = u.defaultDays
		}
		since := time.Now().AddDate(0, 0, -days)
		query = fmt.Sprintf("after:%s", since.Format("2006/01/02"))
		effectiveDays = days
	}

	if maxResults <= 0 {
		maxResults = 20
	}

	emails, err := u.mailProvider.ListEmails(ctx, accessToken, emaildomain.ListOptions{
		MaxResults: int64(maxResults),
		Query:      query,
	})
	if err != nil {
		return nil, err
	}

	emailIDs := make([]string, 0, len(emails))
	for _, email := range emails {
		emailIDs = append(emailIDs, email.ID)
	}

	cached, err := u.summaryRepo.GetSummaries(userID, emailIDs)
	if err != nil {
		return nil, err
	}

	annotated := make([]*EmailWithSummary, 0, len(emails))
	for _, email := range emails {
		item := &EmailWithSummary{Email: email}
		if data, ok := cached[email.ID]; ok {
			item.Summary = json.RawMessage(data)
			item.Summarized = true
		}
		annotated = append(annotated, item)
	}

	u.recorder.Record(userID, "fetch_emails", map[string]interface{}{
		"count": len(emails),
		"query": query,
	})

	return &ListResult{Emails: annotated, Query: query, Days: effectiveDays}, nil
}

func (u *emailUsecase) Summarize(ctx context.Context, userID, emailID string) (*SummarizeResult, error) {
	// One computation per (user, email) pair at a time; racing requests block
	// here and then hit the cache.
	key := userID + "/" + emailID
	u.inFlight.Lock(key)
	defer u.inFlight.Unlock(key)

	return u.summarizeLocked(ctx, userID, emailID)
}

func (u *emailUsecase) summarizeLocked(ctx context.Context, userID, emailID string) (*SummarizeResult, error) {
	existing, err := u.summaryRepo.GetSummary(userID, emailID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		var data emaildomain.SummaryData
		if err := json.Unmarshal([]byte(existing.SummaryData), &data); err != nil {
			return nil, fmt.Errorf("%w: stored summary corrupt: %v", apperrors.ErrSummaryParse, err)
		}
		return &SummarizeResult{Summary: &data, Cached: true}, nil
	}

	accessToken, _, err := u.connections.ResolveAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	email, err := u.mailProvider.GetEmail(ctx, accessToken, emailID)
	if err != nil {
		return nil, err
	}

	summary, err := u.generateSummary(ctx, email)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	record := &emaildomain.EmailSummary{
		UserID:       userID,
		EmailID:      emailID,
		EmailSubject: email.Subject,
		EmailFrom:    email.From,
		SummaryData:  string(raw),
	}
	if err := u.summaryRepo.Insert(record); err != nil {
		return nil, err
	}

	u.recorder.Record(userID, "summarize_email", map[string]interface{}{
		"email_id": emailID,
		"subject":  email.Subject,
		"priority": summary.Priority,
	})

	return &SummarizeResult{Summary: summary, Cached: false}, nil
}

func (u *emailUsecase) SummarizeAll(ctx context.Context, userID string, emailIDs []string) ([]BatchItemResult, error) {
	if len(emailIDs) > batchLimit {
		emailIDs = emailIDs[:batchLimit]
	}

	// Sequential by design: bounds per-call cost and keeps the LLM provider's
	// rate limits out of reach.
	results := make([]BatchItemResult, 0, len(emailIDs))
	for _, emailID := range emailIDs {
		item, err := u.Summarize(ctx, userID, emailID)
		if err != nil {
			u.logger.Warn("batch summarize item failed",
				zap.String("user_id", userID),
				zap.String("email_id", emailID),
				zap.Error(err))
			results = append(results, BatchItemResult{EmailID: emailID, Error: err.Error()})
			continue
		}
		results = append(results, BatchItemResult{EmailID: emailID, Summary: item.Summary, Cached: item.Cached})
	}

	u.recorder.Record(userID, "batch_summarize", map[string]interface{}{
		"count": len(results),
	})

	return results, nil
}

func (u *emailUsecase) generateSummary(ctx context.Context, email *emaildomain.Email) (*emaildomain.SummaryData, error) {
	prompt := buildSummaryPrompt(email)

	llmCtx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	text, err := u.llm.Complete(llmCtx, prompt)
	if err != nil {
		return nil, err
	}

	summary, err := parseSummary(text)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func buildSummaryPrompt(email *emaildomain.Email) string {
	body := email.Body
	if len(body) > summaryBodyLimit {
		body = body[:summaryBodyLimit]
	}

	return fmt.Sprintf(`You are an email assistant. Analyze this email and provide:
1. A concise summary (2-3 sentences)
2. Any action items or instructions found in the email
3. Priority level: high, medium, or low
4. Suggested response (if a reply seems needed, otherwise null)

Email:
From: %s
Subject: %s
Date: %s
Body:
%s

Respond in JSON format only, no other text:
{
  "summary": "...",
  "actionItems": ["..."],
  "priority": "high|medium|low",
  "suggestedReply": "..." or null,
  "category": "work|personal|newsletter|notification|spam|other"
}`, email.From, email.Subject, email.Date, body)
}

// parseSummary extracts the JSON object from the model output, tolerating
// surrounding prose, and validates it against the summary schema.
func parseSummary(text string) (*emaildomain.SummaryData, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", apperrors.ErrSummaryParse)
	}

	var summary emaildomain.SummaryData
	if err := json.Unmarshal([]byte(text[start:end+1]), &summary); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSummaryParse, err)
	}

	if !summary.Valid() {
		return nil, fmt.Errorf("%w: priority %q, category %q", apperrors.ErrSummarySchema, summary.Priority, summary.Category)
	}

	if summary.ActionItems == nil {
		summary.ActionItems = []string{}
	}

	return &summary, nil
}
