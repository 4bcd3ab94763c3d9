package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/pkg/apperrors"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// BodyMaxLength caps the normalized body. Longer bodies are truncated, never
// rejected.
const BodyMaxLength = 10000

const maxConcurrentFetches = 10

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Service talks to the Gmail API with a caller-supplied access token. Token
// refresh happens upstream; the service itself never renews credentials.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) gmailClient(ctx context.Context, accessToken string) (*gmail.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})

	srv, err := gmail.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create Gmail client: %v", apperrors.ErrUpstream, err)
	}
	return srv, nil
}

// ListEmails retrieves recent messages matching opts.Query, in the order the
// provider returns them.
func (s *Service) ListEmails(ctx context.Context, accessToken string, opts emaildomain.ListOptions) ([]*emaildomain.Email, error) {
	srv, err := s.gmailClient(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	user := "me"

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > 500 {
		maxResults = 500 // Gmail API maximum
	}

	listCall := srv.Users.Messages.List(user).MaxResults(maxResults)
	if opts.Query != "" {
		listCall = listCall.Q(opts.Query)
	}

	listResp, err := listCall.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to retrieve messages: %v", apperrors.ErrUpstream, err)
	}

	// Fetch message details in parallel with a bounded number of in-flight
	// requests, writing each result into its list slot to keep provider order.
	emails := make([]*emaildomain.Email, len(listResp.Messages))
	errs := make([]error, len(listResp.Messages))
	semaphore := make(chan struct{}, maxConcurrentFetches)
	done := make(chan int, len(listResp.Messages))

	for i, msg := range listResp.Messages {
		go func(idx int, msgID string) {
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			fullMsg, err := srv.Users.Messages.Get(user, msgID).Format("full").Context(ctx).Do()
			if err != nil {
				errs[idx] = err
				done <- idx
				return
			}
			emails[idx] = normalizeMessage(fullMsg)
			done <- idx
		}(i, msg.Id)
	}

	for range listResp.Messages {
		<-done
	}

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%w: unable to retrieve message details: %v", apperrors.ErrUpstream, err)
		}
	}

	return emails, nil
}

// GetEmail retrieves and normalizes a single message.
func (s *Service) GetEmail(ctx context.Context, accessToken, emailID string) (*emaildomain.Email, error) {
	srv, err := s.gmailClient(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", emailID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to retrieve message: %v", apperrors.ErrUpstream, err)
	}

	return normalizeMessage(msg), nil
}

// SendReply submits a plain-text RFC 2822 reply threaded under the original
// conversation.
func (s *Service) SendReply(ctx context.Context, accessToken string, reply emaildomain.OutgoingReply) error {
	srv, err := s.gmailClient(ctx, accessToken)
	if err != nil {
		return err
	}

	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(buildRawReply(reply)),
		ThreadId: reply.ThreadID,
	}

	if _, err := srv.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: unable to send reply: %v", apperrors.ErrUpstream, err)
	}

	return nil
}

func buildRawReply(reply emaildomain.OutgoingReply) []byte {
	var raw bytes.Buffer

	raw.WriteString(fmt.Sprintf("To: %s\r\n", reply.To))
	raw.WriteString(fmt.Sprintf("Subject: %s\r\n", reply.Subject))
	raw.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	raw.WriteString("MIME-Version: 1.0\r\n")
	if reply.MessageID != "" {
		raw.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", reply.MessageID))
		raw.WriteString(fmt.Sprintf("References: %s\r\n", reply.MessageID))
	}
	raw.WriteString("\r\n")
	raw.WriteString(reply.Body)

	return raw.Bytes()
}

// Helper functions

func normalizeMessage(msg *gmail.Message) *emaildomain.Email {
	headers := msg.Payload.Headers

	body := extractBody(msg.Payload)
	if len(body) > BodyMaxLength {
		body = body[:BodyMaxLength]
	}

	return &emaildomain.Email{
		ID:        msg.Id,
		ThreadID:  msg.ThreadId,
		Snippet:   msg.Snippet,
		From:      getHeader(headers, "From"),
		To:        getHeader(headers, "To"),
		Subject:   getHeader(headers, "Subject"),
		Date:      getHeader(headers, "Date"),
		Body:      body,
		Labels:    msg.LabelIds,
		MessageID: getHeader(headers, "Message-ID"),
	}
}

// extractBody picks the message body in priority order: first text/plain part,
// then first text/html part with markup stripped, then the top-level body.
func extractBody(payload *gmail.MessagePart) string {
	if len(payload.Parts) > 0 {
		if part := findPart(payload.Parts, "text/plain"); part != nil {
			return decodeBody(part.Body.Data)
		}
		if part := findPart(payload.Parts, "text/html"); part != nil {
			return StripHTML(decodeBody(part.Body.Data))
		}
		return ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		body := decodeBody(payload.Body.Data)
		if payload.MimeType == "text/html" {
			return StripHTML(body)
		}
		return body
	}

	return ""
}

func findPart(parts []*gmail.MessagePart, mimeType string) *gmail.MessagePart {
	for _, part := range parts {
		if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
			return part
		}
		if len(part.Parts) > 0 {
			if found := findPart(part.Parts, mimeType); found != nil {
				return found
			}
		}
	}
	return nil
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail omits padding on some payloads
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// StripHTML removes markup and collapses runs of whitespace to single spaces.
func StripHTML(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	return strings.Join(strings.Fields(text), " ")
}

// getHeader looks up a header value by name, case-insensitively. A missing
// header yields an empty string.
func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}
