package domain

import "context"

// Email is the canonical record derived from a provider message. It is
// reconstructed on every fetch and never persisted.
type Email struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	Snippet  string   `json:"snippet"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Subject  string   `json:"subject"`
	Date     string   `json:"date"`
	Body     string   `json:"body"`
	Labels   []string `json:"labels"`

	// MessageID is the RFC 2822 Message-ID header, kept for reply threading.
	// It is not part of the API payload.
	MessageID string `json:"-"`
}

// ListOptions controls a mailbox listing. Query takes precedence when set;
// otherwise callers derive one from a day window.
type ListOptions struct {
	MaxResults int64
	Query      string
}

// OutgoingReply describes a reply to be sent threaded under an existing
// conversation.
type OutgoingReply struct {
	To        string
	Subject   string
	Body      string
	ThreadID  string
	MessageID string
}

// MailProvider lists, fetches and sends messages on behalf of a user. The
// access token is resolved and refreshed by the caller; implementations never
// renew it themselves.
type MailProvider interface {
	ListEmails(ctx context.Context, accessToken string, opts ListOptions) ([]*Email, error)
	GetEmail(ctx context.Context, accessToken, emailID string) (*Email, error)
	SendReply(ctx context.Context, accessToken string, reply OutgoingReply) error
}

// LLMClient generates a free-form completion for a prompt.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
