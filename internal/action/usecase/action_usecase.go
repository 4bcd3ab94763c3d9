package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailpilot-backend/internal/activity"
	emaildomain "mailpilot-backend/internal/email/domain"
	gmailusecase "mailpilot-backend/internal/gmail/usecase"
)

const (
	// instructionBodyLimit caps how much of the body is embedded in the
	// instruction prompt.
	instructionBodyLimit = 2000

	llmCallTimeout = 30 * time.Second
)

// ExecuteResult carries the model output together with the email it ran
// against.
type ExecuteResult struct {
	Result string            `json:"result"`
	Email  ExecuteResultMeta `json:"email"`
}

type ExecuteResultMeta struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
}

// ActionUsecase runs free-text instructions against an email and sends
// AI-assisted replies.
type ActionUsecase interface {
	Execute(ctx context.Context, userID, emailID, instruction string) (*ExecuteResult, error)
	SendReply(ctx context.Context, userID, emailID, replyBody string) error
}

// actionUsecase implements ActionUsecase interface
type actionUsecase struct {
	connections  gmailusecase.ConnectionUsecase
	mailProvider emaildomain.MailProvider
	llm          emaildomain.LLMClient
	recorder     *activity.Recorder
}

// NewActionUsecase creates a new instance of actionUsecase
func NewActionUsecase(connections gmailusecase.ConnectionUsecase, mailProvider emaildomain.MailProvider, llm emaildomain.LLMClient, recorder *activity.Recorder) ActionUsecase {
	return &actionUsecase{
		connections:  connections,
		mailProvider: mailProvider,
		llm:          llm,
		recorder:     recorder,
	}
}

func (u *actionUsecase) Execute(ctx context.Context, userID, emailID, instruction string) (*ExecuteResult, error) {
	accessToken, _, err := u.connections.ResolveAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Always against a fresh fetch, never the summary cache.
	email, err := u.mailProvider.GetEmail(ctx, accessToken, emailID)
	if err != nil {
		return nil, err
	}

	llmCtx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	// Raw model text, returned verbatim with no parsing or validation.
	result, err := u.llm.Complete(llmCtx, buildInstructionPrompt(instruction, email))
	if err != nil {
		return nil, err
	}

	u.recorder.Record(userID, "execute_instruction", map[string]interface{}{
		"email_id":    emailID,
		"instruction": instruction,
	})

	return &ExecuteResult{
		Result: result,
		Email:  ExecuteResultMeta{ID: email.ID, Subject: email.Subject},
	}, nil
}

func (u *actionUsecase) SendReply(ctx context.Context, userID, emailID, replyBody string) error {
	accessToken, _, err := u.connections.ResolveAccessToken(ctx, userID)
	if err != nil {
		return err
	}

	email, err := u.mailProvider.GetEmail(ctx, accessToken, emailID)
	if err != nil {
		return err
	}

	reply := emaildomain.OutgoingReply{
		To:        email.From,
		Subject:   replySubject(email.Subject),
		Body:      replyBody,
		ThreadID:  email.ThreadID,
		MessageID: email.MessageID,
	}

	if err := u.mailProvider.SendReply(ctx, accessToken, reply); err != nil {
		return err
	}

	u.recorder.Record(userID, "send_reply", map[string]interface{}{
		"email_id": emailID,
		"to":       email.From,
		"subject":  reply.Subject,
	})

	return nil
}

// replySubject prefixes "Re: " unless the subject already carries one.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}

func buildInstructionPrompt(instruction string, email *emaildomain.Email) string {
	body := email.Body
	if len(body) > instructionBodyLimit {
		body = body[:instructionBodyLimit]
	}

	return fmt.Sprintf(`You are an email assistant. Based on this instruction and email context, generate the appropriate output.

Instruction: %s

Email context:
From: %s
Subject: %s
Body: %s

Provide a helpful, professional response. If the instruction is to draft a reply, write a complete reply email. If it's to summarize, provide a summary. If it's to extract info, extract it clearly.`, instruction, email.From, email.Subject, body)
}
