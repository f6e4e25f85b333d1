package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("message has no recipient")

// Resend delivers messages through the Resend API.
type Resend struct {
	client  *resend.Client
	from    string
	replyTo string
}

// NewResend creates a Resend sender with default From and Reply-To addresses.
// PRE: apiKey is a Resend API key
func NewResend(apiKey, from, replyTo string) *Resend {
	return &Resend{client: resend.NewClient(apiKey), from: from, replyTo: replyTo}
}

// Send submits msg for delivery.
// POST: on success the receipt carries the Resend email id
func (s *Resend) Send(ctx context.Context, msg Message) (Receipt, error) {
	params, err := s.request(msg)
	if err != nil {
		return Receipt{}, err
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Warn("email_send_failed", "kind", msg.Kind, "error", err)
		return Receipt{}, fmt.Errorf("resend: %w", err)
	}
	slog.Info("email_sent", "kind", msg.Kind, "provider_id", sent.Id)
	return Receipt{ProviderID: sent.Id, AcceptedAt: time.Now()}, nil
}

// request builds the Resend payload, filling sender defaults.
func (s *Resend) request(msg Message) (*resend.SendEmailRequest, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, ErrNoRecipient
	}
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: msg.Subject,
		Html:    msg.HTML,
		ReplyTo: s.replyTo,
	}
	if msg.From != "" {
		req.From = msg.From
	}
	if msg.ReplyTo != "" {
		req.ReplyTo = msg.ReplyTo
	}
	if msg.Kind != "" {
		req.Tags = []resend.Tag{{Name: "booking_kind", Value: msg.Kind}}
	}
	return req, nil
}
