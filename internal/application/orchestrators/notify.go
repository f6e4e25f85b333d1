package orchestrators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	emailAdapter "gymdesk/internal/adapters/email"
	"gymdesk/internal/application/events"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// mailRenderer turns notification markdown into HTML. Raw HTML in course
// titles is escaped.
var mailRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// BookingEmailExecutor sends the confirmation mail queued by a registration change.
type BookingEmailExecutor struct {
	Accounts BookingAccountStore
	Courses  BookingCourseStore
	Sender   emailAdapter.Sender
	From     string
}

// Execute renders and sends one booking email.
// PRE: payload is valid JSON matching BookingEmailPayload
// POST: email accepted by the sender, returns the provider message ID
// INVARIANT: outbox entry status managed by caller
func (e *BookingEmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p BookingEmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}

	acct, err := e.Accounts.GetByID(ctx, p.UserID)
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}
	c, err := e.Courses.GetByID(ctx, p.CourseID)
	if err != nil {
		return "", fmt.Errorf("load course: %w", err)
	}

	subject, body := bookingMessage(p.Kind, acct.DisplayName, c.Title, c.CourseDate, c.StartTime)
	var buf bytes.Buffer
	if err := mailRenderer.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}

	receipt, err := e.Sender.Send(ctx, emailAdapter.Message{
		To:      acct.Email,
		From:    e.From,
		Subject: subject,
		HTML:    buf.String(),
		Kind:    p.Kind,
	})
	if err != nil {
		return "", err
	}
	slog.Info("booking_email_sent", "kind", p.Kind, "registration_id", p.RegistrationID, "provider_id", receipt.ProviderID)
	return receipt.ProviderID, nil
}

// bookingMessage returns the subject and markdown body for a change kind.
func bookingMessage(kind, name, title, date, start string) (string, string) {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	when := fmt.Sprintf("%s at %s", date, start)
	var subject, line string
	switch kind {
	case events.KindRegistered:
		subject = "You're booked: " + title
		line = fmt.Sprintf("Your place in **%s** on %s is confirmed.", title, when)
	case events.KindWaitlisted:
		subject = "Waitlisted: " + title
		line = fmt.Sprintf("**%s** on %s is full. You're on the waitlist and we'll email you if a place opens.", title, when)
	case events.KindPromoted:
		subject = "A place opened up: " + title
		line = fmt.Sprintf("Good news, you moved off the waitlist. Your place in **%s** on %s is confirmed.", title, when)
	case events.KindCancelled:
		subject = "Cancelled: " + title
		line = fmt.Sprintf("Your booking for **%s** on %s has been cancelled.", title, when)
	default:
		subject = "Booking update: " + title
		line = fmt.Sprintf("Your booking for **%s** on %s changed.", title, when)
	}
	return subject, fmt.Sprintf("Hi %s,\n\n%s\n\nSee you at the gym.\n", name, line)
}
