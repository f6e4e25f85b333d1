// Package email delivers booking notifications. Resend is used when an API
// key is configured; otherwise mail is logged and kept in memory.
package email

import (
	"context"
	"time"
)

// Message is one outgoing notification to a single member.
type Message struct {
	To      string
	Subject string
	HTML    string
	From    string // empty uses the sender default
	ReplyTo string // empty uses the sender default
	Kind    string // booking change kind, attached as a delivery tag
}

// Receipt is the provider's acknowledgement of a Message.
type Receipt struct {
	ProviderID string
	AcceptedAt time.Time
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
