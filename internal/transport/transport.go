// ABOUTME: Transport-neutral chat message types and the outbound send interface
// ABOUTME: Bridges convert platform events into Inbound and implement Sender

package transport

import (
	"context"
	"time"
)

// Inbound is one customer message as delivered by a chat transport.
type Inbound struct {
	// ID is the transport's event ID, used to drop redeliveries.
	ID string
	// SenderID identifies the conversation; replies go back to it.
	SenderID string
	Body     string
	HasMedia bool
	// MediaURI points at the attachment when HasMedia is set.
	MediaURI  string
	Timestamp time.Time

	FromSelf        bool
	StatusBroadcast bool
	Group           bool
}

// Outbound is one message to send. HTML, when set, is a rich rendering of Text
// for transports that support it.
type Outbound struct {
	Text string
	HTML string
}

// Text builds a plain-text outbound message.
func Text(s string) Outbound { return Outbound{Text: s} }

// Sender delivers messages to a recipient.
type Sender interface {
	Send(ctx context.Context, recipientID string, msg Outbound) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, recipientID string, msg Outbound) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, recipientID string, msg Outbound) error {
	return f(ctx, recipientID, msg)
}

// Handler consumes inbound messages.
type Handler interface {
	HandleInbound(ctx context.Context, msg Inbound)
}
