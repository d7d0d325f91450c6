// ABOUTME: In-memory Sender that records outbound messages
// ABOUTME: Used in tests to capture what the engine and notifier send

package transport

import (
	"context"
	"sync"
)

// Sent is one recorded delivery.
type Sent struct {
	To  string
	Msg Outbound
}

// Recorder is a Sender that keeps every message it is given. Err, when set,
// is returned from Send after recording.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// Send records the message.
func (r *Recorder) Send(ctx context.Context, recipientID string, msg Outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{To: recipientID, Msg: msg})
	return r.Err
}

// Sent returns a copy of everything sent so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Texts returns the text of every message sent to recipientID, in order.
func (r *Recorder) Texts(recipientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.sent {
		if s.To == recipientID {
			out = append(out, s.Msg.Text)
		}
	}
	return out
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
