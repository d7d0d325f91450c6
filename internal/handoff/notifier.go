// ABOUTME: Hand-off notifier that tells a human operator a conversation needs them
// ABOUTME: Renders a Markdown notice, converts it to HTML with goldmark, and records it in the ledger

package handoff

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/intake-gateway/internal/messages"
	"github.com/2389/intake-gateway/internal/session"
	"github.com/2389/intake-gateway/internal/store"
	"github.com/2389/intake-gateway/internal/transport"
)

// Request describes a conversation being handed to a human.
type Request struct {
	ChatID    string
	Category  string
	Data      session.Intake
	StartedAt time.Time
	At        time.Time
}

// HasMedia reports whether the customer attached a photo.
func (r Request) HasMedia() bool { return r.Data.Photo != nil }

// Ledger stores delivered and failed hand-offs.
type Ledger interface {
	RecordHandoff(ctx context.Context, h *store.Handoff) error
}

// Notifier delivers hand-off notices to the operator address.
type Notifier struct {
	sender   transport.Sender
	operator string
	ledger   Ledger
	loc      *time.Location
	md       goldmark.Markdown
	logger   *slog.Logger
}

// New creates a Notifier. An empty operator disables delivery; hand-offs are
// then only logged and recorded. ledger may be nil.
func New(sender transport.Sender, operator string, ledger Ledger, loc *time.Location, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Notifier{
		sender:   sender,
		operator: operator,
		ledger:   ledger,
		loc:      loc,
		md:       goldmark.New(),
		logger:   logger.With("component", "handoff"),
	}
}

const timestampLayout = "02/01/2006 15:04:05"

// Render builds the Markdown notice for req.
func (n *Notifier) Render(req Request) string {
	var b strings.Builder
	b.WriteString("**ATENDIMENTO HUMANO SOLICITADO**\n\n")
	fmt.Fprintf(&b, "- **Cliente:** %s\n", req.ChatID)
	fmt.Fprintf(&b, "- **Tipo:** %s\n", req.Category)
	fmt.Fprintf(&b, "- **Horário:** %s\n", req.At.In(n.loc).Format(timestampLayout))
	if !req.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- **Iniciado em:** %s\n", req.StartedAt.In(n.loc).Format(timestampLayout))
	}

	if lines := messages.SummaryLines(req.Data); len(lines) > 0 {
		b.WriteString("\n**Informações coletadas:**\n\n")
		for _, l := range lines {
			b.WriteString("- " + strings.TrimPrefix(l, "• ") + "\n")
		}
	}

	if req.HasMedia() {
		b.WriteString("\n**MÍDIA:** Cliente enviou foto(s)")
		if uri := req.Data.Photo.URI; uri != "" {
			b.WriteString(" (" + uri + ")")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n_Atendente deve assumir a conversa manualmente._\n")
	return b.String()
}

// Notify delivers the notice and records the outcome. Failures are logged and
// never returned: the customer-facing flow must finish regardless.
func (n *Notifier) Notify(ctx context.Context, req Request) {
	body := n.Render(req)
	rec := &store.Handoff{
		SessionID: req.ChatID,
		Category:  req.Category,
		Summary:   body,
		HasMedia:  req.HasMedia(),
		CreatedAt: req.At,
	}

	logger := n.logger.With("chat", req.ChatID, "category", req.Category)

	switch {
	case n.operator == "":
		logger.Warn("hand-off requested but no operator address is configured")
		rec.Error = "no operator address configured"
	case n.sender == nil:
		logger.Warn("hand-off requested but no transport is available")
		rec.Error = "no transport"
	default:
		msg := transport.Outbound{Text: body, HTML: n.toHTML(body)}
		if err := n.sender.Send(ctx, n.operator, msg); err != nil {
			logger.Error("failed to deliver hand-off notice", "operator", n.operator, "error", err)
			rec.Error = err.Error()
		} else {
			rec.Delivered = true
			logger.Info("hand-off notice delivered", "operator", n.operator, "media", rec.HasMedia)
		}
	}

	if n.ledger != nil {
		if err := n.ledger.RecordHandoff(ctx, rec); err != nil {
			logger.Error("failed to record hand-off", "error", err)
		}
	}
}

func (n *Notifier) toHTML(md string) string {
	var buf bytes.Buffer
	if err := n.md.Convert([]byte(md), &buf); err != nil {
		n.logger.Error("failed to convert hand-off notice to HTML", "error", err)
		return ""
	}
	return buf.String()
}
