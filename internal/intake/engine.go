// ABOUTME: Intake engine: dispatch table over conversation steps plus the reset keyword
// ABOUTME: Runs one handler per message inside a store update, then sends replies and hand-offs

package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/intake-gateway/internal/catalog"
	"github.com/2389/intake-gateway/internal/handoff"
	"github.com/2389/intake-gateway/internal/messages"
	"github.com/2389/intake-gateway/internal/session"
	"github.com/2389/intake-gateway/internal/store"
	"github.com/2389/intake-gateway/internal/transport"
)

// Default keywords.
const (
	DefaultResetKeyword = "menu"
	DefaultSkipKeyword  = "pular"
)

// Gate answers whether the shop is attending right now.
type Gate interface {
	IsOpen(now time.Time) bool
	Describe() string
	NextOpening(now time.Time) string
}

// Notifier passes finished conversations to a human operator. It must not
// fail the caller.
type Notifier interface {
	Notify(ctx context.Context, req handoff.Request)
}

// Deps are the collaborators an Engine needs.
type Deps struct {
	Store    store.Store
	Sender   transport.Sender
	Gate     Gate
	Notifier Notifier
	Catalog  *catalog.Catalog
	Messages *messages.Templates

	// ResetKeyword restarts the conversation. Defaults to DefaultResetKeyword.
	ResetKeyword string
	// SkipKeyword skips the photo step. Defaults to DefaultSkipKeyword.
	SkipKeyword string

	Logger *slog.Logger
	Now    func() time.Time
}

type stepHandler func(t *turn) error

// Engine routes inbound messages through the conversation state machine.
type Engine struct {
	store    store.Store
	sender   transport.Sender
	gate     Gate
	notifier Notifier
	catalog  *catalog.Catalog
	text     *messages.Templates
	reset    string
	skip     string
	now      func() time.Time
	logger   *slog.Logger

	handlers [session.NumSteps]stepHandler
}

// New creates an Engine.
func New(d Deps) (*Engine, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("intake: store is required")
	case d.Sender == nil:
		return nil, errors.New("intake: sender is required")
	case d.Gate == nil:
		return nil, errors.New("intake: business-hours gate is required")
	case d.Notifier == nil:
		return nil, errors.New("intake: notifier is required")
	case d.Catalog == nil:
		return nil, errors.New("intake: catalog is required")
	case d.Messages == nil:
		return nil, errors.New("intake: messages are required")
	}
	if err := d.Catalog.Validate(); err != nil {
		return nil, fmt.Errorf("intake: %w", err)
	}

	if d.ResetKeyword == "" {
		d.ResetKeyword = DefaultResetKeyword
	}
	if d.SkipKeyword == "" {
		d.SkipKeyword = DefaultSkipKeyword
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	e := &Engine{
		store:    d.Store,
		sender:   d.Sender,
		gate:     d.Gate,
		notifier: d.Notifier,
		catalog:  d.Catalog,
		text:     d.Messages,
		reset:    strings.ToLower(strings.TrimSpace(d.ResetKeyword)),
		skip:     strings.ToLower(strings.TrimSpace(d.SkipKeyword)),
		now:      d.Now,
		logger:   d.Logger.With("component", "intake"),
	}
	e.handlers = e.dispatchTable()
	return e, nil
}

// dispatchTable maps every step to its handler. TestDispatchTableIsTotal
// fails if a step is added without an entry.
func (e *Engine) dispatchTable() [session.NumSteps]stepHandler {
	return [session.NumSteps]stepHandler{
		session.StepInitial:        e.handleInitial,
		session.StepMainMenu:       e.handleMainMenu,
		session.StepServicesMenu:   e.handleServicesMenu,
		session.StepServiceSubmenu: e.handleSubmenu,
		session.StepVehicleModel:   e.handleVehicleModel,
		session.StepVehicleYear:    e.handleVehicleYear,
		session.StepPartName:       e.handlePartName,
		session.StepTieRodType:     e.handleTieRodType,
		session.StepLocation:       e.handleLocation,
		session.StepSize:           e.handleSize,
		session.StepQuantity:       e.handleQuantity,
		session.StepPhoto:          e.handlePhoto,
		session.StepDescription:    e.handleDescription,
		session.StepWaitingHuman:   e.handleWaitingHuman,
	}
}

// turn is the work of one inbound message: the session copy being edited and
// everything to send once the edit is saved.
type turn struct {
	sess    *session.Session
	msg     transport.Inbound
	now     time.Time
	replies []string
	handoff *handoff.Request
}

func (t *turn) reply(texts ...string) {
	for _, s := range texts {
		if s != "" {
			t.replies = append(t.replies, s)
		}
	}
}

func (t *turn) body() string { return strings.TrimSpace(t.msg.Body) }

// IsReset reports whether body is the reset keyword.
func (e *Engine) IsReset(body string) bool {
	return strings.ToLower(strings.TrimSpace(body)) == e.reset
}

// Route processes one inbound message for msg.SenderID.
func (e *Engine) Route(ctx context.Context, msg transport.Inbound) error {
	now := e.now()
	logger := e.logger.With("chat", msg.SenderID)

	var t *turn
	sess, err := e.store.Update(ctx, msg.SenderID, now, func(s *session.Session) error {
		// Update may retry fn, so each attempt starts a fresh turn.
		t = &turn{sess: s, msg: msg, now: now}
		return e.dispatch(t, logger)
	})
	if err != nil {
		return fmt.Errorf("routing message: %w", err)
	}

	logger.Debug("message routed", "state", sess.State.Name(), "replies", len(t.replies))

	for _, text := range t.replies {
		if err := e.sender.Send(ctx, msg.SenderID, transport.Text(text)); err != nil {
			logger.Warn("failed to send reply", "error", err)
		}
	}

	if t.handoff != nil {
		e.notifier.Notify(ctx, *t.handoff)
	}
	return nil
}

func (e *Engine) dispatch(t *turn, logger *slog.Logger) error {
	if e.IsReset(t.msg.Body) {
		logger.Info("conversation reset by customer", "from", t.sess.State.Name())
		t.sess.Reset(t.now)
		e.initialContact(t)
		return nil
	}

	st := t.sess.State
	if !st.Valid() {
		logger.Warn("unknown session state, restarting conversation", "state", st.String())
		e.initialContact(t)
		return nil
	}

	return e.handlers[st.Step](t)
}
