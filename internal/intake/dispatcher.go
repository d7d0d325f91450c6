// ABOUTME: Inbound message filter and per-customer worker queue in front of the engine
// ABOUTME: Drops stale, echoed, broadcast, group and duplicate messages; recovers handler failures

package intake

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/2389/intake-gateway/internal/dedupe"
	"github.com/2389/intake-gateway/internal/transport"
)

// DefaultStaleAfter is how old a message may be before it is treated as
// backlog and dropped.
const DefaultStaleAfter = 15 * time.Second

// Router handles one accepted inbound message.
type Router interface {
	Route(ctx context.Context, msg transport.Inbound) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	StaleAfter time.Duration
	// Apology is sent when routing a message fails.
	Apology string
	// Seen drops redelivered event IDs. Optional.
	Seen *dedupe.Cache
	// Operator is the hand-off room. Messages from it are never routed.
	Operator string
	Logger   *slog.Logger
	Now      func() time.Time
}

type queued struct {
	ctx context.Context
	msg transport.Inbound
}

// Dispatcher filters inbound messages and processes each customer's messages
// in arrival order, one at a time. Different customers run concurrently.
type Dispatcher struct {
	router     Router
	sender     transport.Sender
	staleAfter time.Duration
	apology    string
	seen       *dedupe.Cache
	operator   string
	now        func() time.Time
	logger     *slog.Logger

	mu     sync.Mutex
	queues map[string][]queued
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher in front of router. sender is used only
// for apologies.
func NewDispatcher(router Router, sender transport.Sender, cfg DispatcherConfig) *Dispatcher {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		router:     router,
		sender:     sender,
		staleAfter: cfg.StaleAfter,
		apology:    cfg.Apology,
		seen:       cfg.Seen,
		operator:   cfg.Operator,
		now:        cfg.Now,
		logger:     cfg.Logger.With("component", "dispatcher"),
		queues:     make(map[string][]queued),
	}
}

// dropReason returns why msg must be ignored, or "" to accept it.
func (d *Dispatcher) dropReason(msg transport.Inbound) string {
	switch {
	case msg.SenderID == "":
		return "no sender"
	case msg.FromSelf:
		return "own message"
	case d.operator != "" && msg.SenderID == d.operator:
		return "operator room"
	case msg.StatusBroadcast:
		return "status broadcast"
	case msg.Group:
		return "group chat"
	case !msg.Timestamp.IsZero() && d.now().Sub(msg.Timestamp) > d.staleAfter:
		return "stale"
	case msg.ID != "" && d.seen != nil && d.seen.CheckAndMark(msg.ID):
		return "duplicate"
	}
	return ""
}

// HandleInbound accepts a message from a transport. It returns without
// waiting for the message to be processed. Accepted messages are processed
// even if ctx is cancelled afterwards, so Close can drain them.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg transport.Inbound) {
	if reason := d.dropReason(msg); reason != "" {
		d.logger.Debug("dropping inbound message", "chat", msg.SenderID, "event", msg.ID, "reason", reason)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("dispatcher closed, dropping message", "chat", msg.SenderID)
		return
	}

	pending, running := d.queues[msg.SenderID]
	d.queues[msg.SenderID] = append(pending, queued{ctx: context.WithoutCancel(ctx), msg: msg})
	if !running {
		d.wg.Add(1)
		go d.drain(msg.SenderID)
	}
}

// drain processes one customer's queue until it is empty.
func (d *Dispatcher) drain(chatID string) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		pending := d.queues[chatID]
		if len(pending) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		next := pending[0]
		d.queues[chatID] = pending[1:]
		d.mu.Unlock()

		d.process(next.ctx, next.msg)
	}
}

func (d *Dispatcher) process(ctx context.Context, msg transport.Inbound) {
	logger := d.logger.With("chat", msg.SenderID, "event", msg.ID)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic while handling message", "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return d.router.Route(ctx, msg)
	}()
	if err == nil {
		return
	}

	logger.Error("failed to handle message", "error", err)
	if d.apology == "" || d.sender == nil {
		return
	}
	if sendErr := d.sender.Send(ctx, msg.SenderID, transport.Text(d.apology)); sendErr != nil {
		logger.Warn("failed to send apology", "error", sendErr)
	}
}

// Close stops accepting messages and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
