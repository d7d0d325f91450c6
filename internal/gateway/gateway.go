// ABOUTME: Gateway orchestrator that wires the intake engine to its transport and background work
// ABOUTME: Runs the Matrix sync, the retention sweeper, and the ops HTTP API until the context ends

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/tsnet"

	"github.com/2389/intake-gateway/internal/auth"
	"github.com/2389/intake-gateway/internal/config"
	"github.com/2389/intake-gateway/internal/dedupe"
	"github.com/2389/intake-gateway/internal/handoff"
	"github.com/2389/intake-gateway/internal/hours"
	"github.com/2389/intake-gateway/internal/intake"
	"github.com/2389/intake-gateway/internal/messages"
	"github.com/2389/intake-gateway/internal/store"
	"github.com/2389/intake-gateway/internal/transport"
	"github.com/2389/intake-gateway/internal/transport/matrix"
)

// ErrNoTransport is returned when sending without a configured transport.
var ErrNoTransport = errors.New("no transport configured")

// Transport delivers customer messages to the dispatcher and sends replies.
type Transport interface {
	transport.Sender
	Run(ctx context.Context, h transport.Handler) error
}

// loginTransport is a Transport that must authenticate before running.
type loginTransport interface {
	Login(ctx context.Context) error
}

// Gateway owns every long-lived component of the service.
type Gateway struct {
	config     *config.Config
	store      store.Store
	schedule   *hours.Schedule
	engine     *intake.Engine
	dispatcher *intake.Dispatcher
	seen       *dedupe.Cache
	sweeper    *store.Sweeper
	transport  Transport
	verifier   *auth.JWTVerifier
	httpServer *http.Server
	tsServer   *tsnet.Server
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithTransport replaces the transport built from the matrix config.
func WithTransport(t Transport) Option {
	return func(g *Gateway) { g.transport = t }
}

// WithStore replaces the store built from the store config.
func WithStore(s store.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// OpenStore opens the store selected by cfg.
func OpenStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// New builds a gateway from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{config: cfg, logger: logger.With("component", "gateway"), now: time.Now}
	for _, o := range opts {
		o(g)
	}

	schedule, err := cfg.BuildSchedule()
	if err != nil {
		return nil, fmt.Errorf("building schedule: %w", err)
	}
	g.schedule = schedule

	if g.transport == nil && cfg.Matrix.Enabled {
		client, err := matrix.New(matrixConfig(cfg.Matrix), logger)
		if err != nil {
			return nil, err
		}
		g.transport = client
	}

	if g.store == nil {
		s, err := OpenStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		g.store = s
	}

	if cfg.Ops.Enabled {
		v, err := auth.NewJWTVerifier([]byte(cfg.Ops.JWTSecret))
		if err != nil {
			g.store.Close()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		g.verifier = v
	}

	if err := g.buildIntake(logger); err != nil {
		g.store.Close()
		return nil, err
	}

	g.sweeper = store.NewSweeper(g.store, cfg.Session.SweepInterval, cfg.Session.Retention, logger)
	return g, nil
}

func (g *Gateway) buildIntake(logger *slog.Logger) error {
	cfg := g.config
	cat := cfg.BuildCatalog()
	text := messages.New(cfg.CompanyInfo(), cat, cfg.Session.ResetKeyword, cfg.Session.SkipKeyword)
	sender := g.sender()

	notifier := handoff.New(sender, cfg.Handoff.Operator, g.store, g.schedule.Location(), logger)

	engine, err := intake.New(intake.Deps{
		Store:        g.store,
		Sender:       sender,
		Gate:         g.schedule,
		Notifier:     notifier,
		Catalog:      cat,
		Messages:     text,
		ResetKeyword: cfg.Session.ResetKeyword,
		SkipKeyword:  cfg.Session.SkipKeyword,
		Logger:       logger,
		Now:          func() time.Time { return g.now() },
	})
	if err != nil {
		return fmt.Errorf("creating intake engine: %w", err)
	}
	g.engine = engine

	g.seen = dedupe.New(cfg.Session.DedupeTTL, cfg.Session.DedupeSize)
	g.dispatcher = intake.NewDispatcher(engine, sender, intake.DispatcherConfig{
		StaleAfter: cfg.Session.StaleAfter,
		Apology:    text.Apology(),
		Seen:       g.seen,
		Operator:   cfg.Handoff.Operator,
		Logger:     logger,
		Now:        func() time.Time { return g.now() },
	})
	return nil
}

// sender returns the transport, or a sender that fails when none is set.
func (g *Gateway) sender() transport.Sender {
	if g.transport != nil {
		return g.transport
	}
	return transport.SenderFunc(func(context.Context, string, transport.Outbound) error {
		return ErrNoTransport
	})
}

func matrixConfig(m config.MatrixConfig) matrix.Config {
	return matrix.Config{
		Homeserver:   m.Homeserver,
		UserID:       m.UserID,
		Username:     m.Username,
		Password:     m.Password,
		AccessToken:  m.AccessToken,
		DeviceID:     m.DeviceID,
		Encryption:   m.Encryption,
		DataDir:      m.DataDir,
		AllowedRooms: m.AllowedRooms,
		AutoJoin:     m.AutoJoin == nil || *m.AutoJoin,
	}
}

// Dispatcher returns the inbound entry point. Transports feed it.
func (g *Gateway) Dispatcher() *intake.Dispatcher { return g.dispatcher }

// Store returns the session store.
func (g *Gateway) Store() store.Store { return g.store }

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Returns nil on a clean shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	defer g.close()

	if g.transport == nil {
		g.logger.Warn("no transport configured; customers cannot reach the assistant")
	} else if lt, ok := g.transport.(loginTransport); ok {
		if err := lt.Login(ctx); err != nil {
			return err
		}
	}
	if g.config.Handoff.Operator == "" {
		g.logger.Warn("handoff.operator is not set; hand-offs will only be logged")
	}

	var ln net.Listener
	if g.config.Ops.Enabled {
		var err error
		ln, err = g.listen(ctx)
		if err != nil {
			return err
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if g.transport != nil {
		eg.Go(func() error {
			if err := g.transport.Run(egCtx, g.dispatcher); err != nil {
				return fmt.Errorf("transport: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error { return g.sweeper.Run(egCtx) })

	if ln != nil {
		g.httpServer = &http.Server{
			Handler:           g.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		eg.Go(func() error {
			g.logger.Info("ops API listening", "addr", ln.Addr().String())
			if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-egCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return g.httpServer.Shutdown(shutdownCtx)
		})
	}

	g.logger.Info("gateway running", "store", g.config.Store.Driver, "ops", g.config.Ops.Enabled)
	err := eg.Wait()
	if err != nil {
		g.logger.Error("gateway stopped with error", "error", err)
	} else {
		g.logger.Info("gateway stopped")
	}
	return err
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// close waits for queued messages and releases resources.
func (g *Gateway) close() {
	g.dispatcher.Close()
	g.seen.Close()

	var errs []error
	if g.tsServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())
	if len(errs) > 0 {
		g.logger.Warn("shutdown errors", "error", errors.Join(errs...))
	}
}
