// Package gateway wires the intake-gateway service together.
//
// # Overview
//
// A Gateway owns every long-lived component: the session store, the intake
// engine and its dispatcher, the hand-off notifier, the retention sweeper,
// the customer transport (Matrix), and the optional ops HTTP API.
//
//	cfg, _ := config.Load("config.yaml")
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx)
//
// # Lifecycle
//
// New builds all components but starts nothing. Run logs the transport in,
// then runs the transport sync loop, the sweeper, and the ops API under one
// errgroup. Cancelling the context stops them all; Run then drains the
// per-customer queues and closes the store.
//
// Tests inject a fake transport, an in-memory store, and a fixed clock via
// WithTransport, WithStore, and WithClock.
//
// # Ops API
//
// When ops.enabled is set, Handler serves:
//
//	GET    /health                 status and whether the shop is open
//	GET    /api/sessions           all sessions, most recent first
//	GET    /api/sessions/{id}      one session with data and history
//	GET    /api/handoffs?limit=N   recent hand-offs
//	DELETE /api/sessions/{id}      reset a session (admin)
//	POST   /api/sweep              run the retention sweep now (admin)
//
// /api routes require a bearer JWT signed with ops.jwt_secret. The listener
// is plain TCP on ops.http_addr, or a tsnet node when ops.tailscale.enabled
// is set.
package gateway
