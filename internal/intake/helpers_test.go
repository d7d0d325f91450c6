// ABOUTME: Shared test harness for the intake engine
// ABOUTME: Fake business-hours gate, recording notifier, and a conversation driver

package intake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/intake-gateway/internal/catalog"
	"github.com/2389/intake-gateway/internal/handoff"
	"github.com/2389/intake-gateway/internal/messages"
	"github.com/2389/intake-gateway/internal/session"
	"github.com/2389/intake-gateway/internal/store"
	"github.com/2389/intake-gateway/internal/transport"
)

const customer = "!customer:example.org"

type fakeGate struct{ open bool }

func (g fakeGate) IsOpen(time.Time) bool        { return g.open }
func (g fakeGate) Describe() string             { return "Segunda a Sexta: 08:00 às 17:00" }
func (g fakeGate) NextOpening(time.Time) string { return "segunda-feira às 08:00" }

type recordingNotifier struct {
	mu   sync.Mutex
	reqs []handoff.Request
}

func (n *recordingNotifier) Notify(_ context.Context, req handoff.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reqs = append(n.reqs, req)
}

func (n *recordingNotifier) requests() []handoff.Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]handoff.Request(nil), n.reqs...)
}

type harness struct {
	engine   *Engine
	store    *store.MemoryStore
	out      *transport.Recorder
	notifier *recordingNotifier
	text     *messages.Templates
	catalog  *catalog.Catalog
	now      time.Time
}

type harnessOption func(*Deps)

func closed() harnessOption {
	return func(d *Deps) { d.Gate = fakeGate{open: false} }
}

func withoutVehicle() harnessOption {
	return func(d *Deps) {
		d.Catalog.CollectVehicle = false
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		store:    store.NewMemoryStore(),
		out:      &transport.Recorder{},
		notifier: &recordingNotifier{},
		catalog:  catalog.Default(),
		now:      time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	d := Deps{
		Store:    h.store,
		Sender:   h.out,
		Gate:     fakeGate{open: true},
		Notifier: h.notifier,
		Catalog:  h.catalog,
		Now:      func() time.Time { return h.now },
	}
	for _, o := range opts {
		o(&d)
	}
	h.text = messages.New(messages.Company{Name: "Molas Tágua", BudgetResponseMinutes: 45}, d.Catalog, "menu", "pular")
	d.Messages = h.text

	e, err := New(d)
	require.NoError(t, err)
	h.engine = e
	return h
}

// send routes body from the customer and returns the replies it produced.
func (h *harness) send(t *testing.T, body string) []string {
	t.Helper()
	return h.route(t, transport.Inbound{ID: "$" + body, SenderID: customer, Body: body, Timestamp: h.now})
}

func (h *harness) sendMedia(t *testing.T, uri string) []string {
	t.Helper()
	return h.route(t, transport.Inbound{ID: "$media", SenderID: customer, HasMedia: true, MediaURI: uri, Timestamp: h.now})
}

func (h *harness) route(t *testing.T, msg transport.Inbound) []string {
	t.Helper()
	h.out.Reset()
	h.now = h.now.Add(time.Second)
	require.NoError(t, h.engine.Route(context.Background(), msg))
	return h.out.Texts(customer)
}

func (h *harness) sendAll(t *testing.T, bodies ...string) {
	t.Helper()
	for _, b := range bodies {
		h.send(t, b)
	}
}

func (h *harness) session(t *testing.T) *session.Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), customer)
	require.NoError(t, err)
	return s
}

func (h *harness) state(t *testing.T) session.State {
	t.Helper()
	return h.session(t).State
}

func (h *harness) data(t *testing.T) map[string]any {
	t.Helper()
	return h.session(t).Data.Map()
}
