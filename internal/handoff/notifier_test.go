// ABOUTME: Tests for the hand-off notifier
// ABOUTME: Covers notice rendering, HTML conversion, delivery failures, and ledger records

package handoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/intake-gateway/internal/session"
	"github.com/2389/intake-gateway/internal/store"
	"github.com/2389/intake-gateway/internal/transport"
)

var at = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

func springRequest(t *testing.T) Request {
	t.Helper()
	var data session.Intake
	require.NoError(t, data.SetText(session.FieldServiceType, "Troca de mola"))
	require.NoError(t, data.SetText(session.FieldVehicleModel, "Fiat Uno"))
	data.SetPhoto(session.MediaRef{URI: "mxc://example.org/photo"})
	return Request{
		ChatID:    "!room:example.org",
		Category:  "Troca de mola",
		Data:      data,
		StartedAt: at.Add(-10 * time.Minute),
		At:        at,
	}
}

func TestNotifier_Render(t *testing.T) {
	n := New(nil, "", nil, time.UTC, nil)
	got := n.Render(springRequest(t))

	assert.Contains(t, got, "**ATENDIMENTO HUMANO SOLICITADO**")
	assert.Contains(t, got, "- **Cliente:** !room:example.org")
	assert.Contains(t, got, "- **Tipo:** Troca de mola")
	assert.Contains(t, got, "- **Horário:** 10/03/2025 14:30:00")
	assert.Contains(t, got, "- **Iniciado em:** 10/03/2025 14:20:00")
	assert.Contains(t, got, "- Serviço: Troca de mola\n- Veículo: Fiat Uno\n- Foto: Enviada\n")
	assert.Contains(t, got, "**MÍDIA:** Cliente enviou foto(s) (mxc://example.org/photo)")
}

func TestNotifier_RenderWithoutData(t *testing.T) {
	n := New(nil, "", nil, time.UTC, nil)
	got := n.Render(Request{ChatID: "c1", Category: "Solicitação de atendimento humano", At: at})

	assert.NotContains(t, got, "Informações coletadas")
	assert.NotContains(t, got, "MÍDIA")
	assert.NotContains(t, got, "Iniciado em")
}

func TestNotifier_DeliversToOperator(t *testing.T) {
	rec := &transport.Recorder{}
	ledger := store.NewMemoryStore()
	n := New(rec, "!ops:example.org", ledger, time.UTC, nil)

	n.Notify(context.Background(), springRequest(t))

	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "!ops:example.org", sent[0].To)
	assert.Contains(t, sent[0].Msg.Text, "ATENDIMENTO HUMANO SOLICITADO")
	assert.Contains(t, sent[0].Msg.HTML, "<strong>ATENDIMENTO HUMANO SOLICITADO</strong>")
	assert.Contains(t, sent[0].Msg.HTML, "<li>Serviço: Troca de mola</li>")

	handoffs, err := ledger.ListHandoffs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, handoffs, 1)
	assert.True(t, handoffs[0].Delivered)
	assert.True(t, handoffs[0].HasMedia)
	assert.Equal(t, "!room:example.org", handoffs[0].SessionID)
}

func TestNotifier_NoOperatorIsNoop(t *testing.T) {
	rec := &transport.Recorder{}
	ledger := store.NewMemoryStore()
	n := New(rec, "", ledger, time.UTC, nil)

	assert.NotPanics(t, func() { n.Notify(context.Background(), springRequest(t)) })
	assert.Empty(t, rec.Sent())

	handoffs, err := ledger.ListHandoffs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, handoffs, 1)
	assert.False(t, handoffs[0].Delivered)
	assert.Equal(t, "no operator address configured", handoffs[0].Error)
}

func TestNotifier_DeliveryFailureIsSwallowed(t *testing.T) {
	rec := &transport.Recorder{Err: errors.New("M_FORBIDDEN")}
	ledger := store.NewMemoryStore()
	n := New(rec, "!ops:example.org", ledger, time.UTC, nil)

	assert.NotPanics(t, func() { n.Notify(context.Background(), springRequest(t)) })

	handoffs, err := ledger.ListHandoffs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, handoffs, 1)
	assert.False(t, handoffs[0].Delivered)
	assert.Equal(t, "M_FORBIDDEN", handoffs[0].Error)
}

func TestNotifier_NilLedger(t *testing.T) {
	rec := &transport.Recorder{}
	n := New(rec, "!ops:example.org", nil, nil, nil)

	assert.NotPanics(t, func() { n.Notify(context.Background(), springRequest(t)) })
	assert.Len(t, rec.Sent(), 1)
}
