// ABOUTME: Finalization shared by every branch of the intake flow
// ABOUTME: Summarizes collected data, confirms, queues the hand-off, and parks the session

package intake

import (
	"github.com/2389/intake-gateway/internal/handoff"
	"github.com/2389/intake-gateway/internal/session"
)

// finalize ends the intake: the customer gets their summary and confirmation,
// the operator gets a hand-off once the session is saved, and the session
// waits for a human.
func (e *Engine) finalize(t *turn, category, confirmation string) {
	t.reply(e.text.Summary(t.sess.Data), confirmation)

	t.sess.Record("Request completed: "+category, t.now)
	t.sess.SetState(session.At(session.StepWaitingHuman), t.now)

	t.handoff = &handoff.Request{
		ChatID:    t.sess.ID,
		Category:  category,
		Data:      t.sess.Data.Clone(),
		StartedAt: t.sess.CreatedAt,
		At:        t.now,
	}
	e.logger.Info("intake finalized", "chat", t.sess.ID, "category", category, "fields", len(t.sess.Data.Entries()))
}
