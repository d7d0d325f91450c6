// ABOUTME: Top-level conversation steps: first contact, main menu, waiting for a human
// ABOUTME: First contact consults the business-hours gate before offering the menu

package intake

import (
	"github.com/2389/intake-gateway/internal/messages"
	"github.com/2389/intake-gateway/internal/session"
)

// Hand-off categories that do not come from a collected service type.
const (
	CategoryHuman     = "Solicitação de atendimento humano"
	CategoryFinancial = "Financeiro"
	CategoryFallback  = "Serviço"
	ServiceTypeSales  = "Venda de peça"
)

func (e *Engine) handleInitial(t *turn) error {
	e.initialContact(t)
	return nil
}

// initialContact greets the customer and either offers the main menu or,
// outside business hours, parks the conversation for a human.
func (e *Engine) initialContact(t *turn) {
	t.reply(e.text.Welcome())

	if !e.gate.IsOpen(t.now) {
		t.reply(e.text.OutsideHours(e.gate.Describe(), e.gate.NextOpening(t.now)))
		t.sess.Record("Contact outside business hours", t.now)
		t.sess.SetState(session.At(session.StepWaitingHuman), t.now)
		return
	}

	t.sess.SetState(session.At(session.StepMainMenu), t.now)
	t.reply(e.text.MainMenu())
}

func (e *Engine) handleMainMenu(t *turn) error {
	switch t.body() {
	case messages.KeyServices:
		e.enterServices(t)
	case messages.KeySales:
		t.sess.SetState(session.Vehicle(session.StepVehicleModel, session.FlowSales), t.now)
		t.reply(e.text.VehicleModel())
	case messages.KeyFinancial:
		if err := t.sess.SetText(session.FieldServiceType, CategoryFinancial, t.now); err != nil {
			return err
		}
		t.sess.SetState(session.Describing(session.TopicFinancial), t.now)
		t.reply(e.text.Financial())
	case messages.KeyHuman:
		e.finalize(t, CategoryHuman, e.text.TransferringToHuman())
	default:
		t.reply(e.text.InvalidOption(), e.text.MainMenu())
	}
	return nil
}

// enterServices starts the services branch, collecting the vehicle first when
// the catalog asks for it.
func (e *Engine) enterServices(t *turn) {
	if e.catalog.CollectVehicle {
		t.sess.SetState(session.Vehicle(session.StepVehicleModel, session.FlowServices), t.now)
		t.reply(e.text.VehicleModel())
		return
	}
	e.showServicesMenu(t)
}

func (e *Engine) showServicesMenu(t *turn) {
	t.sess.SetState(session.At(session.StepServicesMenu), t.now)
	t.reply(e.text.ServicesMenu())
}

func (e *Engine) handleWaitingHuman(t *turn) error {
	t.reply(e.text.AlreadyForwarded())
	return nil
}
