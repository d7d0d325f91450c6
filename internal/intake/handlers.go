// ABOUTME: Intake handlers for vehicle data, the services catalog, and part details
// ABOUTME: Each validates one answer, writes its field, and moves to exactly one next step

package intake

import (
	"errors"
	"strings"

	"github.com/2389/intake-gateway/internal/catalog"
	"github.com/2389/intake-gateway/internal/messages"
	"github.com/2389/intake-gateway/internal/session"
)

// collect stores the message body in f. It reports false after queueing an
// invalid-input re-prompt when the body is blank.
func (e *Engine) collect(t *turn, f session.Field, prompt string) (bool, error) {
	err := t.sess.SetText(f, t.body(), t.now)
	if errors.Is(err, session.ErrEmptyValue) {
		t.reply(e.text.InvalidInput(), prompt)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) handleVehicleModel(t *turn) error {
	ok, err := e.collect(t, session.FieldVehicleModel, e.text.VehicleModel())
	if !ok {
		return err
	}
	t.sess.SetState(session.Vehicle(session.StepVehicleYear, t.sess.State.Flow), t.now)
	t.reply(e.text.DataReceived(), e.text.VehicleYear())
	return nil
}

func (e *Engine) handleVehicleYear(t *turn) error {
	ok, err := e.collect(t, session.FieldVehicleYear, e.text.VehicleYear())
	if !ok {
		return err
	}
	t.reply(e.text.DataReceived())

	if t.sess.State.Flow == session.FlowSales {
		if err := t.sess.SetText(session.FieldServiceType, ServiceTypeSales, t.now); err != nil {
			return err
		}
		t.sess.SetState(session.Collecting(session.StepPartName, session.TrackStandard), t.now)
		t.reply(e.text.PartName())
		return nil
	}

	e.showServicesMenu(t)
	return nil
}

func (e *Engine) handleServicesMenu(t *turn) error {
	key := t.body()
	if key == catalog.BackKey {
		t.sess.SetState(session.At(session.StepMainMenu), t.now)
		t.reply(e.text.MainMenu())
		return nil
	}

	entry, ok := e.catalog.Entry(key)
	if !ok {
		t.reply(e.text.InvalidOption(), e.text.ServicesMenu())
		return nil
	}

	switch entry.Kind {
	case catalog.KindSubmenu:
		t.sess.SetState(session.Submenu(entry.Category), t.now)
		t.reply(e.text.Submenu(entry))
	case catalog.KindDescription:
		if err := t.sess.SetText(session.FieldServiceType, entry.ServiceType, t.now); err != nil {
			return err
		}
		t.sess.SetState(session.Describing(entry.Topic), t.now)
		t.reply(entry.Prompt)
	}
	return nil
}

func (e *Engine) handleSubmenu(t *turn) error {
	entry, ok := e.catalog.Category(t.sess.State.Category)
	if !ok {
		// The catalog changed under a parked conversation.
		e.logger.Warn("submenu no longer in catalog", "chat", t.sess.ID, "category", t.sess.State.Category)
		e.showServicesMenu(t)
		return nil
	}

	key := t.body()
	if key == catalog.BackKey {
		e.showServicesMenu(t)
		return nil
	}

	opt, ok := entry.Option(key)
	if !ok {
		t.reply(e.text.InvalidOption(), e.text.Submenu(entry))
		return nil
	}

	if err := t.sess.SetText(session.FieldServiceType, opt.ServiceType, t.now); err != nil {
		return err
	}
	if opt.Immediate {
		e.finalize(t, opt.ServiceType, e.text.RequestReceived())
		return nil
	}

	t.sess.SetState(session.Collecting(session.StepPartName, opt.Track), t.now)
	t.reply(e.text.PartName())
	return nil
}

func (e *Engine) handlePartName(t *turn) error {
	ok, err := e.collect(t, session.FieldPartName, e.text.PartName())
	if !ok {
		return err
	}
	t.reply(e.text.DataReceived())

	track := t.sess.State.Track
	switch track {
	case session.TrackTieRod:
		t.sess.SetState(session.Collecting(session.StepTieRodType, track), t.now)
		t.reply(e.text.TieRodType())
	case session.TrackNoLocation:
		t.sess.SetState(session.Collecting(session.StepQuantity, track), t.now)
		t.reply(e.text.Quantity())
	default:
		t.sess.SetState(session.Collecting(session.StepLocation, track), t.now)
		t.reply(e.text.Location())
	}
	return nil
}

func (e *Engine) handleLocation(t *turn) error {
	ok, err := e.collect(t, session.FieldLocation, e.text.Location())
	if !ok {
		return err
	}
	t.sess.SetState(session.Collecting(session.StepQuantity, t.sess.State.Track), t.now)
	t.reply(e.text.DataReceived(), e.text.Quantity())
	return nil
}

func (e *Engine) handleTieRodType(t *turn) error {
	label, ok := messages.LookupChoice(messages.TieRodTypes, t.body())
	if !ok {
		t.reply(e.text.InvalidOption(), e.text.TieRodType())
		return nil
	}
	if err := t.sess.SetText(session.FieldTieRodType, label, t.now); err != nil {
		return err
	}
	t.sess.SetState(session.Collecting(session.StepSize, t.sess.State.Track), t.now)
	t.reply(e.text.DataReceived(), e.text.Size())
	return nil
}

func (e *Engine) handleSize(t *turn) error {
	ok, err := e.collect(t, session.FieldSize, e.text.Size())
	if !ok {
		return err
	}
	t.sess.SetState(session.Collecting(session.StepQuantity, t.sess.State.Track), t.now)
	t.reply(e.text.DataReceived(), e.text.Quantity())
	return nil
}

func (e *Engine) handleQuantity(t *turn) error {
	ok, err := e.collect(t, session.FieldQuantity, e.text.Quantity())
	if !ok {
		return err
	}
	t.sess.SetState(session.Collecting(session.StepPhoto, t.sess.State.Track), t.now)
	t.reply(e.text.DataReceived(), e.text.Photo())
	return nil
}

func (e *Engine) handlePhoto(t *turn) error {
	switch {
	case t.msg.HasMedia:
		t.sess.SetPhoto(session.MediaRef{URI: t.msg.MediaURI, MessageID: t.msg.ID}, t.now)
		t.reply(e.text.PhotoReceived())
	case strings.ToLower(t.body()) == e.skip:
		t.sess.SkipPhoto(t.now)
		t.reply(e.text.PhotoSkipped())
	default:
		t.reply(e.text.PhotoInvalid())
		return nil
	}

	e.finalize(t, e.category(t), e.text.RequestReceived())
	return nil
}

func (e *Engine) handleDescription(t *turn) error {
	topic := t.sess.State.Topic
	ok, err := e.collect(t, session.FieldDescription, e.descriptionPrompt(topic))
	if !ok {
		return err
	}

	if topic == session.TopicFinancial {
		e.finalize(t, CategoryFinancial, e.text.FinancialReceived())
		return nil
	}
	e.finalize(t, e.category(t), e.text.RequestReceived())
	return nil
}

// descriptionPrompt returns the question asked when the description step began.
func (e *Engine) descriptionPrompt(topic session.Topic) string {
	if topic == session.TopicFinancial {
		return e.text.Financial()
	}
	for _, entry := range e.catalog.Entries {
		if entry.Kind == catalog.KindDescription && entry.Topic == topic {
			return entry.Prompt
		}
	}
	return e.text.InvalidInput()
}

// category names the hand-off after the collected service type.
func (e *Engine) category(t *turn) string {
	if st, ok := t.sess.Data.Text(session.FieldServiceType); ok {
		return st
	}
	return CategoryFallback
}
