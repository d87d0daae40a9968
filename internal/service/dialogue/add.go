package dialogue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mamadbah2/materialbot/internal/domain/models"
)

const addSkip = "add_skip"

// handleAdd builds a new material step by step and appends its Created row
// on confirmation.
func (e *Engine) handleAdd(ctx context.Context, t *turn, s *models.Session) (result, error) {
	if s == nil {
		// A category button from an earlier prompt re-enters the flow.
		if !t.postback.Has("add_category") {
			return ignore(), nil
		}
		s = &models.Session{Step: models.StepAddAwaitingCategory}
	}
	if s.Add == nil {
		s.Add = &models.AddDraft{}
	}
	d := s.Add

	switch s.Step {
	case models.StepAddAwaitingCategory:
		code, ok := e.matchCategory(t)
		if !ok {
			return advance(s,
				e.text("ERROR_INVALID_CATEGORY", nil),
				e.text("PROMPT_ADD_CATEGORY", nil, e.categories()...),
			), nil
		}
		d.Category = code
		s.Step = models.StepAddAwaitingUnitChoice
		return advance(s, e.text("PROMPT_ADD_UNIT", nil, e.unitButtons("add_unit")...)), nil

	case models.StepAddAwaitingUnitChoice:
		unit := t.text()
		if t.event.IsPostback() {
			unit = strings.TrimSpace(t.postback.Get("add_unit"))
		}
		switch unit {
		case "":
			return advance(s, e.text("PROMPT_ADD_UNIT", nil, e.unitButtons("add_unit")...)), nil
		case "manual":
			s.Step = models.StepAddAwaitingManualUnit
			return advance(s, e.text("PROMPT_MANUAL_UNIT", nil)), nil
		}
		d.Unit = unit
		s.Step = models.StepAddAwaitingName
		return advance(s, e.text("PROMPT_ADD_NAME", nil)), nil

	case models.StepAddAwaitingManualUnit:
		unit := t.text()
		if unit == "" {
			return advance(s, e.text("ERROR_EMPTY_VALUE", nil), e.text("PROMPT_MANUAL_UNIT", nil)), nil
		}
		d.Unit = unit
		s.Step = models.StepAddAwaitingName
		return advance(s, e.text("PROMPT_ADD_NAME", nil)), nil

	case models.StepAddAwaitingName:
		name := t.text()
		if name == "" {
			return advance(s, e.text("ERROR_EMPTY_VALUE", nil), e.text("PROMPT_ADD_NAME", nil)), nil
		}
		d.Name = name
		s.Step = models.StepAddAwaitingModel
		return advance(s, e.skippable("PROMPT_ADD_MODEL")), nil

	case models.StepAddAwaitingModel:
		if !isSkip(t, addSkip) {
			if t.text() == "" {
				return advance(s, e.skippable("PROMPT_ADD_MODEL")), nil
			}
			d.Model = t.text()
		}
		s.Step = models.StepAddAwaitingSpec
		return advance(s, e.skippable("PROMPT_ADD_SPEC")), nil

	case models.StepAddAwaitingSpec:
		if !isSkip(t, addSkip) {
			if t.text() == "" {
				return advance(s, e.skippable("PROMPT_ADD_SPEC")), nil
			}
			d.Spec = t.text()
		}
		s.Step = models.StepAddAwaitingQuantity
		return advance(s, e.text("PROMPT_ADD_QUANTITY", map[string]any{"unit": d.Unit})), nil

	case models.StepAddAwaitingQuantity:
		qty, err := parseQuantity(t.text())
		if err != nil {
			return advance(s, e.text("ERROR_INVALID_QUANTITY", nil)), nil
		}
		d.Quantity = qty
		s.Step = models.StepAddAwaitingPhoto
		return advance(s, e.skippable("PROMPT_ADD_PHOTO")), nil

	case models.StepAddAwaitingPhoto:
		switch {
		case t.event.ImageRef != "":
			d.PhotoRef = t.event.ImageRef
		case isSkip(t, addSkip):
		default:
			return advance(s, e.text("ERROR_EXPECTED_PHOTO", nil), e.skippable("PROMPT_ADD_PHOTO")), nil
		}
		s.Step = models.StepAddAwaitingConfirmation
		msgs, err := e.addConfirmation(ctx, d)
		if err != nil {
			return result{}, err
		}
		return advance(s, msgs...), nil

	case models.StepAddAwaitingConfirmation:
		switch t.postback.Get("add_confirm") {
		case "yes":
			return e.commitAdd(ctx, t, d)
		case "no":
			return finish(e.text("MSG_OPERATION_CANCELLED", nil)), nil
		}
		msgs, err := e.addConfirmation(ctx, d)
		if err != nil {
			return result{}, err
		}
		return advance(s, msgs...), nil
	}

	return finish(), nil
}

func (e *Engine) matchCategory(t *turn) (string, bool) {
	input := t.text()
	if t.event.IsPostback() {
		input = t.postback.Get("add_category")
	}
	input = models.NormalizeKey(input)
	if input == "" {
		return "", false
	}
	for _, c := range e.categoryList() {
		if models.NormalizeKey(c.code) == input {
			return c.code, true
		}
	}
	return "", false
}

func (e *Engine) skippable(key string) models.Message {
	return e.text(key, nil, models.Button{Label: e.label("LABEL_SKIP"), Data: addSkip})
}

func (e *Engine) addConfirmation(ctx context.Context, d *models.AddDraft) ([]models.Message, error) {
	summary := e.summary(
		"LABEL_CATEGORY", d.Category,
		"LABEL_NAME", d.Name,
		"LABEL_MODEL", d.Model,
		"LABEL_SPEC", d.Spec,
		"LABEL_QUANTITY", fmt.Sprintf("%d %s", d.Quantity, d.Unit),
	)
	if d.PhotoRef != "" {
		summary += "\n" + e.label("LABEL_PHOTO_ATTACHED")
	}

	var msgs []models.Message
	dup, found, err := e.ledger.FindDuplicate(ctx, d.Name, d.Model, d.Spec)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if found {
		msgs = append(msgs, e.text("WARN_ADD_DUPLICATE", map[string]any{"key": dup.Key(), "name": dup.Name}))
	}
	msgs = append(msgs, e.text("PROMPT_ADD_CONFIRM", map[string]any{"summary": summary}, e.confirmButtons("add_confirm")...))
	return msgs, nil
}

func (e *Engine) commitAdd(ctx context.Context, t *turn, d *models.AddDraft) (result, error) {
	if err := e.validate.Struct(d); err != nil {
		return result{}, fmt.Errorf("incomplete add draft: %w", err)
	}

	serial, err := e.ledger.NextSerial(ctx, d.Category)
	if err != nil {
		return result{}, fmt.Errorf("allocate serial: %w", err)
	}

	rec, err := e.ledger.Append(ctx, models.Record{
		Category:  d.Category,
		Serial:    serial,
		Name:      d.Name,
		Model:     d.Model,
		Spec:      d.Spec,
		Unit:      d.Unit,
		Quantity:  d.Quantity,
		Kind:      models.KindCreated,
		ActorName: e.actorName(ctx, t),
		PhotoRef:  d.PhotoRef,
	})
	if err != nil {
		return result{}, fmt.Errorf("append created record: %w", err)
	}

	stock := strconv.Itoa(rec.Quantity)
	if m, ok, err := e.ledger.Material(ctx, rec.Key()); err != nil {
		return result{}, fmt.Errorf("reload material: %w", err)
	} else if ok {
		stock = strconv.Itoa(m.Stock)
	}

	return finish(e.text("MSG_ADD_SUCCESS", map[string]any{
		"name":  rec.Name,
		"key":   rec.Key(),
		"stock": stock,
		"unit":  rec.Unit,
	})), nil
}
