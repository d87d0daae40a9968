package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// handleEdit corrects a ledger row: the original is voided and a corrected
// copy is appended, so history is never rewritten.
func (e *Engine) handleEdit(ctx context.Context, t *turn, s *models.Session) (result, error) {
	if t.postback.Has("edit_start") {
		return e.editStart(ctx, t)
	}
	if s == nil || s.Edit == nil {
		return ignore(), nil
	}
	d := s.Edit

	switch s.Step {
	case models.StepEditNewAwaitingChoice:
		field := models.EditField(t.postback.Get("edit_field"))
		switch field {
		case "finish":
			return e.commitEdit(ctx, t, s)
		case models.FieldName, models.FieldModel, models.FieldSpec, models.FieldQuantity:
			d.Pending = field
			s.Step = models.StepEditNewAwaitingValue
			return advance(s, e.editValuePrompt(d)), nil
		case models.FieldUnit:
			d.Pending = field
			s.Step = models.StepEditNewAwaitingUnitChoice
			return advance(s, e.text("PROMPT_EDIT_UNIT", nil, e.unitButtons("edit_unit")...)), nil
		}
		return advance(s, e.editMenu(d)), nil

	case models.StepEditNewAwaitingValue:
		return e.editValue(t, s)

	case models.StepEditNewAwaitingUnitChoice:
		unit := t.text()
		if t.event.IsPostback() {
			unit = strings.TrimSpace(t.postback.Get("edit_unit"))
		}
		switch unit {
		case "":
			return advance(s, e.text("PROMPT_EDIT_UNIT", nil, e.unitButtons("edit_unit")...)), nil
		case "manual":
			s.Step = models.StepEditNewAwaitingManualUnit
			return advance(s, e.text("PROMPT_MANUAL_UNIT", nil)), nil
		}
		return e.editApplied(s, models.FieldUnit, func() { d.Corrected.Unit = unit }), nil

	case models.StepEditNewAwaitingManualUnit:
		unit := t.text()
		if unit == "" {
			return advance(s, e.text("ERROR_EMPTY_VALUE", nil), e.text("PROMPT_MANUAL_UNIT", nil)), nil
		}
		return e.editApplied(s, models.FieldUnit, func() { d.Corrected.Unit = unit }), nil

	case models.StepEditStockAwaitingChoice:
		switch t.postback.Get("edit_stock_choice") {
		case "finish":
			return e.commitEdit(ctx, t, s)
		case string(models.FieldQuantity):
			d.Pending = models.FieldQuantity
			s.Step = models.StepEditStockAwaitingQuantity
			return advance(s, e.editValuePrompt(d)), nil
		case string(models.FieldType):
			d.Pending = models.FieldType
			s.Step = models.StepEditStockAwaitingType
			return advance(s, e.editTypePrompt()), nil
		}
		return advance(s, e.editMenu(d)), nil

	case models.StepEditStockAwaitingQuantity:
		return e.editValue(t, s)

	case models.StepEditStockAwaitingType:
		var kind models.Kind
		switch t.postback.Get("edit_type") {
		case "inbound":
			kind = models.KindInbound
		case "outbound":
			kind = models.KindOutbound
		default:
			return advance(s, e.editTypePrompt()), nil
		}
		return e.editApplied(s, models.FieldType, func() { d.Corrected.Kind = kind }), nil
	}

	return finish(), nil
}

// editStart loads the row named by an edit button and opens the matching menu.
func (e *Engine) editStart(ctx context.Context, t *turn) (result, error) {
	row, ok := parseRow(t.postback)
	if !ok {
		return finish(e.text("MSG_RECORD_NOT_FOUND", map[string]any{"row": t.postback.Get("row")})), nil
	}

	rec, res, err := e.liveRecord(ctx, row)
	if err != nil || rec == nil {
		return res, err
	}

	mode := models.EditMode(t.postback.Get("type"))
	switch {
	case mode == models.EditNewItem && rec.Kind == models.KindCreated:
	case mode == models.EditMovement && rec.Kind.IsMovement():
	default:
		return finish(e.text("MSG_EDIT_TYPE_MISMATCH", map[string]any{"row": row})), nil
	}

	corrected := *rec
	corrected.Quantity = rec.Magnitude()
	d := &models.EditDraft{Mode: mode, Row: row, Original: *rec, Corrected: corrected}

	step := models.StepEditNewAwaitingChoice
	if mode == models.EditMovement {
		step = models.StepEditStockAwaitingChoice
	}
	return advance(&models.Session{Step: step, Edit: d}, e.editMenu(d)), nil
}

// liveRecord re-reads a row and turns a missing or voided row into a
// finishing reply. rec is nil whenever res should be returned as is.
func (e *Engine) liveRecord(ctx context.Context, row int) (*models.Record, result, error) {
	rec, err := e.ledger.Record(ctx, row)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, finish(e.text("MSG_RECORD_NOT_FOUND", map[string]any{"row": row})), nil
	}
	if err != nil {
		return nil, result{}, fmt.Errorf("read row %d: %w", row, err)
	}
	if rec.IsVoid() {
		return nil, finish(e.text("MSG_RECORD_VOID", map[string]any{"row": row})), nil
	}
	return &rec, result{}, nil
}

func (e *Engine) editValue(t *turn, s *models.Session) (result, error) {
	d := s.Edit
	input := t.text()

	switch d.Pending {
	case models.FieldQuantity:
		qty, err := parseQuantity(input)
		if err != nil {
			return advance(s, e.text("ERROR_INVALID_QUANTITY", nil), e.editValuePrompt(d)), nil
		}
		return e.editApplied(s, models.FieldQuantity, func() { d.Corrected.Quantity = qty }), nil

	case models.FieldModel, models.FieldSpec:
		if input == "" {
			return advance(s, e.text("ERROR_EMPTY_VALUE", nil), e.editValuePrompt(d)), nil
		}
		if input == "-" {
			input = ""
		}
		field := d.Pending
		return e.editApplied(s, field, func() {
			if field == models.FieldModel {
				d.Corrected.Model = input
			} else {
				d.Corrected.Spec = input
			}
		}), nil

	case models.FieldName:
		if input == "" || input == "-" {
			return advance(s, e.text("ERROR_EMPTY_VALUE", nil), e.editValuePrompt(d)), nil
		}
		return e.editApplied(s, models.FieldName, func() { d.Corrected.Name = input }), nil
	}

	return advance(s, e.editMenu(d)), nil
}

// editApplied records a change and returns to the menu of the draft's mode.
func (e *Engine) editApplied(s *models.Session, field models.EditField, apply func()) result {
	d := s.Edit
	apply()
	d.Pending = ""
	d.Updated = field
	s.Step = models.StepEditNewAwaitingChoice
	if d.Mode == models.EditMovement {
		s.Step = models.StepEditStockAwaitingChoice
	}
	return advance(s, e.editMenu(d))
}

// commitEdit voids the original row and appends the corrected record.
func (e *Engine) commitEdit(ctx context.Context, t *turn, s *models.Session) (result, error) {
	d := s.Edit
	if err := e.validate.Struct(d); err != nil {
		return result{}, fmt.Errorf("incomplete edit draft: %w", err)
	}

	orig, res, err := e.liveRecord(ctx, d.Row)
	if err != nil || orig == nil {
		return res, err
	}

	// A corrected movement is appended after the original is voided, so the
	// item must still have another Valid row before anything is written.
	m, ok, err := e.ledger.Material(ctx, orig.Key())
	if err != nil {
		return result{}, fmt.Errorf("reload material: %w", err)
	}
	if !ok || (d.Corrected.Kind.IsMovement() && m.Records < 2) {
		return finish(e.text("MSG_QUERY_NOT_FOUND", map[string]any{"query": orig.Key()})), nil
	}

	magnitude := d.Corrected.Magnitude()
	if d.Corrected.Kind == models.KindOutbound {
		stockAfterVoid := m.Stock - orig.Quantity
		if stockAfterVoid < magnitude {
			return advance(s,
				e.text("MSG_EDIT_INSUFFICIENT", map[string]any{"stock": stockAfterVoid, "unit": m.Unit, "quantity": magnitude}),
				e.editMenu(d),
			), nil
		}
	}

	actor := e.actorName(ctx, t)
	if err := e.ledger.Void(ctx, d.Row, e.texts.Message("REASON_EDIT_VOID", map[string]any{"actor": actor}), actor); err != nil {
		return result{}, fmt.Errorf("void row %d: %w", d.Row, err)
	}

	reason := e.changeReason(*orig, d.Corrected, actor)
	if err := e.ledger.OverwriteCell(ctx, d.Row, map[int]interface{}{models.ColVoidReason: reason}); err != nil {
		return result{}, fmt.Errorf("annotate row %d: %w", d.Row, err)
	}

	corrected := models.Record{
		Category:  orig.Category,
		Serial:    orig.Serial,
		Name:      d.Corrected.Name,
		Model:     d.Corrected.Model,
		Spec:      d.Corrected.Spec,
		Unit:      d.Corrected.Unit,
		Quantity:  models.SignedQuantity(d.Corrected.Kind, magnitude),
		Kind:      d.Corrected.Kind,
		ActorName: actor,
		PhotoRef:  orig.PhotoRef,
	}
	if _, err := e.ledger.Append(ctx, corrected); err != nil {
		return result{}, fmt.Errorf("append corrected row: %w", err)
	}

	return finish(e.text("MSG_EDIT_SUCCESS_MODIFY", map[string]any{"row": d.Row})), nil
}

// changeReason describes what differs between the original and its correction.
func (e *Engine) changeReason(orig, corrected models.Record, actor string) string {
	var changes []string
	diff := func(labelKey, before, after string) {
		if before != after {
			changes = append(changes, fmt.Sprintf("%s %s -> %s", e.label(labelKey), before, after))
		}
	}
	diff("LABEL_NAME", orig.Name, corrected.Name)
	diff("LABEL_MODEL", orig.Model, corrected.Model)
	diff("LABEL_SPEC", orig.Spec, corrected.Spec)
	diff("LABEL_UNIT", orig.Unit, corrected.Unit)
	diff("LABEL_QUANTITY", strconv.Itoa(orig.Magnitude()), strconv.Itoa(corrected.Magnitude()))
	diff("LABEL_TYPE", e.kindLabel(orig.Kind), e.kindLabel(corrected.Kind))

	if len(changes) == 0 {
		return e.texts.Message("REASON_EDIT_UNCHANGED", map[string]any{"actor": actor})
	}
	return e.texts.Message("REASON_EDIT_FIELDS", map[string]any{"actor": actor, "changes": strings.Join(changes, "; ")})
}

func (e *Engine) editMenu(d *models.EditDraft) models.Message {
	c := d.Corrected
	if d.Mode == models.EditMovement {
		summary := e.summary(
			"LABEL_NAME", c.Name,
			"LABEL_SERIAL", c.Key(),
			"LABEL_TYPE", e.kindLabel(c.Kind),
			"LABEL_QUANTITY", fmt.Sprintf("%d %s", c.Quantity, c.Unit),
		)
		return e.text("PROMPT_EDIT_STOCK_CHOICE", map[string]any{"row": d.Row, "summary": summary},
			models.Button{Label: e.label("LABEL_QUANTITY"), Data: "edit_stock_choice=quantity"},
			models.Button{Label: e.label("LABEL_TYPE"), Data: "edit_stock_choice=type"},
			models.Button{Label: e.label("LABEL_FINISH"), Data: "edit_stock_choice=finish"},
		)
	}

	summary := e.summary(
		"LABEL_SERIAL", c.Key(),
		"LABEL_NAME", c.Name,
		"LABEL_MODEL", c.Model,
		"LABEL_SPEC", c.Spec,
		"LABEL_QUANTITY", fmt.Sprintf("%d %s", c.Quantity, c.Unit),
	)
	var buttons []models.Button
	for _, f := range []struct {
		field models.EditField
		label string
	}{
		{models.FieldName, "LABEL_NAME"},
		{models.FieldModel, "LABEL_MODEL"},
		{models.FieldSpec, "LABEL_SPEC"},
		{models.FieldUnit, "LABEL_UNIT"},
		{models.FieldQuantity, "LABEL_QUANTITY"},
	} {
		buttons = append(buttons, models.Button{Label: e.label(f.label), Data: "edit_field=" + string(f.field)})
	}
	buttons = append(buttons, models.Button{Label: e.label("LABEL_FINISH"), Data: "edit_field=finish"})
	return e.text("PROMPT_EDIT_SELECT_FIELD", map[string]any{"row": d.Row, "summary": summary}, buttons...)
}

func (e *Engine) editValuePrompt(d *models.EditDraft) models.Message {
	var label, current string
	c := d.Corrected
	switch d.Pending {
	case models.FieldName:
		label, current = "LABEL_NAME", c.Name
	case models.FieldModel:
		label, current = "LABEL_MODEL", c.Model
	case models.FieldSpec:
		label, current = "LABEL_SPEC", c.Spec
	case models.FieldQuantity:
		label, current = "LABEL_QUANTITY", fmt.Sprintf("%d %s", c.Quantity, c.Unit)
	default:
		label = "LABEL_UNIT"
		current = c.Unit
	}
	if current == "" {
		current = "-"
	}
	return e.text("PROMPT_EDIT_NEW_VALUE", map[string]any{"field": strings.ToLower(e.label(label)), "current": current})
}

func (e *Engine) editTypePrompt() models.Message {
	return e.text("PROMPT_EDIT_TYPE", nil,
		models.Button{Label: e.label("LABEL_INBOUND"), Data: "edit_type=inbound"},
		models.Button{Label: e.label("LABEL_OUTBOUND"), Data: "edit_type=outbound"},
	)
}
