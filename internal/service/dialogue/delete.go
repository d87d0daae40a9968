package dialogue

import (
	"context"
	"fmt"

	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// handleDelete voids a row after an explicit confirmation.
func (e *Engine) handleDelete(ctx context.Context, t *turn, s *models.Session) (result, error) {
	if t.postback.Has("delete_record") {
		row, ok := parseRow(t.postback)
		if !ok {
			return finish(e.text("MSG_RECORD_NOT_FOUND", map[string]any{"row": t.postback.Get("row")})), nil
		}
		rec, res, err := e.liveRecord(ctx, row)
		if err != nil || rec == nil {
			return res, err
		}
		d := &models.DeleteDraft{Row: row, Name: rec.Name, Kind: rec.Kind}
		return advance(&models.Session{Step: models.StepDeleteAwaitingConfirmation, Delete: d}, e.deletePrompt(d)), nil
	}
	if s == nil || s.Delete == nil {
		return ignore(), nil
	}
	d := s.Delete

	switch t.postback.Get("delete_confirm") {
	case "yes":
		rec, res, err := e.liveRecord(ctx, d.Row)
		if err != nil || rec == nil {
			return res, err
		}
		reason := e.texts.String(config.KeyDefaultDeleteReason, "Data error")
		if err := e.ledger.Void(ctx, d.Row, reason, e.actorName(ctx, t)); err != nil {
			return result{}, fmt.Errorf("void row %d: %w", d.Row, err)
		}
		return finish(e.text("MSG_DELETE_SUCCESS", map[string]any{"row": d.Row})), nil
	case "no":
		return finish(e.text("MSG_CANCEL_CONFIRM", nil)), nil
	}
	return advance(s, e.deletePrompt(d)), nil
}

func (e *Engine) deletePrompt(d *models.DeleteDraft) models.Message {
	return e.text("PROMPT_DELETE_CONFIRM", map[string]any{
		"row":  d.Row,
		"kind": e.kindLabel(d.Kind),
		"name": d.Name,
	}, e.confirmButtons("delete_confirm")...)
}
