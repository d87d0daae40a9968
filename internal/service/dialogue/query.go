package dialogue

import (
	"context"
	"fmt"

	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// handleQuery drives awaiting_type -> {awaiting_name | awaiting_serial | done}.
// A query_type postback may also enter the flow without a session.
func (e *Engine) handleQuery(ctx context.Context, t *turn, s *models.Session) (result, error) {
	step := models.StepQueryAwaitingType
	if s != nil {
		step = s.Step
	}

	switch step {
	case models.StepQueryAwaitingType:
		return e.queryType(ctx, t, s)

	case models.StepQueryAwaitingName:
		query := t.text()
		if query == "" {
			return advance(s, e.text("PROMPT_QUERY_BY_NAME", nil)), nil
		}
		found, err := e.ledger.Search(ctx, query)
		if err != nil {
			return result{}, fmt.Errorf("search materials: %w", err)
		}
		return finish(e.materialResults(found, query, e.movementButtons)...), nil

	case models.StepQueryAwaitingSerial:
		query := t.text()
		if query == "" {
			return advance(s, e.text("PROMPT_QUERY_BY_SERIAL", nil)), nil
		}
		m, ok, err := e.ledger.Material(ctx, query)
		if err != nil {
			return result{}, fmt.Errorf("lookup material: %w", err)
		}
		var found []models.Material
		if ok {
			found = append(found, m)
		}
		return finish(e.materialResults(found, query, e.movementButtons)...), nil
	}

	return finish(), nil
}

func (e *Engine) queryType(ctx context.Context, t *turn, s *models.Session) (result, error) {
	switch t.postback.Get("query_type") {
	case "by_name":
		return advance(&models.Session{Step: models.StepQueryAwaitingName}, e.text("PROMPT_QUERY_BY_NAME", nil)), nil

	case "by_serial":
		return advance(&models.Session{Step: models.StepQueryAwaitingSerial}, e.text("PROMPT_QUERY_BY_SERIAL", nil)), nil

	case "all":
		materials, err := e.ledger.Materials(ctx)
		if err != nil {
			return result{}, fmt.Errorf("list materials: %w", err)
		}
		return finish(e.materialResults(materials, "*", e.movementButtons)...), nil

	case "mine":
		msgs, err := e.myRecords(ctx, t)
		if err != nil {
			return result{}, err
		}
		return finish(msgs...), nil
	}

	if s == nil {
		return ignore(), nil
	}
	return advance(s, e.queryTypePrompt()), nil
}
