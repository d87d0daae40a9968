package dialogue

import (
	"context"
	"fmt"

	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// Top-level actions.
const (
	actionQuery    = "query"
	actionAdd      = "add"
	actionInbound  = "inbound"
	actionOutbound = "outbound"
	actionEdit     = "edit"
	actionHelp     = "help"
	actionCancel   = "cancel"
)

// startFlow begins a fresh top-level action. The caller has already decided
// that any previous session is discarded.
func (e *Engine) startFlow(ctx context.Context, t *turn, action string) (result, models.Flow, error) {
	switch action {
	case actionQuery:
		return advance(&models.Session{Step: models.StepQueryAwaitingType}, e.queryTypePrompt()), models.FlowQuery, nil

	case actionAdd:
		return advance(
			&models.Session{Step: models.StepAddAwaitingCategory, Add: &models.AddDraft{}},
			e.text("PROMPT_ADD_CATEGORY", nil, e.categories()...),
		), models.FlowAdd, nil

	case actionInbound, actionOutbound:
		direction := models.KindInbound
		if action == actionOutbound {
			direction = models.KindOutbound
		}
		return advance(
			&models.Session{Step: models.StepStockAwaitingSearchType, Stock: &models.StockDraft{Direction: direction}},
			e.stockSearchTypePrompt(direction),
		), models.FlowStock, nil

	case actionEdit:
		msgs, err := e.myRecords(ctx, t)
		if err != nil {
			return result{}, models.FlowEdit, err
		}
		return finish(msgs...), models.FlowEdit, nil

	case actionHelp:
		return finish(e.text("MSG_HELP", nil)), "", nil

	case actionCancel:
		return finish(e.text("MSG_CANCEL_CONFIRM", nil)), "", nil
	}

	return finish(e.text("INFO_WIP", map[string]any{"action": action})), "", nil
}

func (e *Engine) myRecords(ctx context.Context, t *turn) ([]models.Message, error) {
	limit := e.texts.Int(config.KeyRecordsFetchLimit, 5)
	records, err := e.ledger.RecordsByActor(ctx, e.actorName(ctx, t), limit)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return e.recordsMessage(records), nil
}

func (e *Engine) queryTypePrompt() models.Message {
	return e.text("PROMPT_QUERY_TYPE", nil,
		models.Button{Label: e.label("LABEL_QUERY_BY_NAME"), Data: "query_type=by_name"},
		models.Button{Label: e.label("LABEL_QUERY_BY_SERIAL"), Data: "query_type=by_serial"},
		models.Button{Label: e.label("LABEL_QUERY_ALL"), Data: "query_type=all"},
		models.Button{Label: e.label("LABEL_QUERY_MINE"), Data: "query_type=mine"},
	)
}

func (e *Engine) stockSearchTypePrompt(direction models.Kind) models.Message {
	return e.text("PROMPT_STOCK_SEARCH_TYPE", map[string]any{"direction": e.kindLabel(direction)},
		models.Button{Label: e.label("LABEL_QUERY_BY_NAME"), Data: "stock_search_type=by_name"},
		models.Button{Label: e.label("LABEL_QUERY_BY_SERIAL"), Data: "stock_search_type=by_serial"},
		models.Button{Label: e.label("LABEL_CANCEL"), Data: models.ActionPrefix + actionCancel},
	)
}
