package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// handleStock drives an inbound or outbound movement: search, pick a card,
// enter a quantity, confirm.
func (e *Engine) handleStock(ctx context.Context, t *turn, s *models.Session) (result, error) {
	if t.postback.Has("stock_select") {
		return e.stockSelect(ctx, t)
	}
	if s == nil || s.Stock == nil {
		return ignore(), nil
	}
	d := s.Stock

	switch s.Step {
	case models.StepStockAwaitingSearchType:
		mode := models.SearchMode(t.postback.Get("stock_search_type"))
		if mode != models.SearchByName && mode != models.SearchBySerial {
			return advance(s, e.stockSearchTypePrompt(d.Direction)), nil
		}
		d.SearchBy = mode
		s.Step = models.StepStockAwaitingSearchInput
		return advance(s, e.stockSearchPrompt(mode)), nil

	case models.StepStockAwaitingSearchInput:
		query := t.text()
		if query == "" {
			return advance(s, e.stockSearchPrompt(d.SearchBy)), nil
		}
		found, err := e.findForMovement(ctx, d.SearchBy, query)
		if err != nil {
			return result{}, err
		}
		buttons := func(m models.Material) []models.Button {
			return []models.Button{{Label: e.kindLabel(d.Direction), Data: selectPostback(d.Direction, m.Key())}}
		}
		msgs := e.materialResults(found, query, buttons)
		if len(found) > 0 && len(found) <= maxCarouselCards {
			msgs = append([]models.Message{e.text("PROMPT_STOCK_SELECT", nil)}, msgs...)
		}
		// Selection arrives as a stock_select postback on a fresh turn.
		return finish(msgs...), nil

	case models.StepStockAwaitingQuantity:
		qty, err := parseQuantity(t.text())
		if err != nil {
			return advance(s, e.text("ERROR_INVALID_QUANTITY", nil), e.stockQuantityPrompt(d.Direction, *d.Item)), nil
		}
		current, ok, err := e.ledger.Material(ctx, d.Item.Key())
		if err != nil {
			return result{}, fmt.Errorf("reload material: %w", err)
		}
		if !ok {
			return finish(e.text("MSG_QUERY_NOT_FOUND", map[string]any{"query": d.Item.Key()})), nil
		}
		if d.Direction == models.KindOutbound && qty > current.Stock {
			return finish(e.insufficient(current, qty)), nil
		}
		d.Item = &current
		d.Quantity = qty
		s.Step = models.StepStockAwaitingConfirmation
		return advance(s, e.stockConfirmPrompt(d)), nil

	case models.StepStockAwaitingConfirmation:
		switch t.postback.Get("stock_confirm") {
		case "yes":
			return e.commitMovement(ctx, t, d)
		case "no":
			return finish(e.text("MSG_OPERATION_CANCELLED", nil)), nil
		}
		return advance(s, e.stockConfirmPrompt(d)), nil
	}

	return finish(), nil
}

// stockSelect enters awaiting_quantity straight from a card button.
func (e *Engine) stockSelect(ctx context.Context, t *turn) (result, error) {
	var direction models.Kind
	switch strings.ToLower(t.postback.Get("action")) {
	case "inbound":
		direction = models.KindInbound
	case "outbound":
		direction = models.KindOutbound
	default:
		return ignore(), nil
	}

	key := t.postback.Get("key")
	m, ok, err := e.ledger.Material(ctx, key)
	if err != nil {
		return result{}, fmt.Errorf("lookup material: %w", err)
	}
	if !ok {
		return finish(e.text("MSG_QUERY_NOT_FOUND", map[string]any{"query": key})), nil
	}

	return advance(&models.Session{
		Step:  models.StepStockAwaitingQuantity,
		Stock: &models.StockDraft{Direction: direction, Item: &m},
	}, e.stockQuantityPrompt(direction, m)), nil
}

func (e *Engine) findForMovement(ctx context.Context, mode models.SearchMode, query string) ([]models.Material, error) {
	if mode == models.SearchBySerial {
		m, ok, err := e.ledger.Material(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("lookup material: %w", err)
		}
		if !ok {
			return nil, nil
		}
		return []models.Material{m}, nil
	}
	found, err := e.ledger.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search materials: %w", err)
	}
	return found, nil
}

// commitMovement re-checks stock at write time, so a quote given at
// awaiting_quantity cannot drive stock negative after concurrent outbounds.
func (e *Engine) commitMovement(ctx context.Context, t *turn, d *models.StockDraft) (result, error) {
	if err := e.validate.Struct(d); err != nil {
		return result{}, fmt.Errorf("incomplete stock draft: %w", err)
	}

	current, ok, err := e.ledger.Material(ctx, d.Item.Key())
	if err != nil {
		return result{}, fmt.Errorf("reload material: %w", err)
	}
	if !ok {
		return finish(e.text("MSG_QUERY_NOT_FOUND", map[string]any{"query": d.Item.Key()})), nil
	}
	if d.Direction == models.KindOutbound && d.Quantity > current.Stock {
		return finish(e.insufficient(current, d.Quantity)), nil
	}

	_, err = e.ledger.Append(ctx, models.Record{
		Category:  current.Category,
		Serial:    current.Serial,
		Name:      current.Name,
		Model:     current.Model,
		Spec:      current.Spec,
		Unit:      current.Unit,
		Quantity:  models.SignedQuantity(d.Direction, d.Quantity),
		Kind:      d.Direction,
		ActorName: e.actorName(ctx, t),
	})
	if err != nil {
		return result{}, fmt.Errorf("append movement: %w", err)
	}

	after, _, err := e.ledger.Material(ctx, current.Key())
	if err != nil {
		return result{}, fmt.Errorf("reload material: %w", err)
	}

	return finish(e.text("MSG_STOCK_SUCCESS", map[string]any{
		"direction": e.kindLabel(d.Direction),
		"quantity":  d.Quantity,
		"unit":      current.Unit,
		"name":      current.Name,
		"key":       current.Key(),
		"stock":     after.Stock,
	})), nil
}

func (e *Engine) insufficient(m models.Material, requested int) models.Message {
	return e.text("MSG_STOCK_INSUFFICIENT", map[string]any{
		"name":     m.Name,
		"key":      m.Key(),
		"stock":    m.Stock,
		"unit":     m.Unit,
		"quantity": requested,
	})
}

func (e *Engine) stockSearchPrompt(mode models.SearchMode) models.Message {
	label := e.label("LABEL_NAME")
	if mode == models.SearchBySerial {
		label = e.label("LABEL_SERIAL")
	}
	return e.text("PROMPT_STOCK_SEARCH", map[string]any{"mode": strings.ToLower(label)})
}

func (e *Engine) stockQuantityPrompt(direction models.Kind, m models.Material) models.Message {
	return e.text("PROMPT_STOCK_QUANTITY", map[string]any{
		"name":      m.Name,
		"key":       m.Key(),
		"stock":     m.Stock,
		"unit":      m.Unit,
		"direction": strings.ToLower(e.kindLabel(direction)),
	})
}

func (e *Engine) stockConfirmPrompt(d *models.StockDraft) models.Message {
	return e.text("PROMPT_STOCK_CONFIRM_PROMPT", map[string]any{
		"direction": strings.ToLower(e.kindLabel(d.Direction)),
		"quantity":  d.Quantity,
		"unit":      d.Item.Unit,
		"name":      d.Item.Name,
		"key":       d.Item.Key(),
	}, e.confirmButtons("stock_confirm")...)
}
