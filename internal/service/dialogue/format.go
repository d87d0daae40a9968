package dialogue

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// maxCarouselCards is the largest result set shown as cards.
const maxCarouselCards = 12

var (
	driveFilePath = regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)`)
	driveIDParam  = regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`)
	driveBareID   = regexp.MustCompile(`^[A-Za-z0-9_-]{25,}$`)
	mediaID       = regexp.MustCompile(`^[0-9]+$`)
)

const driveViewURL = "https://drive.google.com/uc?export=view&id="

// PhotoURL turns a stored photo reference into something a chat client can
// display. Drive links and ids become direct view URLs, gateway media ids
// and other URLs pass through, anything else falls back to fallback.
func PhotoURL(ref, fallback string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return fallback
	case strings.Contains(ref, "drive.google.com"):
		if m := driveFilePath.FindStringSubmatch(ref); m != nil {
			return driveViewURL + m[1]
		}
		if m := driveIDParam.FindStringSubmatch(ref); m != nil {
			return driveViewURL + m[1]
		}
		return ref
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case mediaID.MatchString(ref):
		return ref
	case driveBareID.MatchString(ref):
		return driveViewURL + ref
	}
	return fallback
}

// cardButtons builds the actions attached to a material card.
type cardButtons func(m models.Material) []models.Button

// materialResults renders a result set: a single card, a carousel of up to
// maxCarouselCards, or a plain text list beyond that.
func (e *Engine) materialResults(materials []models.Material, query string, buttons cardButtons) []models.Message {
	if len(materials) == 0 {
		return []models.Message{e.text("MSG_QUERY_NOT_FOUND", map[string]any{"query": query})}
	}

	sorted := append([]models.Material(nil), materials...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Serial < sorted[j].Serial
	})

	if len(sorted) > maxCarouselCards {
		lines := []string{e.texts.Message("INFO_TOO_MANY_RESULTS_HEADER", map[string]any{"count": len(sorted)})}
		for _, m := range sorted {
			line := e.texts.Message("TEMPLATE_ALL_INVENTORY_ITEM", map[string]any{
				"key":   m.Key(),
				"name":  m.Name,
				"model": m.Model,
				"spec":  m.Spec,
				"stock": m.Stock,
				"unit":  m.Unit,
			})
			lines = append(lines, strings.Join(strings.Fields(line), " "))
		}
		return []models.Message{{Text: strings.Join(lines, "\n")}}
	}

	cards := make([]models.Card, 0, len(sorted))
	for _, m := range sorted {
		cards = append(cards, e.materialCard(m, buttons))
	}
	return []models.Message{{
		AltText: e.texts.Message("INFO_TOO_MANY_RESULTS_HEADER", map[string]any{"count": len(cards)}),
		Cards:   cards,
	}}
}

func (e *Engine) materialCard(m models.Material, buttons cardButtons) models.Card {
	card := models.Card{
		Title:    m.Name,
		ImageURL: PhotoURL(m.PhotoRef, e.texts.String(config.KeyDefaultImageURL, "")),
		Fields: []models.CardField{
			{Label: e.label("LABEL_SERIAL"), Value: m.Key()},
			{Label: e.label("LABEL_STOCK"), Value: fmt.Sprintf("%d %s", m.Stock, m.Unit)},
		},
	}
	if m.Model != "" {
		card.Fields = append(card.Fields, models.CardField{Label: e.label("LABEL_MODEL"), Value: m.Model})
	}
	if m.Spec != "" {
		card.Fields = append(card.Fields, models.CardField{Label: e.label("LABEL_SPEC"), Value: m.Spec})
	}
	if buttons != nil {
		card.Buttons = buttons(m)
	}
	return card
}

// movementButtons offers both stock movements for a material.
func (e *Engine) movementButtons(m models.Material) []models.Button {
	return []models.Button{
		{Label: e.label("LABEL_INBOUND"), Data: selectPostback(models.KindInbound, m.Key())},
		{Label: e.label("LABEL_OUTBOUND"), Data: selectPostback(models.KindOutbound, m.Key())},
	}
}

func selectPostback(direction models.Kind, key string) string {
	return fmt.Sprintf("stock_select&action=%s&key=%s", strings.ToLower(string(direction)), key)
}

// recordsMessage lists the user's latest ledger rows with edit and delete actions.
func (e *Engine) recordsMessage(records []models.Record) []models.Message {
	if len(records) == 0 {
		return []models.Message{e.text("INFO_NO_RECORDS", nil)}
	}

	cards := make([]models.Card, 0, len(records))
	for _, rec := range records {
		card := models.Card{
			Title: fmt.Sprintf("%s %s", e.kindLabel(rec.Kind), rec.Name),
			Fields: []models.CardField{
				{Label: e.label("LABEL_SERIAL"), Value: rec.Key()},
				{Label: e.label("LABEL_QUANTITY"), Value: fmt.Sprintf("%d %s", rec.Quantity, rec.Unit)},
				{Label: e.label("LABEL_TIME"), Value: rec.Timestamp.Format(models.TimestampLayout)},
			},
		}
		if rec.IsVoid() {
			card.Notice = fmt.Sprintf("%s: %s %s", e.label("LABEL_STATUS"), models.StatusVoid, rec.VoidReason)
		} else {
			editType := models.EditMovement
			if rec.Kind == models.KindCreated {
				editType = models.EditNewItem
			}
			card.Buttons = []models.Button{
				{Label: e.label("LABEL_EDIT"), Data: fmt.Sprintf("edit_start&type=%s&row=%d", editType, rec.RowPosition)},
				{Label: e.label("LABEL_DELETE"), Data: fmt.Sprintf("delete_record&row=%d", rec.RowPosition)},
			}
		}
		cards = append(cards, card)
	}

	return []models.Message{
		e.text("HEADER_MY_RECORDS", map[string]any{"count": len(records)}),
		{AltText: e.texts.Message("HEADER_MY_RECORDS", map[string]any{"count": len(records)}), Cards: cards},
	}
}

func (e *Engine) kindLabel(kind models.Kind) string {
	switch kind {
	case models.KindInbound:
		return e.label("LABEL_INBOUND")
	case models.KindOutbound:
		return e.label("LABEL_OUTBOUND")
	}
	return string(kind)
}

func (e *Engine) confirmButtons(key string) []models.Button {
	return []models.Button{
		{Label: e.label("LABEL_CONFIRM"), Data: key + "=yes"},
		{Label: e.label("LABEL_CANCEL"), Data: key + "=no"},
	}
}

// summary renders labelled lines, skipping empty values.
func (e *Engine) summary(pairs ...string) string {
	var lines []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", e.label(pairs[i]), pairs[i+1]))
	}
	return strings.Join(lines, "\n")
}

type category struct {
	code  string
	title string
}

// categoryList parses "CODE:Label,CODE:Label" in configured order.
func (e *Engine) categoryList() []category {
	var out []category
	for _, entry := range e.texts.List(config.KeyCategories) {
		code, label, found := strings.Cut(entry, ":")
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		title := code
		if found && strings.TrimSpace(label) != "" {
			title = code + " " + strings.TrimSpace(label)
		}
		out = append(out, category{code: code, title: title})
	}
	return out
}

func (e *Engine) categories() []models.Button {
	var buttons []models.Button
	for _, c := range e.categoryList() {
		buttons = append(buttons, models.Button{Label: c.title, Data: "add_category=" + url.QueryEscape(c.code)})
	}
	return buttons
}

func (e *Engine) unitButtons(postbackKey string) []models.Button {
	var buttons []models.Button
	for _, unit := range e.texts.List(config.KeyUnits) {
		buttons = append(buttons, models.Button{Label: unit, Data: postbackKey + "=" + url.QueryEscape(unit)})
	}
	return append(buttons, models.Button{Label: e.label("LABEL_MANUAL_UNIT"), Data: postbackKey + "=manual"})
}
