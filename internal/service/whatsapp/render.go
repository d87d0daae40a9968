package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/domain/models"
	client "github.com/mamadbah2/materialbot/pkg/clients/whatsapp"
)

// Labels resolves the few texts the renderer adds on its own.
type Labels interface {
	Message(key string, vars map[string]any) string
}

// Renderer lays engine messages out as WhatsApp text, button, list and
// image messages.
type Renderer struct {
	client client.Client
	labels Labels
	logger *zap.Logger
}

// NewRenderer builds a renderer sending through c.
func NewRenderer(c client.Client, labels Labels, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{client: c, labels: labels, logger: logger}
}

// Deliver sends msgs to the user in order and stops at the first failure.
func (r *Renderer) Deliver(ctx context.Context, to string, msgs []models.Message) error {
	for _, msg := range msgs {
		if err := r.deliver(ctx, to, msg); err != nil {
			return fmt.Errorf("deliver to %s: %w: %w", to, apperrors.ErrCollaborator, err)
		}
	}
	return nil
}

func (r *Renderer) deliver(ctx context.Context, to string, msg models.Message) error {
	if msg.Text != "" {
		if err := r.text(ctx, to, msg.Text, msg.Buttons); err != nil {
			return err
		}
	}
	if len(msg.Cards) == 0 {
		return nil
	}

	if msg.Text == "" && len(msg.Cards) > 1 && msg.AltText != "" {
		if err := r.text(ctx, to, msg.AltText, nil); err != nil {
			return err
		}
	}
	for _, card := range msg.Cards {
		if err := r.card(ctx, to, card); err != nil {
			return err
		}
	}
	return nil
}

// text sends a body with its buttons: up to three as reply buttons, more as
// lists of at most ten rows each.
func (r *Renderer) text(ctx context.Context, to, body string, buttons []models.Button) error {
	if len(buttons) == 0 {
		for _, chunk := range chunkText(body, client.MaxTextBody) {
			if _, err := r.client.SendTextMessage(ctx, client.SendTextMessageRequest{To: to, Body: chunk}); err != nil {
				return err
			}
		}
		return nil
	}

	if len(buttons) <= client.MaxReplyButtons {
		_, err := r.client.SendInteractiveMessage(ctx, client.SendInteractiveRequest{
			To:      to,
			Body:    body,
			Buttons: replyButtons(buttons),
		})
		return err
	}

	for start := 0; start < len(buttons); start += client.MaxListRows {
		end := min(start+client.MaxListRows, len(buttons))
		rows := make([]client.ListRow, 0, end-start)
		for _, b := range buttons[start:end] {
			rows = append(rows, client.ListRow{ID: b.Data, Title: b.Label})
		}
		_, err := r.client.SendInteractiveMessage(ctx, client.SendInteractiveRequest{
			To:         to,
			Body:       body,
			ListButton: r.labels.Message("LABEL_CHOOSE", nil),
			Sections:   []client.ListSection{{Rows: rows}},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) card(ctx context.Context, to string, card models.Card) error {
	body := cardText(card)

	if card.ImageURL != "" {
		req := client.SendImageRequest{To: to}
		if isMediaID(card.ImageURL) {
			req.MediaID = card.ImageURL
		} else {
			req.Link = card.ImageURL
		}
		if len(card.Buttons) == 0 {
			req.Caption = body
		} else {
			req.Caption = card.Title
		}
		if _, err := r.client.SendImageMessage(ctx, req); err != nil {
			// The text still carries everything the user needs.
			r.logger.Warn("failed to send card image", zap.String("title", card.Title), zap.Error(err))
		} else if len(card.Buttons) == 0 {
			return nil
		}
	}

	return r.text(ctx, to, body, card.Buttons)
}

func cardText(card models.Card) string {
	lines := []string{"*" + card.Title + "*"}
	for _, f := range card.Fields {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Label, f.Value))
	}
	if card.Notice != "" {
		lines = append(lines, "_"+card.Notice+"_")
	}
	return strings.Join(lines, "\n")
}

func replyButtons(buttons []models.Button) []client.ReplyButton {
	out := make([]client.ReplyButton, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, client.ReplyButton{ID: b.Data, Title: b.Label})
	}
	return out
}

func isMediaID(ref string) bool {
	if ref == "" {
		return false
	}
	for _, r := range ref {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// chunkText splits body on line boundaries so no chunk exceeds limit runes.
func chunkText(body string, limit int) []string {
	if len([]rune(body)) <= limit {
		return []string{body}
	}

	var chunks []string
	var current []string
	size := 0
	for _, line := range strings.Split(body, "\n") {
		n := len([]rune(line)) + 1
		if size+n > limit && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current, size = nil, 0
		}
		current = append(current, line)
		size += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}
