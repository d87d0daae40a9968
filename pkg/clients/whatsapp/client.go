package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/metrics"
)

// Limits imposed by the Cloud API on interactive messages.
const (
	MaxReplyButtons    = 3
	MaxListRows        = 10
	MaxButtonTitle     = 20
	MaxRowTitle        = 24
	MaxRowDescription  = 72
	MaxInteractiveBody = 1024
	MaxTextBody        = 4096
)

// Client exposes WhatsApp Cloud API operations used by the application.
type Client interface {
	SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendMessageResponse, error)
	SendInteractiveMessage(ctx context.Context, req SendInteractiveRequest) (*SendMessageResponse, error)
	SendImageMessage(ctx context.Context, req SendImageRequest) (*SendMessageResponse, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient builds a WhatsApp API client using the provided configuration values.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &APIClient{
		httpClient:    restyClient,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// SendTextMessageRequest represents a simplified text message payload.
type SendTextMessageRequest struct {
	To         string
	Body       string
	PreviewURL bool
}

// ReplyButton is one quick reply button. ID comes back as the reply id.
type ReplyButton struct {
	ID    string
	Title string
}

// ListRow is one selectable entry of a list message.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups list rows under an optional title.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// SendInteractiveRequest describes a button or list message. A request with
// sections is sent as a list, otherwise as reply buttons.
type SendInteractiveRequest struct {
	To         string
	Body       string
	Footer     string
	Buttons    []ReplyButton
	ListButton string
	Sections   []ListSection
}

// SendImageRequest sends an image by public link or by uploaded media id.
type SendImageRequest struct {
	To      string
	Link    string
	MediaID string
	Caption string
}

// SendMessageResponse mirrors the successful response from Meta.
type SendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// apiError represents a WhatsApp Cloud API error payload.
type apiError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorData    any    `json:"error_data"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

func (c *APIClient) SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendMessageResponse, error) {
	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                req.To,
		"type":              "text",
		"text": map[string]any{
			"body":        Truncate(req.Body, MaxTextBody),
			"preview_url": req.PreviewURL,
		},
	})
}

func (c *APIClient) SendInteractiveMessage(ctx context.Context, req SendInteractiveRequest) (*SendMessageResponse, error) {
	interactive := map[string]any{
		"body": map[string]any{"text": Truncate(req.Body, MaxInteractiveBody)},
	}
	if req.Footer != "" {
		interactive["footer"] = map[string]any{"text": Truncate(req.Footer, 60)}
	}

	if len(req.Sections) > 0 {
		sections := make([]map[string]any, 0, len(req.Sections))
		rowsLeft := MaxListRows
		for _, section := range req.Sections {
			rows := make([]map[string]any, 0, len(section.Rows))
			for _, row := range section.Rows {
				if rowsLeft == 0 {
					break
				}
				rowsLeft--
				entry := map[string]any{"id": row.ID, "title": Truncate(row.Title, MaxRowTitle)}
				if row.Description != "" {
					entry["description"] = Truncate(row.Description, MaxRowDescription)
				}
				rows = append(rows, entry)
			}
			if len(rows) == 0 {
				continue
			}
			s := map[string]any{"rows": rows}
			if section.Title != "" {
				s["title"] = Truncate(section.Title, MaxRowTitle)
			}
			sections = append(sections, s)
		}
		interactive["type"] = "list"
		interactive["action"] = map[string]any{
			"button":   Truncate(req.ListButton, MaxButtonTitle),
			"sections": sections,
		}
	} else {
		if len(req.Buttons) == 0 || len(req.Buttons) > MaxReplyButtons {
			return nil, fmt.Errorf("reply buttons: got %d, want 1 to %d", len(req.Buttons), MaxReplyButtons)
		}
		buttons := make([]map[string]any, 0, len(req.Buttons))
		for _, b := range req.Buttons {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": b.ID, "title": Truncate(b.Title, MaxButtonTitle)},
			})
		}
		interactive["type"] = "button"
		interactive["action"] = map[string]any{"buttons": buttons}
	}

	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                req.To,
		"type":              "interactive",
		"interactive":       interactive,
	})
}

func (c *APIClient) SendImageMessage(ctx context.Context, req SendImageRequest) (*SendMessageResponse, error) {
	image := map[string]any{}
	switch {
	case req.MediaID != "":
		image["id"] = req.MediaID
	case req.Link != "":
		image["link"] = req.Link
	default:
		return nil, fmt.Errorf("image message without link or media id")
	}
	if req.Caption != "" {
		image["caption"] = Truncate(req.Caption, MaxInteractiveBody)
	}

	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                req.To,
		"type":              "image",
		"image":             image,
	})
}

func (c *APIClient) send(ctx context.Context, payload map[string]any) (*SendMessageResponse, error) {
	result := new(SendMessageResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		metrics.OutboundFailures.Inc()
		return nil, fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		metrics.OutboundFailures.Inc()
		message := ""
		code := resp.StatusCode()
		if apiErr != nil {
			message = apiErr.Error.Message
			if apiErr.Error.Code != 0 {
				code = apiErr.Error.Code
			}
		}
		return nil, fmt.Errorf("whatsapp api error: code=%d, message=%s", code, message)
	}

	return result, nil
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
