package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/cache"
	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/domain/models"
	client "github.com/mamadbah2/materialbot/pkg/clients/whatsapp"
)

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	VerifySignature(body []byte, signature string) error
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Dialogue turns one inbound event into replies.
type Dialogue interface {
	Handle(ctx context.Context, ev models.Event) ([]models.Message, error)
}

// seenTTL covers Meta's webhook redelivery window.
const seenTTL = 24 * time.Hour

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg      config.WhatsAppConfig
	client   client.Client
	dialogue Dialogue
	seen     cache.Cache
	renderer *Renderer
	logger   *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance. seen may be nil, in
// which case redelivered messages are processed again.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, c client.Client, dialogue Dialogue, seen cache.Cache, texts Labels, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:      cfg,
		client:   c,
		dialogue: dialogue,
		seen:     seen,
		logger:   logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	svc.renderer = NewRenderer(c, texts, svc.logger.Named("renderer"))
	return svc
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if !hmac.Equal([]byte(verifyToken), []byte(s.cfg.VerifyToken)) {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// request body. Without an app secret every body is accepted.
func (s *MetaWhatsAppService) VerifySignature(body []byte, signature string) error {
	if s.cfg.AppSecret == "" {
		return nil
	}

	hexSig, found := strings.CutPrefix(signature, "sha256=")
	if !found {
		return fmt.Errorf("missing sha256 signature: %w", apperrors.ErrValidation)
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return fmt.Errorf("malformed signature: %w", apperrors.ErrValidation)
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.AppSecret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fmt.Errorf("signature mismatch: %w", apperrors.ErrValidation)
	}
	return nil
}

// HandleWebhook processes inbound webhook payloads.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	if len(payload.Entry) == 0 {
		return nil
	}

	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, status := range change.Value.Statuses {
				if status.Status == "failed" {
					s.logger.Warn("outbound message failed", zap.String("message_id", status.ID), zap.String("recipient", status.RecipientID))
				}
			}

			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg, change.Value.Contacts); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage, contacts []models.Contact) error {
	ev, ok := toEvent(msg, contacts)
	if !ok {
		s.logger.Debug("ignoring unsupported message", zap.String("type", msg.Type), zap.String("message_id", msg.ID))
		return nil
	}

	if s.alreadySeen(ctx, msg.ID) {
		s.logger.Info("skipping redelivered message", zap.String("message_id", msg.ID))
		return nil
	}

	log := s.logger.With(zap.String("correlation_id", uuid.NewString()))

	replies, err := s.dialogue.Handle(ctx, ev)
	if err != nil {
		return fmt.Errorf("dialogue: %w", err)
	}

	log.Info("handled inbound message",
		zap.String("from", msg.From),
		zap.String("type", msg.Type),
		zap.String("input", ev.Input()),
		zap.Int("replies", len(replies)))

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := s.renderer.Deliver(ctxWithTimeout, msg.From, replies); err != nil {
		log.Error("failed to deliver replies", zap.String("to", msg.From), zap.Error(err))
		return err
	}
	return nil
}

// alreadySeen records id and reports whether it was recorded before.
func (s *MetaWhatsAppService) alreadySeen(ctx context.Context, id string) bool {
	if s.seen == nil || id == "" {
		return false
	}
	key := "wamid:" + id
	if _, found, err := s.seen.Get(ctx, key); err == nil && found {
		return true
	}
	if err := s.seen.Set(ctx, key, []byte{1}, seenTTL); err != nil {
		s.logger.Warn("failed to record message id", zap.String("message_id", id), zap.Error(err))
	}
	return false
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrCollaborator, err)
	}
	return nil
}

// toEvent detaches a gateway message from the payload. Slash commands become
// action postbacks, replies to buttons and lists become their postback data.
func toEvent(msg models.InboundMessage, contacts []models.Contact) (models.Event, bool) {
	ev := models.Event{UserID: msg.From, MessageID: msg.ID}
	for _, c := range contacts {
		if c.WaID == msg.From {
			ev.ProfileName = c.Profile.Name
			break
		}
	}

	switch {
	case msg.Text != nil:
		text := strings.TrimSpace(msg.Text.Body)
		if text == "" {
			return ev, false
		}
		if strings.EqualFold(text, "menu") {
			text = "/help"
		}
		if models.IsCommand(text) {
			if postback, ok := models.ParseCommand(text).ActionPostback(); ok {
				ev.Postback = postback
				return ev, true
			}
		}
		ev.Text = text

	case msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
		ev.Postback = msg.Interactive.ButtonReply.ID

	case msg.Interactive != nil && msg.Interactive.ListReply != nil:
		ev.Postback = msg.Interactive.ListReply.ID

	case msg.Image != nil && msg.Image.ID != "":
		ev.ImageRef = msg.Image.ID
		ev.Text = msg.Image.Caption

	default:
		return ev, false
	}

	return ev, ev.UserID != ""
}
