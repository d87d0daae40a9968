package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/domain/models"
	"github.com/mamadbah2/materialbot/internal/metrics"
	"github.com/mamadbah2/materialbot/internal/service/session"
)

// Ledger is the subset of the ledger service the flows rely on.
type Ledger interface {
	Append(ctx context.Context, rec models.Record) (models.Record, error)
	Void(ctx context.Context, row int, reason, actor string) error
	OverwriteCell(ctx context.Context, row int, cells map[int]interface{}) error
	NextSerial(ctx context.Context, category string) (string, error)
	RecordsByActor(ctx context.Context, actor string, limit int) ([]models.Record, error)
	Record(ctx context.Context, row int) (models.Record, error)
	Material(ctx context.Context, key string) (models.Material, bool, error)
	Search(ctx context.Context, query string) ([]models.Material, error)
	Materials(ctx context.Context) ([]models.Material, error)
	FindDuplicate(ctx context.Context, name, model, spec string) (models.Material, bool, error)
}

// Identity resolves the display name recorded as actor on ledger rows.
type Identity interface {
	DisplayName(ctx context.Context, userID, profileHint string) string
}

// Texts resolves labels, templates and list settings.
type Texts interface {
	Message(key string, vars map[string]any) string
	String(key, fallback string) string
	List(key string) []string
	Int(key string, fallback int) int
}

// Engine routes inbound events to the flow that owns them and persists the
// resulting session. Each user's events are handled one at a time.
type Engine struct {
	ledger   Ledger
	sessions *session.Manager
	identity Identity
	texts    Texts
	validate *validator.Validate
	logger   *zap.Logger
}

// NewEngine wires the dialogue engine.
func NewEngine(ledger Ledger, sessions *session.Manager, identity Identity, texts Texts, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ledger:   ledger,
		sessions: sessions,
		identity: identity,
		texts:    texts,
		validate: validator.New(),
		logger:   logger,
	}
}

// result is the outcome of one flow transition.
type result struct {
	next     *models.Session
	clear    bool
	messages []models.Message
}

// advance persists next and replies with msgs.
func advance(next *models.Session, msgs ...models.Message) result {
	return result{next: next, messages: msgs}
}

// finish ends the flow.
func finish(msgs ...models.Message) result {
	return result{clear: true, messages: msgs}
}

// ignore leaves everything as it is.
func ignore() result {
	return result{}
}

// turn carries one inbound event through the engine.
type turn struct {
	event    models.Event
	postback models.Postback
	actor    string
}

func (t *turn) text() string {
	if t.event.IsPostback() {
		return ""
	}
	return strings.TrimSpace(t.event.Text)
}

// Handle processes one inbound event and returns the replies to send.
func (e *Engine) Handle(ctx context.Context, ev models.Event) ([]models.Message, error) {
	if ev.UserID == "" {
		return nil, fmt.Errorf("event without user: %w", apperrors.ErrValidation)
	}

	t := &turn{event: ev}
	if ev.IsPostback() {
		t.postback = models.ParsePostback(ev.Postback)
	}

	var replies []models.Message
	err := e.sessions.WithLock(ctx, ev.UserID, func(ctx context.Context) error {
		replies = e.handleLocked(ctx, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("handle event for %s: %w", ev.UserID, err)
	}
	return replies, nil
}

func (e *Engine) handleLocked(ctx context.Context, t *turn) []models.Message {
	store := e.sessions.Store()
	userID := t.event.UserID

	current, ok, err := store.Get(ctx, userID)
	if err != nil {
		e.logger.Error("failed to load session", zap.String("user_id", userID), zap.Error(err))
		metrics.EventsHandled.WithLabelValues("none", "error").Inc()
		return []models.Message{e.text("MSG_SYSTEM_ERROR", nil)}
	}
	if !ok {
		current = nil
	}

	res, flow, err := e.route(ctx, t, current)
	if err != nil {
		step := ""
		if current != nil {
			step = string(current.Step)
		}
		e.logger.Error("dialogue step failed",
			zap.String("user_id", userID),
			zap.String("step", step),
			zap.String("input", t.event.Input()),
			zap.Bool("collaborator", errors.Is(err, apperrors.ErrCollaborator)),
			zap.Error(err),
		)
		if clearErr := store.Clear(ctx, userID); clearErr != nil {
			e.logger.Error("failed to clear session", zap.String("user_id", userID), zap.Error(clearErr))
		}
		metrics.EventsHandled.WithLabelValues(flowLabel(flow), "error").Inc()
		return []models.Message{e.text("MSG_SYSTEM_ERROR", nil)}
	}

	switch {
	case res.next != nil:
		err = store.Set(ctx, userID, res.next)
	case res.clear && current != nil:
		err = store.Clear(ctx, userID)
	}
	if err != nil {
		e.logger.Error("failed to persist session",
			zap.String("user_id", userID),
			zap.String("input", t.event.Input()),
			zap.Error(err),
		)
		metrics.EventsHandled.WithLabelValues(flowLabel(flow), "error").Inc()
		return []models.Message{e.text("MSG_SYSTEM_ERROR", nil)}
	}

	outcome := "ignored"
	switch {
	case res.next != nil:
		outcome = "advanced"
	case res.clear:
		outcome = "finished"
	}
	metrics.EventsHandled.WithLabelValues(flowLabel(flow), outcome).Inc()
	return res.messages
}

// route picks the handler for an event:
//  1. an action command clears any session and starts that action;
//  2. an existing session owns the event;
//  3. a postback whose leading token names a flow enters that flow;
//  4. anything else is ignored.
func (e *Engine) route(ctx context.Context, t *turn, current *models.Session) (result, models.Flow, error) {
	if t.postback.IsAction() {
		res, flow, err := e.startFlow(ctx, t, t.postback.Action())
		if res.next == nil {
			res.clear = true
		}
		return res, flow, err
	}

	if current != nil {
		flow, ok := current.Step.Flow()
		if !ok {
			e.logger.Warn("discarding session with unknown step",
				zap.String("user_id", t.event.UserID),
				zap.String("step", string(current.Step)),
			)
			return finish(), "", nil
		}
		res, err := e.dispatch(ctx, flow, t, current)
		return res, flow, err
	}

	if t.event.IsPostback() {
		if flow := t.postback.Flow(); flow.Known() {
			res, err := e.dispatch(ctx, flow, t, nil)
			return res, flow, err
		}
	}
	return ignore(), "", nil
}

func (e *Engine) dispatch(ctx context.Context, flow models.Flow, t *turn, current *models.Session) (result, error) {
	switch flow {
	case models.FlowQuery:
		return e.handleQuery(ctx, t, current)
	case models.FlowAdd:
		return e.handleAdd(ctx, t, current)
	case models.FlowStock:
		return e.handleStock(ctx, t, current)
	case models.FlowEdit:
		return e.handleEdit(ctx, t, current)
	case models.FlowDelete:
		return e.handleDelete(ctx, t, current)
	}
	return ignore(), nil
}

// actorName resolves the current user's display name once per event.
func (e *Engine) actorName(ctx context.Context, t *turn) string {
	if t.actor == "" {
		t.actor = e.identity.DisplayName(ctx, t.event.UserID, t.event.ProfileName)
	}
	return t.actor
}

func (e *Engine) text(key string, vars map[string]any, buttons ...models.Button) models.Message {
	return models.TextMessage(e.texts.Message(key, vars), buttons...)
}

func (e *Engine) label(key string) string {
	return e.texts.Message(key, nil)
}

// parseQuantity accepts positive whole numbers only.
func parseQuantity(input string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, fmt.Errorf("quantity %q: %w", input, apperrors.ErrValidation)
	}
	if n <= 0 {
		return 0, fmt.Errorf("quantity %d must be positive: %w", n, apperrors.ErrValidation)
	}
	return n, nil
}

// parseRow reads a ledger row reference from a postback.
func parseRow(pb models.Postback) (int, bool) {
	row, err := strconv.Atoi(pb.Get("row"))
	if err != nil || row < 2 {
		return 0, false
	}
	return row, true
}

func isSkip(t *turn, skipKey string) bool {
	if t.event.IsPostback() {
		return t.postback.Has(skipKey)
	}
	return t.text() == "-"
}

func flowLabel(flow models.Flow) string {
	if flow == "" {
		return "none"
	}
	return string(flow)
}
