package dialogue

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/cache"
	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/domain/models"
	"github.com/mamadbah2/materialbot/internal/repository/sheets"
	"github.com/mamadbah2/materialbot/internal/service/ledger"
	"github.com/mamadbah2/materialbot/internal/service/session"
)

const (
	sheet  = "Records"
	userID = "886900000001"
)

var header = []interface{}{"category", "serial", "name", "model", "spec", "unit", "quantity", "kind", "status", "void_reason", "actor", "timestamp", "photo"}

func ledgerRow(cat, serial, name string, qty int, kind models.Kind, actor, ts string) []interface{} {
	return []interface{}{cat, serial, name, "", "", "pcs", qty, string(kind), string(models.StatusValid), "", actor, ts, ""}
}

type fixedIdentity struct{ name string }

func (f fixedIdentity) DisplayName(context.Context, string, string) string { return f.name }

type EngineTestSuite struct {
	suite.Suite
	ctx    context.Context
	repo   *sheets.MemoryRepository
	store  *session.MemoryStore
	ledger *ledger.Service
	engine *Engine
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = sheets.NewMemoryRepository()
	s.repo.Seed(sheet, header)
	s.store = session.NewMemoryStore()
	s.ledger = ledger.NewService(s.repo, cache.NewMemory(), ledger.Options{Sheet: sheet, Location: time.UTC}, nil)
	s.engine = NewEngine(s.ledger, session.NewManager(s.store), fixedIdentity{name: "Ana"}, config.NewCatalog(), nil)
}

func (s *EngineTestSuite) seed(rows ...[]interface{}) {
	s.repo.Seed(sheet, append([][]interface{}{header}, rows...)...)
}

func (s *EngineTestSuite) send(text string) []models.Message {
	msgs, err := s.engine.Handle(s.ctx, models.Event{UserID: userID, ProfileName: "Ana", Text: text})
	s.Require().NoError(err)
	return msgs
}

func (s *EngineTestSuite) press(data string) []models.Message {
	msgs, err := s.engine.Handle(s.ctx, models.Event{UserID: userID, ProfileName: "Ana", Postback: data})
	s.Require().NoError(err)
	return msgs
}

func (s *EngineTestSuite) step() models.Step {
	current, ok, err := s.store.Get(s.ctx, userID)
	s.Require().NoError(err)
	if !ok {
		return ""
	}
	return current.Step
}

func (s *EngineTestSuite) rows() [][]interface{} {
	rows, err := s.repo.ReadRows(s.ctx, sheet)
	s.Require().NoError(err)
	return rows
}

func joined(msgs []models.Message) string {
	var parts []string
	for _, m := range msgs {
		parts = append(parts, m.Text, m.AltText)
	}
	return strings.Join(parts, "\n")
}

func (s *EngineTestSuite) TestAddFlowEndToEnd() {
	s.press("action=add")
	s.Equal(models.StepAddAwaitingCategory, s.step())

	s.press("add_category=T01")
	s.Equal(models.StepAddAwaitingUnitChoice, s.step())
	s.press("add_unit=pcs")
	s.send("Widget")
	s.press("add_skip")
	s.send("-")
	s.Equal(models.StepAddAwaitingQuantity, s.step())

	msgs := s.send("ten")
	s.Contains(joined(msgs), "positive whole number")
	s.Equal(models.StepAddAwaitingQuantity, s.step())

	s.send("10")
	s.press("add_skip")
	s.Equal(models.StepAddAwaitingConfirmation, s.step())

	msgs = s.press("add_confirm=yes")
	s.Contains(joined(msgs), "T01001")
	s.Contains(joined(msgs), "10 pcs")
	s.Equal(models.Step(""), s.step())

	rows := s.rows()
	s.Require().Len(rows, 2)
	s.Equal("T01", rows[1][models.ColCategory])
	s.Equal("001", rows[1][models.ColSerial])
	s.Equal("Widget", rows[1][models.ColName])
	s.Equal("10", rows[1][models.ColQuantity])
	s.Equal(string(models.KindCreated), rows[1][models.ColKind])
	s.Equal("Ana", rows[1][models.ColActor])
}

func (s *EngineTestSuite) TestAddCategoryCodeWithReservedCharacters() {
	catalog := config.NewCatalog()
	catalog.Merge(map[string]string{config.KeyCategories: "R&D 1:Lab kit,T01:Tools"})
	s.engine = NewEngine(s.ledger, session.NewManager(s.store), fixedIdentity{name: "Ana"}, catalog, nil)

	msgs := s.press("action=add")
	var data string
	for _, m := range msgs {
		for _, b := range m.Buttons {
			if strings.HasPrefix(b.Label, "R&D 1") {
				data = b.Data
			}
		}
	}
	s.Require().NotEmpty(data)

	s.press(data)
	s.Equal(models.StepAddAwaitingUnitChoice, s.step())
	current, _, err := s.store.Get(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal("R&D 1", current.Add.Category)
}

func (s *EngineTestSuite) TestAddRejectsUnknownCategory() {
	s.press("action=add")
	msgs := s.send("ZZZ")
	s.Contains(joined(msgs), "Unknown category")
	s.Equal(models.StepAddAwaitingCategory, s.step())
}

func (s *EngineTestSuite) TestAddCancelledWritesNothing() {
	s.press("action=add")
	s.press("add_category=E01")
	s.press("add_unit=manual")
	s.Equal(models.StepAddAwaitingManualUnit, s.step())
	s.send("roll")
	s.send("Cable")
	s.send("-")
	s.send("-")
	s.send("3")
	s.press("add_skip")
	msgs := s.press("add_confirm=no")

	s.Contains(joined(msgs), "Nothing was saved")
	s.Len(s.rows(), 1)
	s.Equal(models.Step(""), s.step())
}

func (s *EngineTestSuite) TestOutboundBeyondStockIsRejected() {
	s.seed(ledgerRow("T01", "001", "Widget", 3, models.KindCreated, "Ana", "2024-04-01 10:00:00"))

	s.press("action=outbound")
	s.press("stock_search_type=by_serial")
	s.Equal(models.StepStockAwaitingSearchInput, s.step())
	msgs := s.send("t01001")
	s.Require().NotEmpty(msgs)
	s.Equal(models.Step(""), s.step())

	s.press("stock_select&action=outbound&key=T01001")
	s.Equal(models.StepStockAwaitingQuantity, s.step())

	msgs = s.send("5")
	s.Contains(joined(msgs), "Insufficient stock")
	s.Equal(models.Step(""), s.step())
	s.Len(s.rows(), 2)
}

func (s *EngineTestSuite) TestOutboundWithinStock() {
	s.seed(ledgerRow("T01", "001", "Widget", 3, models.KindCreated, "Ana", "2024-04-01 10:00:00"))

	s.press("stock_select&action=outbound&key=T01001")
	s.send("2")
	s.Equal(models.StepStockAwaitingConfirmation, s.step())
	msgs := s.press("stock_confirm=yes")

	s.Contains(joined(msgs), "Stock: 1 pcs")
	rows := s.rows()
	s.Require().Len(rows, 3)
	s.Equal("-2", rows[2][models.ColQuantity])
	s.Equal(string(models.KindOutbound), rows[2][models.ColKind])
}

func (s *EngineTestSuite) TestOutboundRevalidatedAtConfirmation() {
	s.seed(ledgerRow("T01", "001", "Widget", 3, models.KindCreated, "Ana", "2024-04-01 10:00:00"))

	s.press("stock_select&action=outbound&key=T01001")
	s.send("3")

	_, err := s.ledger.Append(s.ctx, models.Record{Category: "T01", Serial: "001", Name: "Widget", Unit: "pcs", Quantity: 2, Kind: models.KindOutbound, ActorName: "Bo"})
	s.Require().NoError(err)

	msgs := s.press("stock_confirm=yes")
	s.Contains(joined(msgs), "Insufficient stock")
	s.Len(s.rows(), 3)
}

func (s *EngineTestSuite) TestInboundSearchByName() {
	s.seed(
		ledgerRow("T01", "001", "Widget", 3, models.KindCreated, "Ana", "2024-04-01 10:00:00"),
		ledgerRow("E01", "001", "Cable", 1, models.KindCreated, "Ana", "2024-04-01 11:00:00"),
	)

	s.press("action=inbound")
	s.press("stock_search_type=by_name")
	msgs := s.send("widg")

	var cards []models.Card
	for _, m := range msgs {
		cards = append(cards, m.Cards...)
	}
	s.Require().Len(cards, 1)
	s.Require().Len(cards[0].Buttons, 1)
	s.Equal("stock_select&action=inbound&key=T01001", cards[0].Buttons[0].Data)
}

func (s *EngineTestSuite) seedMovement() {
	s.seed(
		ledgerRow("T01", "001", "Widget", 15, models.KindCreated, "Ana", "2024-04-01 10:00:00"),
		ledgerRow("T01", "001", "Widget", -5, models.KindOutbound, "Ana", "2024-04-02 10:00:00"),
	)
}

func (s *EngineTestSuite) TestEditOutboundRejectedWhenStockWouldGoNegative() {
	s.seedMovement()

	s.press("edit_start&type=stock&row=3")
	s.Equal(models.StepEditStockAwaitingChoice, s.step())
	s.press("edit_stock_choice=quantity")
	s.send("16")
	msgs := s.press("edit_stock_choice=finish")

	s.Contains(joined(msgs), "15 pcs available")
	s.Equal(models.StepEditStockAwaitingChoice, s.step())
	rows := s.rows()
	s.Len(rows, 3)
	s.Equal(string(models.StatusValid), rows[2][models.ColStatus])
}

func (s *EngineTestSuite) TestEditOutboundAccepted() {
	s.seedMovement()

	s.press("edit_start&type=stock&row=3")
	s.press("edit_stock_choice=quantity")
	s.send("12")
	msgs := s.press("edit_stock_choice=finish")

	s.Contains(joined(msgs), "Row 3 was corrected")
	s.Equal(models.Step(""), s.step())

	rows := s.rows()
	s.Require().Len(rows, 4)
	s.Equal(string(models.StatusVoid), rows[2][models.ColStatus])
	s.Equal("Edited by Ana: Quantity 5 -> 12", rows[2][models.ColVoidReason])
	s.Equal("-12", rows[3][models.ColQuantity])
	s.Equal(string(models.KindOutbound), rows[3][models.ColKind])

	m, ok, err := s.ledger.Material(s.ctx, "T01001")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(3, m.Stock)
}

func (s *EngineTestSuite) TestEditMovementTypeFlip() {
	s.seedMovement()

	s.press("edit_start&type=stock&row=3")
	s.press("edit_stock_choice=type")
	s.Equal(models.StepEditStockAwaitingType, s.step())
	s.press("edit_type=inbound")
	s.press("edit_stock_choice=finish")

	m, _, err := s.ledger.Material(s.ctx, "T01001")
	s.Require().NoError(err)
	s.Equal(20, m.Stock)
}

func (s *EngineTestSuite) TestEditMovementOfRemovedItemWritesNothing() {
	created := ledgerRow("T01", "001", "Widget", 15, models.KindCreated, "Ana", "2024-04-01 10:00:00")
	created[models.ColStatus] = string(models.StatusVoid)
	s.seed(
		created,
		ledgerRow("T01", "001", "Widget", 3, models.KindInbound, "Ana", "2024-04-02 10:00:00"),
	)

	s.press("edit_start&type=stock&row=3")
	s.press("edit_stock_choice=quantity")
	s.send("5")
	msgs := s.press("edit_stock_choice=finish")

	s.Contains(joined(msgs), `No material matches "T01001"`)
	s.Equal(models.Step(""), s.step())
	rows := s.rows()
	s.Len(rows, 3)
	s.Equal(string(models.StatusValid), rows[2][models.ColStatus])
}

func (s *EngineTestSuite) TestEditNewItemFields() {
	s.seed(ledgerRow("T01", "001", "Widget", 15, models.KindCreated, "Ana", "2024-04-01 10:00:00"))

	s.press("edit_start&type=new&row=2")
	s.Equal(models.StepEditNewAwaitingChoice, s.step())
	s.press("edit_field=name")
	s.send("Gadget")
	s.press("edit_field=unit")
	s.press("edit_unit=box")
	s.press("edit_field=finish")

	m, ok, err := s.ledger.Material(s.ctx, "T01001")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("Gadget", m.Name)
	s.Equal("box", m.Unit)
	s.Equal(15, m.Stock)
}

func (s *EngineTestSuite) TestEditTypeMismatch() {
	s.seedMovement()

	msgs := s.press("edit_start&type=new&row=3")
	s.Contains(joined(msgs), "cannot be edited")
	s.Equal(models.Step(""), s.step())
}

func (s *EngineTestSuite) TestEditMissingRow() {
	s.seedMovement()

	msgs := s.press("edit_start&type=stock&row=9")
	s.Contains(joined(msgs), "Row 9 was not found")
}

func (s *EngineTestSuite) TestDeleteVoidsRow() {
	s.seedMovement()

	s.press("delete_record&row=3")
	s.Equal(models.StepDeleteAwaitingConfirmation, s.step())
	msgs := s.press("delete_confirm=yes")

	s.Contains(joined(msgs), "Row 3 was voided")
	rows := s.rows()
	s.Equal(string(models.StatusVoid), rows[2][models.ColStatus])
	s.Equal("Data error", rows[2][models.ColVoidReason])

	msgs = s.press("delete_record&row=3")
	s.Contains(joined(msgs), "already void")
}

func (s *EngineTestSuite) TestDeleteDeclined() {
	s.seedMovement()

	s.press("delete_record&row=3")
	s.press("delete_confirm=no")
	s.Equal(string(models.StatusValid), s.rows()[2][models.ColStatus])
}

func (s *EngineTestSuite) TestQueryByName() {
	s.seed(
		ledgerRow("T01", "001", "Widget", 3, models.KindCreated, "Ana", "2024-04-01 10:00:00"),
		ledgerRow("E01", "001", "Cable", 1, models.KindCreated, "Ana", "2024-04-01 11:00:00"),
	)

	s.press("action=query")
	s.press("query_type=by_name")
	s.Equal(models.StepQueryAwaitingName, s.step())
	msgs := s.send("cab")

	s.Require().Len(msgs, 1)
	s.Require().Len(msgs[0].Cards, 1)
	s.Equal("Cable", msgs[0].Cards[0].Title)
	s.Len(msgs[0].Cards[0].Buttons, 2)
	s.Equal(models.Step(""), s.step())
}

func (s *EngineTestSuite) TestQueryNotFound() {
	s.press("action=query")
	s.press("query_type=by_serial")
	msgs := s.send("X99999")
	s.Contains(joined(msgs), "No material matches \"X99999\"")
}

func (s *EngineTestSuite) TestTooManyResultsRendersList() {
	var rows [][]interface{}
	for i := 1; i <= maxCarouselCards+1; i++ {
		rows = append(rows, ledgerRow("S01", fmt.Sprintf("%03d", i), fmt.Sprintf("Bolt %d", i), i, models.KindCreated, "Ana", "2024-04-01 10:00:00"))
	}
	s.seed(rows...)

	s.press("query_type=by_name")
	msgs := s.send("bolt")

	s.Require().Len(msgs, 1)
	s.Empty(msgs[0].Cards)
	s.Contains(msgs[0].Text, "13 items found")
	s.Contains(msgs[0].Text, "S01013 Bolt 13 : 13 pcs")
}

func (s *EngineTestSuite) TestActionDiscardsSession() {
	s.press("action=add")
	s.press("add_category=T01")

	msgs := s.press("action=help")
	s.Contains(joined(msgs), "/query")
	s.Equal(models.Step(""), s.step())
}

func (s *EngineTestSuite) TestUnknownActionIsWorkInProgress() {
	msgs := s.press("action=report")
	s.Contains(joined(msgs), "\"report\" feature is not available")
}

func (s *EngineTestSuite) TestUnknownStepIsDiscarded() {
	s.Require().NoError(s.store.Set(s.ctx, userID, &models.Session{Step: "legacy_step"}))

	msgs := s.send("hello")
	s.Empty(msgs)
	s.Equal(models.Step(""), s.step())
}

func (s *EngineTestSuite) TestStrayTextIsIgnored() {
	s.Empty(s.send("hello"))
	s.Empty(s.press("something_else=1"))
	s.Equal(models.Step(""), s.step())
}

func (s *EngineTestSuite) TestMyRecords() {
	s.seedMovement()

	msgs := s.press("action=edit")
	s.Require().Len(msgs, 2)
	s.Contains(msgs[0].Text, "latest 2 records")
	s.Require().Len(msgs[1].Cards, 2)
	s.Equal("edit_start&type=stock&row=3", msgs[1].Cards[0].Buttons[0].Data)
	s.Equal("delete_record&row=2", msgs[1].Cards[1].Buttons[1].Data)
}

type brokenRepository struct{ sheets.Repository }

func (brokenRepository) ReadRows(context.Context, string) ([][]interface{}, error) {
	return nil, fmt.Errorf("read sheet: %w: quota exceeded", apperrors.ErrCollaborator)
}

func (s *EngineTestSuite) TestCollaboratorFailureResetsSession() {
	broken := ledger.NewService(brokenRepository{}, cache.NewMemory(), ledger.Options{Sheet: sheet, Location: time.UTC}, nil)
	s.engine = NewEngine(broken, session.NewManager(s.store), fixedIdentity{name: "Ana"}, config.NewCatalog(), nil)
	s.Require().NoError(s.store.Set(s.ctx, userID, &models.Session{Step: models.StepQueryAwaitingName}))

	msgs := s.send("widget")
	s.Require().Len(msgs, 1)
	s.Contains(msgs[0].Text, "Something went wrong")
	s.Equal(models.Step(""), s.step())
}

func TestHandleRejectsAnonymousEvent(t *testing.T) {
	engine := NewEngine(nil, session.NewManager(session.NewMemoryStore()), fixedIdentity{}, config.NewCatalog(), nil)
	_, err := engine.Handle(context.Background(), models.Event{Text: "hi"})
	if err == nil {
		t.Fatal("expected an error for an event without user")
	}
}
