package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/cache"
	"github.com/mamadbah2/materialbot/internal/domain/models"
	"github.com/mamadbah2/materialbot/internal/repository/sheets"
)

var header = []interface{}{"category", "serial", "name", "model", "spec", "unit", "quantity", "kind", "status", "void_reason", "actor", "timestamp", "photo"}

func row(cat, serial, name string, qty int, kind models.Kind, status models.Status, actor, ts string) []interface{} {
	return []interface{}{cat, serial, name, "", "", "pcs", qty, string(kind), string(status), "", actor, ts, ""}
}

type LedgerServiceTestSuite struct {
	suite.Suite
	repo    *sheets.MemoryRepository
	cache   *cache.Memory
	service *Service
	clock   time.Time
	ctx     context.Context
}

func (s *LedgerServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = sheets.NewMemoryRepository()
	s.cache = cache.NewMemory()
	s.clock = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.service = NewService(s.repo, s.cache, Options{Sheet: "Records", Location: time.UTC}, nil)
	s.service.now = func() time.Time { return s.clock }
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func (s *LedgerServiceTestSuite) seed(rows ...[]interface{}) {
	s.repo.Seed("Records", append([][]interface{}{header}, rows...)...)
}

func (s *LedgerServiceTestSuite) TestStockIsSumOfValidRecords() {
	s.seed(
		row("T01", "001", "Widget", 10, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
		row("T01", "001", "Widget", 5, models.KindInbound, models.StatusValid, "ana", "2024-04-02 10:00:00"),
		row("T01", "001", "Widget", -7, models.KindOutbound, models.StatusVoid, "ana", "2024-04-03 10:00:00"),
		row("T01", "001", "Widget", -4, models.KindOutbound, models.StatusValid, "bo", "2024-04-04 10:00:00"),
		row("E01", "001", "Cable", 3, models.KindCreated, models.StatusValid, "bo", "2024-04-04 11:00:00"),
	)

	inventory, err := s.service.MaterializedInventory(s.ctx)
	s.Require().NoError(err)
	s.Len(inventory, 2)
	s.Equal(11, inventory["T01001"].Stock)
	s.Equal(3, inventory["E01001"].Stock)
}

func (s *LedgerServiceTestSuite) TestDescriptiveFieldsFromLatestValidRecord() {
	s.seed(
		[]interface{}{"T01", "001", "Old name", "M1", "", "pcs", 10, "Created", "Valid", "", "ana", "2024-04-01 10:00:00", "photo-a"},
		[]interface{}{"T01", "001", "New name", "M2", "", "box", 2, "Inbound", "Valid", "", "ana", "2024-04-02 10:00:00", ""},
		[]interface{}{"T01", "001", "Voided name", "M3", "", "kg", 1, "Inbound", "Void", "", "ana", "2024-04-03 10:00:00", "photo-void"},
	)

	m, ok, err := s.service.Material(s.ctx, "t01 001")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("New name", m.Name)
	s.Equal("M2", m.Model)
	s.Equal("box", m.Unit)
	s.Equal("photo-a", m.PhotoRef)
	s.Equal(12, m.Stock)
}

func (s *LedgerServiceTestSuite) TestNextSerialSkipsVoidRows() {
	s.seed(
		row("T01", "001", "A", 1, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
		row("T01", "002", "B", 1, models.KindCreated, models.StatusVoid, "ana", "2024-04-01 10:00:00"),
		row("E01", "009", "C", 1, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
	)

	next, err := s.service.NextSerial(s.ctx, "T01")
	s.Require().NoError(err)
	s.Equal("002", next)

	next, err = s.service.NextSerial(s.ctx, "C01")
	s.Require().NoError(err)
	s.Equal("001", next)
}

func (s *LedgerServiceTestSuite) TestNextSerialAfterLiveHigherSerial() {
	s.seed(
		row("T01", "001", "A", 1, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
		row("T01", "002", "B", 1, models.KindCreated, models.StatusVoid, "ana", "2024-04-01 10:00:00"),
		row("T01", "002", "B", 1, models.KindInbound, models.StatusValid, "ana", "2024-04-01 10:00:00"),
	)

	next, err := s.service.NextSerial(s.ctx, "T01")
	s.Require().NoError(err)
	s.Equal("003", next)
}

func (s *LedgerServiceTestSuite) TestNextSerialHandlesNumericCells() {
	s.seed([]interface{}{"T01", float64(7), "A", "", "", "pcs", float64(1), "Created", "Valid", "", "ana", "2024-04-01 10:00:00", ""})

	next, err := s.service.NextSerial(s.ctx, "T01")
	s.Require().NoError(err)
	s.Equal("008", next)
}

func (s *LedgerServiceTestSuite) TestAppendInvalidatesCache() {
	s.seed(row("T01", "001", "Widget", 10, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"))

	before, err := s.service.MaterializedInventory(s.ctx)
	s.Require().NoError(err)
	s.Equal(10, before["T01001"].Stock)

	_, cached, _ := s.cache.Get(s.ctx, "inventory_map")
	s.True(cached)

	rec, err := s.service.Append(s.ctx, models.Record{
		Category: "T01", Serial: "001", Name: "Widget", Unit: "pcs",
		Quantity: 4, Kind: models.KindOutbound, ActorName: "bo",
	})
	s.Require().NoError(err)
	s.Equal(-4, rec.Quantity)
	s.Equal(models.StatusValid, rec.Status)
	s.Equal(s.clock, rec.Timestamp)

	after, err := s.service.MaterializedInventory(s.ctx)
	s.Require().NoError(err)
	s.Equal(6, after["T01001"].Stock)
}

func (s *LedgerServiceTestSuite) TestAppendRejectsMovementForUnknownItem() {
	s.seed()

	_, err := s.service.Append(s.ctx, models.Record{Category: "T01", Serial: "001", Quantity: 1, Kind: models.KindInbound})
	s.ErrorIs(err, apperrors.ErrNotFound)

	_, err = s.service.Append(s.ctx, models.Record{Category: "T01", Serial: "001", Quantity: 1, Kind: "Transfer"})
	s.ErrorIs(err, apperrors.ErrValidation)
}

func (s *LedgerServiceTestSuite) TestVoidInPlace() {
	s.seed(
		row("T01", "001", "Widget", 10, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
		row("T01", "001", "Widget", -3, models.KindOutbound, models.StatusValid, "ana", "2024-04-02 10:00:00"),
		row("T01", "001", "Widget", 2, models.KindInbound, models.StatusValid, "ana", "2024-04-03 10:00:00"),
	)
	_, err := s.service.MaterializedInventory(s.ctx)
	s.Require().NoError(err)

	before, err := s.repo.ReadRows(s.ctx, "Records")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Void(s.ctx, 3, "Data error", "bo"))

	after, err := s.repo.ReadRows(s.ctx, "Records")
	s.Require().NoError(err)
	s.Len(after, len(before))
	s.Equal(before[1], after[1])
	s.Equal(before[3], after[3])
	s.Equal(before[2][:models.ColStatus], after[2][:models.ColStatus])
	s.Equal("Void", after[2][models.ColStatus])
	s.Equal("Data error", after[2][models.ColVoidReason])
	s.Equal("bo", after[2][models.ColActor])
	s.Equal("2024-05-01 09:00:00", after[2][models.ColTimestamp])

	m, _, err := s.service.Material(s.ctx, "T01001")
	s.Require().NoError(err)
	s.Equal(12, m.Stock)
}

func (s *LedgerServiceTestSuite) TestVoidRejectsHeaderAndMissingRows() {
	s.seed(row("T01", "001", "Widget", 10, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"))

	s.ErrorIs(s.service.Void(s.ctx, 1, "x", "ana"), apperrors.ErrValidation)
	s.ErrorIs(s.service.Void(s.ctx, 9, "x", "ana"), apperrors.ErrNotFound)
}

func (s *LedgerServiceTestSuite) TestOverwriteCellKeepsCache() {
	s.seed(row("T01", "001", "Widget", 10, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"))
	_, err := s.service.MaterializedInventory(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.service.OverwriteCell(s.ctx, 2, map[int]interface{}{models.ColVoidReason: "name changed"}))
	_, cached, _ := s.cache.Get(s.ctx, "inventory_map")
	s.True(cached)

	rows, _ := s.repo.ReadRows(s.ctx, "Records")
	s.Equal("name changed", rows[1][models.ColVoidReason])

	s.ErrorIs(s.service.OverwriteCell(s.ctx, 2, map[int]interface{}{models.ColQuantity: 99}), apperrors.ErrValidation)
	s.ErrorIs(s.service.OverwriteCell(s.ctx, 2, map[int]interface{}{models.ColStatus: "Valid"}), apperrors.ErrValidation)
}

func (s *LedgerServiceTestSuite) TestRecordsByActorNewestFirst() {
	s.seed(
		row("T01", "001", "A", 10, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
		row("T01", "001", "A", 1, models.KindInbound, models.StatusValid, "bo", "2024-04-02 10:00:00"),
		row("T01", "001", "A", 2, models.KindInbound, models.StatusVoid, "ana", "2024-04-03 10:00:00"),
		row("T01", "001", "A", 3, models.KindInbound, models.StatusValid, "ana", "2024-04-04 10:00:00"),
	)

	recs, err := s.service.RecordsByActor(s.ctx, "ana", 0)
	s.Require().NoError(err)
	s.Require().Len(recs, 3)
	s.Equal(5, recs[0].RowPosition)
	s.Equal(4, recs[1].RowPosition)
	s.True(recs[1].IsVoid())
	s.Equal(2, recs[2].RowPosition)

	recs, err = s.service.RecordsByActor(s.ctx, "ana", 1)
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *LedgerServiceTestSuite) TestSearchIsCaseAndWhitespaceInsensitive() {
	s.seed(
		row("T01", "002", " LED Strip", 1, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
		row("E01", "001", "Led bulb", 1, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
		row("T01", "001", "Hammer", 1, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
	)

	found, err := s.service.Search(s.ctx, "led")
	s.Require().NoError(err)
	s.Require().Len(found, 2)
	s.Equal("E01001", found[0].Key())
	s.Equal("T01002", found[1].Key())

	found, err = s.service.Search(s.ctx, "LE DS")
	s.Require().NoError(err)
	s.Len(found, 1)

	found, err = s.service.Search(s.ctx, "   ")
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *LedgerServiceTestSuite) TestFindDuplicate() {
	s.seed([]interface{}{"T01", "001", "Drill", "X1", "18V", "pcs", 1, "Created", "Valid", "", "ana", "2024-04-01 10:00:00", ""})

	m, ok, err := s.service.FindDuplicate(s.ctx, "drill ", "x1", "18v")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("T01001", m.Key())

	_, ok, err = s.service.FindDuplicate(s.ctx, "Drill", "X2", "18V")
	s.Require().NoError(err)
	s.False(ok)
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) ReadRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	args := m.Called(ctx, sheet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]interface{}), args.Error(1)
}

func (m *mockRepository) AppendRow(ctx context.Context, sheet string, values []interface{}) error {
	return m.Called(ctx, sheet, values).Error(0)
}

func (m *mockRepository) WriteCells(ctx context.Context, sheet string, row, col int, values []interface{}) error {
	return m.Called(ctx, sheet, row, col, values).Error(0)
}

func TestAppendSurfacesCollaboratorFailure(t *testing.T) {
	repo := new(mockRepository)
	repo.On("AppendRow", mock.Anything, "Records", mock.Anything).
		Return(errors.Join(apperrors.ErrCollaborator, errors.New("503")))

	svc := NewService(repo, cache.NewMemory(), Options{}, nil)
	_, err := svc.Append(context.Background(), models.Record{Category: "T01", Serial: "001", Quantity: 1, Kind: models.KindCreated})

	if !errors.Is(err, apperrors.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	repo.AssertExpectations(t)
}

// pausingRepository holds the first ReadRows open after the rows were read,
// until release is closed.
type pausingRepository struct {
	*sheets.MemoryRepository
	once    sync.Once
	paused  chan struct{}
	release chan struct{}
}

func (r *pausingRepository) ReadRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	rows, err := r.MemoryRepository.ReadRows(ctx, sheet)
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.paused)
		<-r.release
	}
	return rows, err
}

func TestRebuildRacingAWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := &pausingRepository{
		MemoryRepository: sheets.NewMemoryRepository(),
		paused:           make(chan struct{}),
		release:          make(chan struct{}),
	}
	repo.Seed("Records", header,
		row("T01", "001", "Widget", 10, models.KindCreated, models.StatusValid, "ana", "2024-04-01 10:00:00"),
	)
	svc := NewService(repo, cache.NewMemory(), Options{Sheet: "Records", Location: time.UTC}, nil)

	stale := make(chan map[string]models.Material)
	go func() {
		inventory, err := svc.MaterializedInventory(ctx)
		assert.NoError(t, err)
		stale <- inventory
	}()

	<-repo.paused
	_, err := svc.Append(ctx, models.Record{Category: "T01", Serial: "001", Name: "Widget", Unit: "pcs", Quantity: 10, Kind: models.KindOutbound, ActorName: "bo"})
	require.NoError(t, err)
	close(repo.release)

	require.Equal(t, 10, (<-stale)["T01001"].Stock)

	m, ok, err := svc.Material(ctx, "T01001")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, m.Stock)
}
