package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/cache"
	"github.com/mamadbah2/materialbot/internal/config"
	"github.com/mamadbah2/materialbot/internal/domain/models"
	"github.com/mamadbah2/materialbot/internal/metrics"
	"github.com/mamadbah2/materialbot/internal/repository/sheets"
)

const (
	defaultCacheTTL     = 300
	defaultRecordsLimit = 5
)

// Options locate the ledger sheet and tune its cache.
type Options struct {
	Sheet        string
	CacheKey     string
	CacheTTL     time.Duration
	RecordsLimit int
	Location     *time.Location
}

// OptionsFromCatalog resolves Options from runtime configuration.
func OptionsFromCatalog(catalog *config.Catalog, loc *time.Location) Options {
	return Options{
		Sheet:        catalog.String(config.KeySheetRecords, "Records"),
		CacheKey:     catalog.String(config.KeyCacheInventory, "inventory_map"),
		CacheTTL:     catalog.Duration(config.KeyCacheInventoryTTL, defaultCacheTTL),
		RecordsLimit: catalog.Int(config.KeyRecordsFetchLimit, defaultRecordsLimit),
		Location:     loc,
	}
}

// Service is the sole writer of transaction records. It folds the ledger
// into a cached inventory view that every write invalidates.
type Service struct {
	repo   sheets.Repository
	cache  cache.Cache
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	// generation moves on every invalidation. A fold built from rows read
	// before a write must not be cached after it.
	generation atomic.Int64
}

// NewService wires a ledger over the tabular store.
func NewService(repository sheets.Repository, c cache.Cache, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if opts.Sheet == "" {
		opts.Sheet = "Records"
	}
	if opts.CacheKey == "" {
		opts.CacheKey = "inventory_map"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL * time.Second
	}
	if opts.RecordsLimit <= 0 {
		opts.RecordsLimit = defaultRecordsLimit
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Service{
		repo:   repository,
		cache:  c,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Append writes rec as a new Valid row stamped with the current time.
// Movements must reference an existing material.
func (s *Service) Append(ctx context.Context, rec models.Record) (models.Record, error) {
	if !rec.Kind.Valid() {
		return models.Record{}, fmt.Errorf("unknown record kind %q: %w", rec.Kind, apperrors.ErrValidation)
	}
	if strings.TrimSpace(rec.Category) == "" || strings.TrimSpace(rec.Serial) == "" {
		return models.Record{}, fmt.Errorf("record without category or serial: %w", apperrors.ErrValidation)
	}

	if rec.Kind.IsMovement() {
		if _, ok, err := s.Material(ctx, rec.Key()); err != nil {
			return models.Record{}, err
		} else if !ok {
			return models.Record{}, fmt.Errorf("material %s: %w", rec.Key(), apperrors.ErrNotFound)
		}
	}

	rec.Quantity = models.SignedQuantity(rec.Kind, rec.Quantity)
	rec.Status = models.StatusValid
	rec.VoidReason = ""
	rec.Timestamp = s.now().In(s.opts.Location)
	rec.RowPosition = 0

	err := s.repo.AppendRow(ctx, s.opts.Sheet, rec.Values())
	metrics.LedgerWrites.WithLabelValues("append", metrics.Result(err)).Inc()
	if err != nil {
		return models.Record{}, fmt.Errorf("append ledger row: %w", err)
	}

	s.invalidate(ctx)
	s.logger.Info("ledger row appended",
		zap.String("key", rec.Key()),
		zap.String("kind", string(rec.Kind)),
		zap.Int("quantity", rec.Quantity),
		zap.String("actor", rec.ActorName),
	)
	return rec, nil
}

// Void marks row as Void in place, recording reason, actor and time.
func (s *Service) Void(ctx context.Context, row int, reason, actor string) error {
	if row < 2 {
		return fmt.Errorf("row %d is not a data row: %w", row, apperrors.ErrValidation)
	}
	if _, err := s.Record(ctx, row); err != nil {
		return err
	}

	values := []interface{}{
		string(models.StatusVoid),
		reason,
		actor,
		s.now().In(s.opts.Location).Format(models.TimestampLayout),
	}
	err := s.repo.WriteCells(ctx, s.opts.Sheet, row, models.ColStatus+1, values)
	metrics.LedgerWrites.WithLabelValues("void", metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("void ledger row %d: %w", row, err)
	}

	s.invalidate(ctx)
	s.logger.Info("ledger row voided", zap.Int("row", row), zap.String("actor", actor), zap.String("reason", reason))
	return nil
}

// OverwriteCell sets auxiliary columns of row. Quantity and status can only
// change through Append and Void, so the inventory view stays valid.
func (s *Service) OverwriteCell(ctx context.Context, row int, cells map[int]interface{}) error {
	if row < 2 {
		return fmt.Errorf("row %d is not a data row: %w", row, apperrors.ErrValidation)
	}

	cols := make([]int, 0, len(cells))
	for col := range cells {
		switch {
		case col == models.ColQuantity, col == models.ColStatus:
			return fmt.Errorf("column %d is stock bearing: %w", col, apperrors.ErrValidation)
		case col < 0 || col >= models.LedgerColumns:
			return fmt.Errorf("column %d out of range: %w", col, apperrors.ErrValidation)
		}
		cols = append(cols, col)
	}
	sort.Ints(cols)

	for _, col := range cols {
		err := s.repo.WriteCells(ctx, s.opts.Sheet, row, col+1, []interface{}{cells[col]})
		metrics.LedgerWrites.WithLabelValues("overwrite", metrics.Result(err)).Inc()
		if err != nil {
			return fmt.Errorf("overwrite ledger row %d column %d: %w", row, col, err)
		}
	}
	return nil
}

// MaterializedInventory returns every material keyed by composite key.
func (s *Service) MaterializedInventory(ctx context.Context) (map[string]models.Material, error) {
	if raw, ok, err := s.cache.Get(ctx, s.opts.CacheKey); err != nil {
		s.logger.Warn("inventory cache read failed, rebuilding", zap.Error(err))
	} else if ok {
		var inventory map[string]models.Material
		if err := json.Unmarshal(raw, &inventory); err == nil {
			metrics.InventoryCache.WithLabelValues("hit").Inc()
			return inventory, nil
		}
		s.logger.Warn("inventory cache entry is corrupt, rebuilding")
	}
	metrics.InventoryCache.WithLabelValues("miss").Inc()

	gen := s.generation.Load()
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	inventory := fold(records)
	s.store(ctx, gen, inventory)
	return inventory, nil
}

// store caches inventory unless a write invalidated the view since gen was
// read. A write landing between the check and the Set is caught by the
// second check.
func (s *Service) store(ctx context.Context, gen int64, inventory map[string]models.Material) {
	if s.generation.Load() != gen {
		s.logger.Debug("ledger changed during rebuild, inventory not cached")
		return
	}
	raw, err := json.Marshal(inventory)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.opts.CacheKey, raw, s.opts.CacheTTL); err != nil {
		s.logger.Warn("inventory cache write failed", zap.Error(err))
		return
	}
	if s.generation.Load() != gen {
		s.invalidate(ctx)
	}
}

// fold sums Valid quantities per key. Descriptive fields come from the most
// recent Valid record; the photo from the most recent one that has a photo.
func fold(records []models.Record) map[string]models.Material {
	type acc struct {
		material models.Material
		latest   models.Record
		photo    *models.Record
	}
	byKey := make(map[string]*acc)

	for _, rec := range records {
		if rec.IsVoid() {
			continue
		}
		key := rec.Key()
		a, ok := byKey[key]
		if !ok {
			a = &acc{latest: rec}
			byKey[key] = a
		} else if newer(rec, a.latest) {
			a.latest = rec
		}
		a.material.Stock += rec.Quantity
		a.material.Records++
		if rec.PhotoRef != "" && (a.photo == nil || newer(rec, *a.photo)) {
			photo := rec
			a.photo = &photo
			a.material.PhotoRef = rec.PhotoRef
		}
	}

	inventory := make(map[string]models.Material, len(byKey))
	for key, a := range byKey {
		m := a.material
		m.Category = a.latest.Category
		m.Serial = a.latest.Serial
		m.Name = a.latest.Name
		m.Model = a.latest.Model
		m.Spec = a.latest.Spec
		m.Unit = a.latest.Unit
		inventory[key] = m
	}
	return inventory
}

func newer(a, b models.Record) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.RowPosition > b.RowPosition
	}
	return a.Timestamp.After(b.Timestamp)
}

// NextSerial returns the next free serial of category, skipping Void rows.
func (s *Service) NextSerial(ctx context.Context, category string) (string, error) {
	records, err := s.records(ctx)
	if err != nil {
		return "", err
	}

	want := models.NormalizeKey(category)
	highest := 0
	for _, rec := range records {
		if rec.IsVoid() || models.NormalizeKey(rec.Category) != want {
			continue
		}
		if n, ok := serialNumber(rec.Serial); ok && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%03d", highest+1), nil
}

// RecordsByActor returns up to limit rows written by actor, newest first.
// Void rows are included so users can see what happened to them.
func (s *Service) RecordsByActor(ctx context.Context, actor string, limit int) ([]models.Record, error) {
	if limit <= 0 {
		limit = s.opts.RecordsLimit
	}
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}

	var mine []models.Record
	for _, rec := range records {
		if rec.ActorName == actor {
			mine = append(mine, rec)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool { return newer(mine[i], mine[j]) })
	if len(mine) > limit {
		mine = mine[:limit]
	}
	return mine, nil
}

// Record loads the ledger row at position row.
func (s *Service) Record(ctx context.Context, row int) (models.Record, error) {
	records, err := s.records(ctx)
	if err != nil {
		return models.Record{}, err
	}
	for _, rec := range records {
		if rec.RowPosition == row {
			return rec, nil
		}
	}
	return models.Record{}, fmt.Errorf("ledger row %d: %w", row, apperrors.ErrNotFound)
}

// Material looks up one material by composite key.
func (s *Service) Material(ctx context.Context, key string) (models.Material, bool, error) {
	inventory, err := s.MaterializedInventory(ctx)
	if err != nil {
		return models.Material{}, false, err
	}
	m, ok := inventory[models.NormalizeKey(key)]
	return m, ok, nil
}

// Search returns materials whose name contains query, ignoring case and whitespace.
func (s *Service) Search(ctx context.Context, query string) ([]models.Material, error) {
	needle := foldKey(query)
	if needle == "" {
		return nil, nil
	}
	inventory, err := s.MaterializedInventory(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.Material
	for _, m := range inventory {
		if strings.Contains(foldKey(m.Name), needle) {
			out = append(out, m)
		}
	}
	SortMaterials(out)
	return out, nil
}

// Materials lists the whole inventory sorted by category then serial.
func (s *Service) Materials(ctx context.Context) ([]models.Material, error) {
	inventory, err := s.MaterializedInventory(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Material, 0, len(inventory))
	for _, m := range inventory {
		out = append(out, m)
	}
	SortMaterials(out)
	return out, nil
}

// FindDuplicate reports an existing material with the same name, model and spec.
func (s *Service) FindDuplicate(ctx context.Context, name, model, spec string) (models.Material, bool, error) {
	materials, err := s.Materials(ctx)
	if err != nil {
		return models.Material{}, false, err
	}
	for _, m := range materials {
		if foldKey(m.Name) == foldKey(name) && foldKey(m.Model) == foldKey(model) && foldKey(m.Spec) == foldKey(spec) {
			return m, true, nil
		}
	}
	return models.Material{}, false, nil
}

// SortMaterials orders materials by category then serial.
func SortMaterials(materials []models.Material) {
	sort.Slice(materials, func(i, j int) bool {
		if materials[i].Category != materials[j].Category {
			return materials[i].Category < materials[j].Category
		}
		return materials[i].Serial < materials[j].Serial
	})
}

func (s *Service) records(ctx context.Context) ([]models.Record, error) {
	rows, err := s.repo.ReadRows(ctx, s.opts.Sheet)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("ledger sheet %s: %w", s.opts.Sheet, err)
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	records := make([]models.Record, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if rec, ok := parseRecord(row, i+1, s.opts.Location); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.generation.Add(1)
	if err := s.cache.Delete(ctx, s.opts.CacheKey); err != nil {
		s.logger.Error("inventory cache invalidation failed", zap.String("key", s.opts.CacheKey), zap.Error(err))
	}
}
