package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/domain/models"
)

const dateLayout = "2006-01-02"

// Inventory lists the current materials.
type Inventory interface {
	Materials(ctx context.Context) ([]models.Material, error)
}

// SnapshotStore archives snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot models.InventorySnapshot) error
}

// Texts renders report templates.
type Texts interface {
	Message(key string, vars map[string]any) string
}

// Service builds inventory snapshots and their text summaries.
type Service struct {
	inventory Inventory
	store     SnapshotStore
	texts     Texts
	threshold int
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires a new reporting service instance. store may be nil when
// no archive is configured.
func NewService(inventory Inventory, store SnapshotStore, texts Texts, threshold int, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		inventory: inventory,
		store:     store,
		texts:     texts,
		threshold: threshold,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// Snapshot captures every material and the ones below the low-stock threshold.
func (s *Service) Snapshot(ctx context.Context) (models.InventorySnapshot, error) {
	materials, err := s.inventory.Materials(ctx)
	if err != nil {
		return models.InventorySnapshot{}, fmt.Errorf("load materials: %w", err)
	}

	now := s.now().In(s.loc)
	snapshot := models.InventorySnapshot{
		Date:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc),
		Items:      make([]models.SnapshotItem, 0, len(materials)),
		TotalItems: len(materials),
		CreatedAt:  now,
	}
	for _, m := range materials {
		item := models.SnapshotItem{
			Key:   m.Key(),
			Name:  m.Name,
			Model: m.Model,
			Spec:  m.Spec,
			Unit:  m.Unit,
			Stock: m.Stock,
		}
		snapshot.Items = append(snapshot.Items, item)
		snapshot.TotalUnits += m.Stock
		if m.Stock < s.threshold {
			snapshot.LowStock = append(snapshot.LowStock, item)
		}
	}
	return snapshot, nil
}

// DailySummary takes a snapshot, archives it when a store is configured and
// renders the manager summary. Archive failures are logged, not returned.
func (s *Service) DailySummary(ctx context.Context) (string, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	if s.store != nil {
		if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
			s.logger.Error("failed to archive snapshot", zap.Error(err))
		}
	}

	return s.Summary(snapshot), nil
}

// Summary renders snapshot as a chat message.
func (s *Service) Summary(snapshot models.InventorySnapshot) string {
	lines := []string{s.texts.Message("REPORT_HEADER", map[string]any{
		"date":  snapshot.Date.Format(dateLayout),
		"count": snapshot.TotalItems,
		"units": snapshot.TotalUnits,
	})}

	if len(snapshot.LowStock) == 0 {
		lines = append(lines, s.texts.Message("REPORT_ALL_GOOD", map[string]any{"threshold": s.threshold}))
		return strings.Join(lines, "\n")
	}

	lines = append(lines, s.texts.Message("REPORT_LOW_STOCK_HEADER", map[string]any{"threshold": s.threshold}))
	for _, item := range snapshot.LowStock {
		lines = append(lines, s.texts.Message("REPORT_LOW_STOCK_ITEM", map[string]any{
			"key":   item.Key,
			"name":  item.Name,
			"stock": item.Stock,
			"unit":  item.Unit,
		}))
	}
	return strings.Join(lines, "\n")
}
