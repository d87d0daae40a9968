package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/mamadbah2/materialbot/internal/apperrors"
)

// MemoryRepository is an in-process Repository. Cells are stored the way the
// spreadsheet renders them, as strings.
type MemoryRepository struct {
	mu     sync.RWMutex
	sheets map[string][][]interface{}
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sheets: make(map[string][][]interface{})}
}

// Seed replaces the content of a sheet, header included.
func (r *MemoryRepository) Seed(sheet string, rows ...[]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		copied = append(copied, normalizeRow(row))
	}
	r.sheets[sheet] = copied
}

// ReadRows returns a copy of every row of the sheet.
func (r *MemoryRepository) ReadRows(_ context.Context, sheet string) ([][]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, ok := r.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %s: %w", sheet, apperrors.ErrNotFound)
	}

	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = append([]interface{}(nil), row...)
	}
	return out, nil
}

// AppendRow appends a row, creating the sheet on first use.
func (r *MemoryRepository) AppendRow(_ context.Context, sheet string, values []interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sheets[sheet] = append(r.sheets[sheet], normalizeRow(values))
	return nil
}

// WriteCells overwrites cells in place, growing the row when needed.
func (r *MemoryRepository) WriteCells(_ context.Context, sheet string, row, col int, values []interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, ok := r.sheets[sheet]
	if !ok {
		return fmt.Errorf("sheet %s: %w", sheet, apperrors.ErrNotFound)
	}
	if row < 1 || row > len(rows) {
		return fmt.Errorf("row %d of sheet %s: %w", row, sheet, apperrors.ErrNotFound)
	}
	if col < 1 {
		return fmt.Errorf("column %d: %w", col, apperrors.ErrValidation)
	}

	target := rows[row-1]
	for len(target) < col-1+len(values) {
		target = append(target, "")
	}
	for i, v := range values {
		target[col-1+i] = cellString(v)
	}
	rows[row-1] = target
	return nil
}

func normalizeRow(values []interface{}) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = cellString(v)
	}
	return row
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
