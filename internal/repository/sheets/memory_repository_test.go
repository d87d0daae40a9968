package sheets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/materialbot/internal/apperrors"
)

func TestMemoryRepositoryAppendAndRead(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.AppendRow(ctx, "Ledger", []interface{}{"cat", "serial"}))
	require.NoError(t, repo.AppendRow(ctx, "Ledger", []interface{}{"T01", "001", 10, nil}))

	rows, err := repo.ReadRows(ctx, "Ledger")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{"T01", "001", "10", ""}, rows[1])

	rows[1][0] = "mutated"
	again, err := repo.ReadRows(ctx, "Ledger")
	require.NoError(t, err)
	assert.Equal(t, "T01", again[1][0])
}

func TestMemoryRepositoryWriteCells(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Seed("Ledger",
		[]interface{}{"h1", "h2", "h3"},
		[]interface{}{"a", "b", "c"},
		[]interface{}{"d", "e", "f"},
	)
	ctx := context.Background()

	require.NoError(t, repo.WriteCells(ctx, "Ledger", 2, 2, []interface{}{"B", "C", "D"}))

	rows, err := repo.ReadRows(ctx, "Ledger")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "B", "C", "D"}, rows[1])
	assert.Equal(t, []interface{}{"d", "e", "f"}, rows[2])
}

func TestMemoryRepositoryErrors(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.ReadRows(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	repo.Seed("Ledger", []interface{}{"h"})
	assert.ErrorIs(t, repo.WriteCells(ctx, "Ledger", 5, 1, []interface{}{"x"}), apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.WriteCells(ctx, "Ledger", 1, 0, []interface{}{"x"}), apperrors.ErrValidation)
}

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{1: "A", 9: "I", 13: "M", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"}
	for col, want := range cases {
		assert.Equal(t, want, ColumnLetter(col), "col %d", col)
	}
}
