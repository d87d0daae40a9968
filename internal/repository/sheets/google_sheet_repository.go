package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/config"
)

// Repository is the tabular store: ordered rows per sheet, where row 1 is the
// header. Row and column positions are 1-based, matching the spreadsheet.
type Repository interface {
	ReadRows(ctx context.Context, sheet string) ([][]interface{}, error)
	AppendRow(ctx context.Context, sheet string, values []interface{}) error
	WriteCells(ctx context.Context, sheet string, row, col int, values []interface{}) error
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// ReadRows fetches every populated row of the sheet, header included.
func (r *GoogleSheetRepository) ReadRows(ctx context.Context, sheet string) ([][]interface{}, error) {
	if sheet == "" {
		return nil, fmt.Errorf("sheet must not be empty: %w", apperrors.ErrValidation)
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, quoteSheet(sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w: %w", sheet, apperrors.ErrCollaborator, err)
	}

	return resp.Values, nil
}

// AppendRow appends the provided values after the last populated row.
func (r *GoogleSheetRepository) AppendRow(ctx context.Context, sheet string, values []interface{}) error {
	if sheet == "" {
		return fmt.Errorf("sheet must not be empty: %w", apperrors.ErrValidation)
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	// RAW keeps zero-padded serials such as "001" as text.
	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, quoteSheet(sheet), payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into sheet %s: %w: %w", sheet, apperrors.ErrCollaborator, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("sheet", sheet))
	return nil
}

// WriteCells overwrites len(values) contiguous cells of one row starting at col.
func (r *GoogleSheetRepository) WriteCells(ctx context.Context, sheet string, row, col int, values []interface{}) error {
	if sheet == "" {
		return fmt.Errorf("sheet must not be empty: %w", apperrors.ErrValidation)
	}
	if row < 1 || col < 1 || len(values) == 0 {
		return fmt.Errorf("invalid cell range row=%d col=%d n=%d: %w", row, col, len(values), apperrors.ErrValidation)
	}

	a1 := fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(sheet), ColumnLetter(col), row, ColumnLetter(col+len(values)-1), row)
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Update(r.spreadsheetID, a1, payload).
		ValueInputOption("RAW").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("write cells %s: %w: %w", a1, apperrors.ErrCollaborator, err)
	}

	r.logger.Debug("cells written", zap.String("range", a1))
	return nil
}

// ColumnLetter converts a 1-based column index into its A1 letters.
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
