package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// sheetsEpoch is day zero of spreadsheet date serials.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// parseRecord decodes one ledger row. Rows without a category or serial are
// treated as blank and skipped.
func parseRecord(row []interface{}, position int, loc *time.Location) (models.Record, bool) {
	cell := func(col int) string {
		if col >= len(row) || row[col] == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(row[col]))
	}

	rec := models.Record{
		Category:    cell(models.ColCategory),
		Serial:      normalizeSerial(cell(models.ColSerial)),
		Name:        cell(models.ColName),
		Model:       cell(models.ColModel),
		Spec:        cell(models.ColSpec),
		Unit:        cell(models.ColUnit),
		Kind:        models.Kind(cell(models.ColKind)),
		Status:      models.Status(cell(models.ColStatus)),
		VoidReason:  cell(models.ColVoidReason),
		ActorName:   cell(models.ColActor),
		PhotoRef:    cell(models.ColPhoto),
		RowPosition: position,
	}
	if rec.Category == "" || rec.Serial == "" {
		return models.Record{}, false
	}

	if qty, err := parseInt(cell(models.ColQuantity)); err == nil {
		rec.Quantity = qty
	}
	if ts, err := parseTimestamp(row, loc); err == nil {
		rec.Timestamp = ts
	}
	if rec.Status != models.StatusVoid {
		rec.Status = models.StatusValid
	}
	return rec, true
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

// parseTimestamp accepts the text layout written by this service and the
// numeric date serials the spreadsheet produces for hand-typed dates.
func parseTimestamp(row []interface{}, loc *time.Location) (time.Time, error) {
	if models.ColTimestamp >= len(row) || row[models.ColTimestamp] == nil {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	switch v := row[models.ColTimestamp].(type) {
	case float64:
		return fromSerial(v, loc), nil
	case int:
		return fromSerial(float64(v), loc), nil
	}

	str := strings.TrimSpace(fmt.Sprint(row[models.ColTimestamp]))
	if ts, err := time.ParseInLocation(models.TimestampLayout, str, loc); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, str); err == nil {
		return ts.In(loc), nil
	}
	if f, err := strconv.ParseFloat(str, 64); err == nil {
		return fromSerial(f, loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", str)
}

func fromSerial(days float64, loc *time.Location) time.Time {
	wall := sheetsEpoch.Add(time.Duration(days * 24 * float64(time.Hour))).Round(time.Second)
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
}

// normalizeSerial restores zero padding lost when a serial was typed as a number.
func normalizeSerial(serial string) string {
	if serial == "" {
		return ""
	}
	if n, err := strconv.Atoi(serial); err == nil && n >= 0 {
		return fmt.Sprintf("%03d", n)
	}
	return serial
}

func serialNumber(serial string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(serial))
	if err != nil {
		return 0, false
	}
	return n, true
}

// foldKey lower-cases text and strips all whitespace for fuzzy comparisons.
func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
