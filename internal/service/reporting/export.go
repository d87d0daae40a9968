package reporting

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []interface{}{"Key", "Name", "Model", "Spec", "Unit", "Stock", "Low stock"}

// ExportWorkbook writes the current inventory as an xlsx workbook to w.
func (s *Service) ExportWorkbook(ctx context.Context, w io.Writer) error {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Inventory"
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	low := make(map[string]bool, len(snapshot.LowStock))
	for _, item := range snapshot.LowStock {
		low[item.Key] = true
	}

	for i, item := range snapshot.Items {
		flag := ""
		if low[item.Key] {
			flag = "yes"
		}
		row := []interface{}{item.Key, item.Name, item.Model, item.Spec, item.Unit, item.Stock, flag}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "B", 18); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ExportFileName names an export taken at the service's current time.
func (s *Service) ExportFileName() string {
	return fmt.Sprintf("inventory_%s.xlsx", s.now().In(s.loc).Format("20060102_150405"))
}
