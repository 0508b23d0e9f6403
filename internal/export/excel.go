// Package export builds Excel reports of the bot's local data for admins.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// TableExporter provides access to local tables for export.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error)
}

// Exporter renders local tables into an xlsx workbook, one sheet per table.
type Exporter struct {
	tables TableExporter
}

// NewExporter creates an exporter over a table source.
func NewExporter(tables TableExporter) *Exporter {
	return &Exporter{tables: tables}
}

// Export writes the full report and returns it as a buffer.
func (e *Exporter) Export(ctx context.Context) (*bytes.Buffer, error) {
	names, err := e.tables.GetTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("table names: %w", err)
	}

	w := newSheetWriter()
	defer w.Close()

	for _, name := range names {
		data, columns, err := e.tables.GetTableData(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}

		if err := w.AddSheet(name); err != nil {
			return nil, err
		}
		if err := w.WriteHeader(columns); err != nil {
			return nil, err
		}
		for _, row := range data {
			values := make([]interface{}, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err := w.WriteRow(values); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return &buf, nil
}

// Filename returns the report name for a given date.
func Filename(year int, month int) string {
	return fmt.Sprintf("barbershop_report_%04d-%02d.xlsx", year, month)
}

type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

// AddSheet adds a sheet, renaming the default one on first use.
func (w *sheetWriter) AddSheet(name string) error {
	// Excel caps sheet names at 31 chars
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		w.file.SetSheetName("Sheet1", name)
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, col); err != nil {
			return err
		}
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}

	w.currentRow++
	return nil
}

func (w *sheetWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}

	w.currentRow++
	return nil
}

func (w *sheetWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *sheetWriter) Close() error {
	return w.file.Close()
}
