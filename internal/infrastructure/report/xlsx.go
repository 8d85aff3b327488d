// Package report renders stocktaking discrepancy reports as spreadsheets.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"github.com/xuri/excelize/v2"
)

var _ stocktakingapp.ReportWriter = (*XLSXWriter)(nil)

const (
	summarySheet       = "Summary"
	discrepancySheet   = "Discrepancies"
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultColumnWidth = 16
)

var discrepancyHeaders = []string{
	"Area", "Location", "Pallet", "Goods Code", "Goods Name", "Batch",
	"Expected", "Actual", "Difference", "Diff %", "Status", "Note",
}

// XLSXWriter writes a workbook with a summary sheet and one row per
// discrepant pallet.
type XLSXWriter struct {
	Location *time.Location
}

// NewXLSXWriter creates an XLSXWriter printing timestamps in loc (UTC if nil)
func NewXLSXWriter(loc *time.Location) *XLSXWriter {
	if loc == nil {
		loc = time.UTC
	}
	return &XLSXWriter{Location: loc}
}

// ContentType returns the xlsx MIME type
func (w *XLSXWriter) ContentType() string { return xlsxContentType }

// Extension returns ".xlsx"
func (w *XLSXWriter) Extension() string { return ".xlsx" }

// Write renders report into out
func (w *XLSXWriter) Write(out io.Writer, report *stocktakingapp.DiscrepancyReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if err := w.writeSummary(f, report); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := w.writeRows(f, report.Rows); err != nil {
		return fmt.Errorf("discrepancy sheet: %w", err)
	}

	_, err := f.WriteTo(out)
	return err
}

func (w *XLSXWriter) writeSummary(f *excelize.File, report *stocktakingapp.DiscrepancyReport) error {
	rows := [][]any{
		{"Sheet", report.SheetCode},
		{"Status", report.SheetStatus},
		{"Generated At", report.GeneratedAt.In(w.Location).Format("2006-01-02 15:04:05")},
		{"Locations", report.Locations},
		{"Counted", report.Counted},
		{"Discrepancies", len(report.Rows)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 20)
}

func (w *XLSXWriter) writeRows(f *excelize.File, rows []stocktakingapp.DiscrepancyRow) error {
	if _, err := f.NewSheet(discrepancySheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	header := make([]any, len(discrepancyHeaders))
	for i, h := range discrepancyHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(discrepancySheet, "A1", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(discrepancyHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(discrepancySheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, r := range rows {
		values := []any{
			r.AreaCode, r.LocationCode, r.PalletCode, r.GoodsCode, r.GoodsName, r.BatchNumber,
			optionalInt(r.Expected), optionalInt(r.Actual), r.Difference,
			r.DiffRatio.Shift(2).StringFixed(2), r.Status, r.Note,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(discrepancySheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(discrepancySheet, "A", lastCol, defaultColumnWidth); err != nil {
		return err
	}
	return f.SetPanes(discrepancySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// optionalInt leaves the cell blank for an unknown quantity
func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
