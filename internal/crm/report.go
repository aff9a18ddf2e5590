package crm

import (
	"fmt"
	"io"
	"strings"
	"time"

	"dsa-mcp/internal/orders"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// ReportColumns is the minimum column count of the delivery statistics report.
const ReportColumns = 11

// Report column positions.
const (
	colOrderID = iota
	colURL
	colSupplier
	colWarehouse
	colPickupPoint
	colBrand
	colArticle
	colPlanned
	colArrived
	colOrdered
	colDeviation
)

// Day-first layouts used by the report, most specific first.
var timeLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseReport reads the first sheet of a delivery statistics workbook. The
// first row is a header. Unparseable timestamps become zero times and an
// unparseable deviation is left unset.
func ParseReport(r io.Reader, loc *time.Location) ([]orders.Record, error) {
	if loc == nil {
		loc = time.Local
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open report workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows[0]) < ReportColumns {
		return nil, fmt.Errorf("report has %d columns, want at least %d", len(rows[0]), ReportColumns)
	}

	out := make([]orders.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, ok := recordFromRow(row, loc)
		if !ok {
			log.Debug().Int("row", i+2).Msg("Skipping empty report row")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordFromRow(row []string, loc *time.Location) (orders.Record, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	rec := orders.Record{
		OrderID:     cell(colOrderID),
		Supplier:    cell(colSupplier),
		Warehouse:   cell(colWarehouse),
		PickupPoint: cell(colPickupPoint),
		Brand:       cell(colBrand),
		Article:     cell(colArticle),
		PlannedAt:   parseTime(cell(colPlanned), loc),
		ArrivedAt:   parseTime(cell(colArrived), loc),
		OrderedAt:   parseTime(cell(colOrdered), loc),
	}
	if rec.OrderID == "" && rec.Supplier == "" && rec.Warehouse == "" {
		return orders.Record{}, false
	}

	if raw := strings.ReplaceAll(cell(colDeviation), ",", "."); raw != "" {
		if v, err := cast.ToFloat64E(raw); err == nil {
			rec.ReportedDeviation = &v
		}
	}
	return rec, true
}

// parseTime accepts Excel serial dates and day-first text timestamps.
// It returns the zero time when nothing matches.
func parseTime(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}
	if serial, err := cast.ToFloat64E(s); err == nil {
		if serial <= 0 {
			return time.Time{}
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}
		}
		t = t.Round(time.Second)
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
