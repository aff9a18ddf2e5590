package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dsa-mcp/internal/recommend"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	RecommendationsSheet = "Recommendations"
	ExamplesSheet        = "Examples"
)

var recommendationHeader = []any{
	"Supplier", "Warehouse", "Pickup point", "Day", "Window", "Mode",
	"Order from", "Order by", "Deliver by", "Current offset", "Recommended offset",
	"Shift (min)", "Recommended duration", "Confidence", "Trend", "Reason",
	"Effective from", "Samples",
}

var exampleHeader = []any{
	"Supplier", "Warehouse", "Pickup point", "Day", "Window",
	"Order", "Order date", "Order time", "Plan time", "Fact time", "Deviation (min)",
}

// Confidence bands used for row highlighting.
const (
	HighConfidence   = 0.8
	MediumConfidence = 0.6
)

// WriteRecommendations writes recommendations and their example orders as an
// xlsx workbook.
func WriteRecommendations(w io.Writer, recs []recommend.Recommendation) error {
	f, err := build(recs)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveRecommendations writes the workbook to path, creating parent directories.
func SaveRecommendations(path string, recs []recommend.Recommendation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := build(recs)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	log.Info().Str("path", path).Int("recommendations", len(recs)).Msg("Recommendations exported")
	return nil
}

type styles struct {
	header int
	high   int
	medium int
}

func build(recs []recommend.Recommendation) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", RecommendationsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(ExamplesSheet); err != nil {
		f.Close()
		return nil, err
	}

	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeRecommendations(f, st, recs); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeExamples(f, st, recs); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"305496"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return st, err
	}
	st.high, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return st, err
	}
	st.medium, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFEB9C"}, Pattern: 1},
	})
	return st, err
}

func writeRecommendations(f *excelize.File, st styles, recs []recommend.Recommendation) error {
	sheet := RecommendationsSheet
	if err := writeHeader(f, sheet, st.header, recommendationHeader); err != nil {
		return err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(recommendationHeader))
	for i, r := range recs {
		row := []any{
			r.Key.Supplier, r.Key.Warehouse, r.Key.PickupPoint, r.Day, r.Window, string(r.Mode),
			r.OrderFrom, r.OrderBy, r.DeliverBy, r.CurrentOffset, r.RecommendedOffset,
			r.ShiftMinutes, recommendedDuration(r), r.Confidence, r.TrendLabel, r.Reason,
			r.EffectiveFrom, r.Samples,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}

		style := 0
		switch {
		case r.Confidence >= HighConfidence:
			style = st.high
		case r.Confidence >= MediumConfidence:
			style = st.medium
		}
		if style != 0 {
			end := fmt.Sprintf("%s%d", lastCol, i+2)
			if err := f.SetCellStyle(sheet, cell, end, style); err != nil {
				return err
			}
		}
	}

	widths := map[string]float64{"A": 24, "B": 20, "C": 28, "D": 12, "E": 14, "P": 70}
	for col, w := range widths {
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func writeExamples(f *excelize.File, st styles, recs []recommend.Recommendation) error {
	sheet := ExamplesSheet
	if err := writeHeader(f, sheet, st.header, exampleHeader); err != nil {
		return err
	}

	n := 2
	for _, r := range recs {
		for _, ex := range r.Examples {
			row := []any{
				r.Key.Supplier, r.Key.Warehouse, r.Key.PickupPoint, r.Day, r.Window,
				ex.OrderID, ex.OrderDate, ex.OrderTime, ex.PlanTime, ex.FactTime, ex.Deviation,
			}
			cell, _ := excelize.CoordinatesToCellName(1, n)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return err
			}
			n++
		}
	}
	return f.SetColWidth(sheet, "A", "C", 22)
}

func writeHeader(f *excelize.File, sheet string, style int, header []any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.AutoFilter(sheet, "A1:"+lastCol+"1", nil)
}

// recommendedDuration leaves the cell blank for hour buckets, which have no window to resize.
func recommendedDuration(r recommend.Recommendation) any {
	if r.Mode == recommend.ModeHourBucket {
		return ""
	}
	return r.RecommendedDuration
}
