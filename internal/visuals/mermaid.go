package visuals

import (
	"fmt"
	"math"
	"strings"

	"dsa-mcp/internal/stats"
)

// maxPoints is where Mermaid xychart labels start to overlap.
const maxPoints = 60

// GenerateXmRChart creates a Mermaid xychart-beta of delivery deviations with
// the average and both natural process limits.
func GenerateXmRChart(result stats.XmRResult) string {
	if len(result.Values) == 0 {
		return ""
	}

	step := 1
	if len(result.Values) > maxPoints {
		step = int(math.Ceil(float64(len(result.Values)) / maxPoints))
	}

	var labels, values, averages, unpls, lnpls []string
	lo, hi := result.LNPL, result.UNPL
	for i, v := range result.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		if i%step != 0 && i != len(result.Values)-1 {
			continue
		}
		labels = append(labels, fmt.Sprintf("%d", i+1))
		values = append(values, fmt.Sprintf("%.1f", v))
		averages = append(averages, fmt.Sprintf("%.1f", result.Average))
		unpls = append(unpls, fmt.Sprintf("%.1f", result.UNPL))
		lnpls = append(lnpls, fmt.Sprintf("%.1f", result.LNPL))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Delivery Deviation (XmR)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Deviation (min)\" %d --> %d\n", axisFloor(lo), axisCeil(hi)))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(averages, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(unpls, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(lnpls, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateWeekdayChart creates a Mermaid bar chart of median deviation per weekday.
func GenerateWeekdayChart(analysis stats.SupplierAnalysis) string {
	if len(analysis.ByWeekday) == 0 {
		return ""
	}

	var labels, values []string
	lo, hi := 0.0, 0.0
	for _, day := range stats.WeekdayNames {
		ws, ok := analysis.ByWeekday[day]
		if !ok {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", day[:3]))
		values = append(values, fmt.Sprintf("%.1f", ws.MedianDeviation))
		lo = math.Min(lo, ws.MedianDeviation)
		hi = math.Max(hi, ws.MedianDeviation)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Median Deviation by Weekday (%s)\"\n", analysis.Supplier))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Deviation (min)\" %d --> %d\n", axisFloor(lo), axisCeil(hi)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// axisFloor leaves 10% room below negative minimums; non-negative data starts at 0.
func axisFloor(lo float64) int {
	if lo >= 0 {
		return 0
	}
	return int(math.Floor(lo * 1.1))
}

func axisCeil(hi float64) int {
	if hi <= 0 {
		return 1
	}
	return int(math.Ceil(hi * 1.1))
}
