package crm

import "time"

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) String() string {
	return r.From.Format(dateLayout) + ".." + r.To.Format(dateLayout)
}

// Chunks splits the inclusive day range [from, to] into consecutive ranges
// of at most days days. Times of day are ignored.
func Chunks(from, to time.Time, days int) []DateRange {
	if days <= 0 {
		days = 1
	}
	start := truncateDay(from)
	end := truncateDay(to)

	var out []DateRange
	for !start.After(end) {
		stop := start.AddDate(0, 0, days-1)
		if stop.After(end) {
			stop = end
		}
		out = append(out, DateRange{From: start, To: stop})
		start = stop.AddDate(0, 0, 1)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
