package model

// FillGaps reindexes one company's bars onto a gap-free daily calendar between its
// first and last dated row, forward-filling close, volume and dividend from the
// previous available day. Input must be sorted ascending; null-dated rows are
// dropped and, for a repeated date, the last row wins.
func FillGaps(bars []DailyBar) []DailyBar {
	dated := make([]DailyBar, 0, len(bars))
	for _, b := range bars {
		if !b.HasDate() {
			continue
		}
		b.Date = Day(b.Date)
		if n := len(dated); n > 0 && dated[n-1].Date.Equal(b.Date) {
			dated[n-1] = b
			continue
		}
		dated = append(dated, b)
	}
	if len(dated) < 2 {
		return dated
	}

	days := int(dated[len(dated)-1].Date.Sub(dated[0].Date).Hours()/24) + 1
	if days < len(dated) {
		days = len(dated)
	}
	out := make([]DailyBar, 0, days)
	out = append(out, dated[0])
	for _, b := range dated[1:] {
		prev := out[len(out)-1]
		if b.Date.Before(prev.Date) {
			// Unsorted input is left for the aggregator's precondition check.
			return dated
		}
		for next := prev.Date.AddDate(0, 0, 1); next.Before(b.Date); next = next.AddDate(0, 0, 1) {
			fill := prev
			fill.Date = next
			out = append(out, fill)
		}
		out = append(out, b)
	}
	return out
}
