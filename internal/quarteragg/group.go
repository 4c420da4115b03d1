package quarteragg

import (
	"context"
	"fmt"
	"sort"

	"quarterfeat/internal/model"
)

// Grouped is an in-memory BarReader holding bars partitioned by company, each
// partition in ascending date order.
type Grouped struct {
	ids  []string
	bars map[string][]model.DailyBar
}

// GroupByCompany stable-sorts bars by (company, date) and partitions them.
// Rows with equal keys keep their input order. The input slice is not modified.
func GroupByCompany(bars []model.DailyBar) *Grouped {
	sorted := make([]model.DailyBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CompanyID != sorted[j].CompanyID {
			return sorted[i].CompanyID < sorted[j].CompanyID
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	g := &Grouped{bars: make(map[string][]model.DailyBar)}
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].CompanyID == sorted[start].CompanyID {
			continue
		}
		id := sorted[start].CompanyID
		g.ids = append(g.ids, id)
		g.bars[id] = sorted[start:i:i]
		start = i
	}
	return g
}

// Companies lists the company IDs in ascending order.
func (g *Grouped) Companies(_ context.Context) ([]string, error) {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out, nil
}

// ReadBars returns one company's bars.
func (g *Grouped) ReadBars(_ context.Context, companyID string) ([]model.DailyBar, error) {
	bars, ok := g.bars[companyID]
	if !ok {
		return nil, fmt.Errorf("unknown company %q", companyID)
	}
	return bars, nil
}

// Len returns the number of companies.
func (g *Grouped) Len() int { return len(g.ids) }

// GapFilled wraps a BarReader so every company's bars are reindexed onto a
// full daily calendar with model.FillGaps before aggregation.
type GapFilled struct {
	model.BarReader
}

// ReadBars returns the gap-filled bars of one company.
func (g GapFilled) ReadBars(ctx context.Context, companyID string) ([]model.DailyBar, error) {
	bars, err := g.BarReader.ReadBars(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return model.FillGaps(bars), nil
}
