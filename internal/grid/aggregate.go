package grid

import (
	"sort"
	"time"
)

// Aggregate merges independently fetched series into one snapshot on the
// union of their timestamps. Cells without an exact timestamp match stay
// nil; nothing is interpolated. When a series repeats a timestamp the last
// value wins.
func Aggregate(gen []GenerationPoint, load []LoadPoint, prices []PricePoint) Snapshot {
	rows := make(map[int64]*Row)

	rowFor := func(ts time.Time) *Row {
		key := ts.UnixNano()
		if r, ok := rows[key]; ok {
			return r
		}
		r := &Row{
			Timestamp:  ts,
			Generation: make(map[SourceType]*float64, len(Sources)),
		}
		for _, s := range Sources {
			r.Generation[s] = nil
		}
		rows[key] = r
		return r
	}

	for _, p := range gen {
		if !p.Source.Valid() {
			continue
		}
		rowFor(p.Timestamp).Generation[p.Source] = p.MW
	}
	for _, p := range load {
		rowFor(p.Timestamp).LoadMW = p.MW
	}
	for _, p := range prices {
		rowFor(p.Timestamp).PriceEUR = p.EURPerMWh
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return Snapshot{Rows: out}
}

// MergeForecast joins generation and load forecasts on their timestamps.
func MergeForecast(gen, load []ForecastValue) []ForecastPoint {
	byTS := make(map[int64]*ForecastPoint)

	pointFor := func(ts time.Time) *ForecastPoint {
		key := ts.UnixNano()
		if p, ok := byTS[key]; ok {
			return p
		}
		p := &ForecastPoint{Timestamp: ts}
		byTS[key] = p
		return p
	}

	for _, v := range gen {
		pointFor(v.Timestamp).GenerationMW = v.MW
	}
	for _, v := range load {
		pointFor(v.Timestamp).LoadMW = v.MW
	}

	out := make([]ForecastPoint, 0, len(byTS))
	for _, p := range byTS {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
