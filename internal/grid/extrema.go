package grid

import "time"

// Extremum is a value and the time it occurred.
type Extremum struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Extrema holds the maximum and minimum of a series. Both are nil when the
// series has no values.
type Extrema struct {
	Max *Extremum `json:"max"`
	Min *Extremum `json:"min"`
}

// LoadExtrema returns the peak (Max) and off-peak (Min) of a demand series.
// Ties go to the earliest timestamp; null readings are skipped.
func LoadExtrema(points []LoadPoint) Extrema {
	var e Extrema
	for _, p := range points {
		e.observe(p.Timestamp, p.MW)
	}
	return e
}

// PriceExtrema returns the highest and lowest day-ahead price. Rows without
// a price are skipped, so an all-null range has no extremum.
func PriceExtrema(points []PricePoint) Extrema {
	var e Extrema
	for _, p := range points {
		e.observe(p.Timestamp, p.EURPerMWh)
	}
	return e
}

func (e *Extrema) observe(ts time.Time, v *float64) {
	if v == nil {
		return
	}
	if e.Max == nil || *v > e.Max.Value || (*v == e.Max.Value && ts.Before(e.Max.Timestamp)) {
		e.Max = &Extremum{Timestamp: ts, Value: *v}
	}
	if e.Min == nil || *v < e.Min.Value || (*v == e.Min.Value && ts.Before(e.Min.Timestamp)) {
		e.Min = &Extremum{Timestamp: ts, Value: *v}
	}
}
