package grid

import (
	"time"
)

// SourceType is a generation fuel type. The value is the ENTSO-E display
// label, which also names the column in snapshots and exports.
type SourceType string

const (
	SourceLignite         SourceType = "Fossil Brown coal/Lignite"
	SourceNaturalGas      SourceType = "Fossil Gas"
	SourceHydroReservoir  SourceType = "Hydro Water Reservoir"
	SourceHydroRunOfRiver SourceType = "Hydro Run-of-river and poundage"
	SourceWindOnshore     SourceType = "Wind Onshore"
	SourceSolar           SourceType = "Solar"
	SourceBiomass         SourceType = "Biomass"
	SourceGeothermal      SourceType = "Geothermal"
)

// Sources lists every source type in column order.
var Sources = []SourceType{
	SourceLignite,
	SourceNaturalGas,
	SourceHydroReservoir,
	SourceHydroRunOfRiver,
	SourceWindOnshore,
	SourceSolar,
	SourceBiomass,
	SourceGeothermal,
}

var psrCodes = map[string]SourceType{
	"B02": SourceLignite,
	"B04": SourceNaturalGas,
	"B12": SourceHydroReservoir,
	"B11": SourceHydroRunOfRiver,
	"B19": SourceWindOnshore,
	"B16": SourceSolar,
	"B01": SourceBiomass,
	"B09": SourceGeothermal,
}

// SourceFromPSR maps an ENTSO-E production type code (e.g. "B16") to a
// source type. Codes outside the tracked set report false.
func SourceFromPSR(code string) (SourceType, bool) {
	s, ok := psrCodes[code]
	return s, ok
}

// Valid reports whether s is one of the tracked source types.
func (s SourceType) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

// GenerationPoint is one reported generation value for a source type.
// MW is nil when the provider did not report a usable value.
type GenerationPoint struct {
	Timestamp time.Time  `json:"timestamp"`
	Source    SourceType `json:"source"`
	MW        *float64   `json:"mw"`
}

// LoadPoint is the total system demand at a timestamp.
type LoadPoint struct {
	Timestamp time.Time `json:"timestamp"`
	MW        *float64  `json:"mw"`
}

// PricePoint is a day-ahead price. A nil price is an expected state.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	EURPerMWh *float64  `json:"eurPerMWh"`
}

// ForecastValue is a single forecast quantity as returned by the provider.
type ForecastValue struct {
	Timestamp time.Time `json:"timestamp"`
	MW        *float64  `json:"mw"`
}

// ForecastPoint pairs predicted generation and load at a timestamp.
type ForecastPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	GenerationMW *float64  `json:"generationMW"`
	LoadMW       *float64  `json:"loadMW"`
}

// Row is one timestamp of an aggregated snapshot. Generation always holds
// every source type; missing values are nil.
type Row struct {
	Timestamp  time.Time               `json:"timestamp"`
	Generation map[SourceType]*float64 `json:"generation"`
	LoadMW     *float64                `json:"loadMW"`
	PriceEUR   *float64                `json:"priceEURPerMWh"`
}

// Snapshot is the merged time-series table. Rows are strictly ascending by
// timestamp.
type Snapshot struct {
	Rows []Row `json:"rows"`
}

// Len returns the number of rows.
func (s Snapshot) Len() int {
	return len(s.Rows)
}

// RowAt returns the row with exactly the given timestamp.
func (s Snapshot) RowAt(ts time.Time) (Row, bool) {
	for _, r := range s.Rows {
		if r.Timestamp.Equal(ts) {
			return r, true
		}
	}
	return Row{}, false
}

// Loads returns the load column as a series.
func (s Snapshot) Loads() []LoadPoint {
	out := make([]LoadPoint, 0, len(s.Rows))
	for _, r := range s.Rows {
		out = append(out, LoadPoint{Timestamp: r.Timestamp, MW: r.LoadMW})
	}
	return out
}

// Prices returns the price column as a series.
func (s Snapshot) Prices() []PricePoint {
	out := make([]PricePoint, 0, len(s.Rows))
	for _, r := range s.Rows {
		out = append(out, PricePoint{Timestamp: r.Timestamp, EURPerMWh: r.PriceEUR})
	}
	return out
}

// DateRange is an inclusive range of calendar days in the grid timezone.
type DateRange struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required,gtefield=From"`
}

// Bounds returns the first instant of From and the last second of To in loc.
func (r DateRange) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, loc)
	end := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, loc).
		AddDate(0, 0, 1).Add(-time.Second)
	return start, end
}

// Key returns a canonical string for the range, used in cache keys and
// export file names.
func (r DateRange) Key() string {
	return r.From.Format("2006-01-02") + "_to_" + r.To.Format("2006-01-02")
}
