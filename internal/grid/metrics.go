package grid

import (
	"time"
)

// Gauge is the renewable-share tier shown on the network analysis gauge.
type Gauge string

const (
	GaugeGood     Gauge = "good"
	GaugeModerate Gauge = "moderate"
	GaugeCritical Gauge = "critical"
	GaugeUnknown  Gauge = "unknown"
)

// LigniteAlertPercent is the lignite share above which the mix is flagged.
const LigniteAlertPercent = 30.0

// CarbonGaugeCeiling is the intensity (kg/MWh) that maps to a full carbon gauge.
const CarbonGaugeCeiling = 1000.0

// RenewableSources is the RES aggregate. Run-of-river hydro and
// geothermal are not part of it.
var RenewableSources = []SourceType{
	SourceWindOnshore,
	SourceSolar,
	SourceHydroReservoir,
	SourceBiomass,
}

// EmissionFactors holds kg CO2 per MWh. Sources not listed emit nothing.
var EmissionFactors = map[SourceType]float64{
	SourceLignite:    1000,
	SourceNaturalGas: 400,
}

type gaugeRule struct {
	matches func(res float64) bool
	gauge   Gauge
}

// Evaluated top-down; the first match wins.
var gaugeLadder = []gaugeRule{
	{matches: func(res float64) bool { return res > 50 }, gauge: GaugeGood},
	{matches: func(res float64) bool { return res > 20 }, gauge: GaugeModerate},
	{matches: func(float64) bool { return true }, gauge: GaugeCritical},
}

// ClassifyRES maps a renewable share to its gauge tier.
func ClassifyRES(res *float64) Gauge {
	if res == nil {
		return GaugeUnknown
	}
	for _, rule := range gaugeLadder {
		if rule.matches(*res) {
			return rule.gauge
		}
	}
	return GaugeUnknown
}

// Metrics are the values derived from a single snapshot row. Pointer
// fields are nil when undefined.
type Metrics struct {
	Timestamp          time.Time `json:"timestamp"`
	TotalMW            *float64  `json:"totalMW"`
	RESPercent         *float64  `json:"resPercent"`
	LignitePercent     *float64  `json:"lignitePercent"`
	GasPercent         *float64  `json:"gasPercent"`
	CarbonIntensity    *float64  `json:"carbonIntensityKgPerMWh"`
	CarbonGaugePercent *float64  `json:"carbonGaugePercent"`
	Gauge              Gauge     `json:"gauge"`
	LigniteAlert       bool      `json:"ligniteAlert"`
}

// ComputeMetrics derives the generation-mix metrics of one row. A row with
// no reported generation, or a non-positive total, yields nil percentages
// and intensity.
func ComputeMetrics(r Row) Metrics {
	m := Metrics{Timestamp: r.Timestamp, Gauge: GaugeUnknown}

	var total float64
	reported := false
	for _, s := range Sources {
		if v := r.Generation[s]; v != nil {
			total += *v
			reported = true
		}
	}
	if !reported {
		return m
	}
	m.TotalMW = &total
	if total <= 0 {
		return m
	}

	value := func(s SourceType) float64 {
		if v := r.Generation[s]; v != nil {
			return *v
		}
		return 0
	}
	share := func(mw float64) *float64 {
		p := 100 * mw / total
		return &p
	}

	var renewable float64
	for _, s := range RenewableSources {
		renewable += value(s)
	}

	var emissions float64
	for _, s := range Sources {
		emissions += value(s) * EmissionFactors[s]
	}
	intensity := emissions / total
	gaugePct := intensity / CarbonGaugeCeiling * 100

	m.RESPercent = share(renewable)
	m.LignitePercent = share(value(SourceLignite))
	m.GasPercent = share(value(SourceNaturalGas))
	m.CarbonIntensity = &intensity
	m.CarbonGaugePercent = &gaugePct
	m.Gauge = ClassifyRES(m.RESPercent)
	m.LigniteAlert = *m.LignitePercent > LigniteAlertPercent
	return m
}

// LatestCompleteRow returns the last row in which every generation column
// reported somewhere in the snapshot has a value. Columns that are empty
// across the whole snapshot do not disqualify a row.
func LatestCompleteRow(s Snapshot) (Row, bool) {
	reported := make([]SourceType, 0, len(Sources))
	for _, src := range Sources {
		for _, r := range s.Rows {
			if r.Generation[src] != nil {
				reported = append(reported, src)
				break
			}
		}
	}
	if len(reported) == 0 {
		return Row{}, false
	}

	for i := len(s.Rows) - 1; i >= 0; i-- {
		complete := true
		for _, src := range reported {
			if s.Rows[i].Generation[src] == nil {
				complete = false
				break
			}
		}
		if complete {
			return s.Rows[i], true
		}
	}
	return Row{}, false
}

// LatestPrice returns the most recent non-null price.
func LatestPrice(s Snapshot) (PricePoint, bool) {
	for i := len(s.Rows) - 1; i >= 0; i-- {
		if s.Rows[i].PriceEUR != nil {
			return PricePoint{Timestamp: s.Rows[i].Timestamp, EURPerMWh: s.Rows[i].PriceEUR}, true
		}
	}
	return PricePoint{}, false
}
