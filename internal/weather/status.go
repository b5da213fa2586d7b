package weather

import (
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
)

// Status is the expected output of a plant given its current weather.
type Status int

const (
	StatusNotApplicable Status = iota
	StatusUnavailable
	StatusSolarLow
	StatusSolarModerate
	StatusSolarHigh
	StatusWindLow
	StatusWindModerate
	StatusWindHigh
)

var statusLabels = map[Status]string{
	StatusNotApplicable: "N/A",
	StatusUnavailable:   "Data Unavailable",
	StatusSolarLow:      "Low Solar Output (Cloudy)",
	StatusSolarModerate: "Moderate Solar Output (Partly Cloudy)",
	StatusSolarHigh:     "High Solar Output (Clear)",
	StatusWindLow:       "Low Wind Output (Calm)",
	StatusWindModerate:  "Moderate Wind Output",
	StatusWindHigh:      "High Wind Output (Windy)",
}

func (s Status) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[StatusNotApplicable]
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type statusRule struct {
	matches func(v float64) bool
	status  Status
}

// Ladders are evaluated top-down; the first match wins.
var (
	solarLadder = []statusRule{
		{matches: func(cloud float64) bool { return cloud > 80 }, status: StatusSolarLow},
		{matches: func(cloud float64) bool { return cloud > 50 }, status: StatusSolarModerate},
		{matches: func(float64) bool { return true }, status: StatusSolarHigh},
	}
	windLadder = []statusRule{
		{matches: func(speed float64) bool { return speed < 3 }, status: StatusWindLow},
		{matches: func(speed float64) bool { return speed < 8 }, status: StatusWindModerate},
		{matches: func(float64) bool { return true }, status: StatusWindHigh},
	}
)

func evaluate(ladder []statusRule, v *float64) Status {
	if v == nil {
		return StatusUnavailable
	}
	for _, rule := range ladder {
		if rule.matches(*v) {
			return rule.status
		}
	}
	return StatusUnavailable
}

// Evaluate maps a plant's source type and weather snapshot to a status.
// Only solar and onshore wind plants are evaluated; a nil snapshot means
// the weather could not be fetched.
func Evaluate(source grid.SourceType, snap *Snapshot) Status {
	var ladder []statusRule
	var measure func(Snapshot) *float64

	switch source {
	case grid.SourceSolar:
		ladder, measure = solarLadder, func(s Snapshot) *float64 { return s.CloudCoverPct }
	case grid.SourceWindOnshore:
		ladder, measure = windLadder, func(s Snapshot) *float64 { return s.WindSpeedMS }
	default:
		return StatusNotApplicable
	}

	if snap == nil {
		return StatusUnavailable
	}
	return evaluate(ladder, measure(*snap))
}
