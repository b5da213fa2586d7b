package weather

import (
	"fmt"
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
}

// Key returns a canonical string key for indexing this coordinate in caches.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Snapshot is the normalized current weather at a coordinate. Measurements
// are nil when the provider did not report a usable value.
type Snapshot struct {
	Coordinate    Coordinate `json:"coordinate"`
	Provider      string     `json:"provider"`
	ObservedAt    time.Time  `json:"observedAt"` // always UTC
	TemperatureC  *float64   `json:"temperatureC"`
	WindSpeedMS   *float64   `json:"windSpeedMS"`
	CloudCoverPct *float64   `json:"cloudCoverPercent"`
	Condition     Condition  `json:"condition"`
}

// Summary renders the measurements for map popups, e.g.
// "18.5°C, wind 7.2 m/s, clouds 40%".
func (s Snapshot) Summary() string {
	format := func(v *float64, layout string) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf(layout, *v)
	}
	parts := []string{
		format(s.TemperatureC, "%.1f°C"),
		"wind " + format(s.WindSpeedMS, "%.1f m/s"),
		"clouds " + format(s.CloudCoverPct, "%.0f%%"),
	}
	return strings.Join(parts, ", ")
}
