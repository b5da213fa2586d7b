package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
)

func TestEvaluate_Solar(t *testing.T) {
	testCases := []struct {
		cloud    *float64
		expected string
	}{
		{cloud: common.Float(100), expected: "Low Solar Output (Cloudy)"},
		{cloud: common.Float(80.0001), expected: "Low Solar Output (Cloudy)"},
		{cloud: common.Float(80), expected: "Moderate Solar Output (Partly Cloudy)"},
		{cloud: common.Float(50.0001), expected: "Moderate Solar Output (Partly Cloudy)"},
		{cloud: common.Float(50), expected: "High Solar Output (Clear)"},
		{cloud: common.Float(0), expected: "High Solar Output (Clear)"},
		{cloud: nil, expected: "Data Unavailable"},
	}

	for _, tc := range testCases {
		snap := Snapshot{CloudCoverPct: tc.cloud, WindSpeedMS: common.Float(20)}
		assert.Equal(t, tc.expected, Evaluate(grid.SourceSolar, &snap).String())
	}
}

func TestEvaluate_Wind(t *testing.T) {
	testCases := []struct {
		speed    *float64
		expected Status
	}{
		{speed: common.Float(0), expected: StatusWindLow},
		{speed: common.Float(2.9999), expected: StatusWindLow},
		{speed: common.Float(3), expected: StatusWindModerate},
		{speed: common.Float(7.9999), expected: StatusWindModerate},
		{speed: common.Float(8), expected: StatusWindHigh},
		{speed: nil, expected: StatusUnavailable},
	}

	for _, tc := range testCases {
		snap := Snapshot{WindSpeedMS: tc.speed, CloudCoverPct: common.Float(100)}
		assert.Equal(t, tc.expected, Evaluate(grid.SourceWindOnshore, &snap))
	}
	assert.Equal(t, "High Wind Output (Windy)", StatusWindHigh.String())
	assert.Equal(t, "Low Wind Output (Calm)", StatusWindLow.String())
	assert.Equal(t, "Moderate Wind Output", StatusWindModerate.String())
}

func TestEvaluate_OtherSourcesAreNotApplicable(t *testing.T) {
	snap := Snapshot{WindSpeedMS: common.Float(10), CloudCoverPct: common.Float(10)}
	for _, s := range []grid.SourceType{grid.SourceLignite, grid.SourceNaturalGas, grid.SourceHydroReservoir, grid.SourceHydroRunOfRiver} {
		assert.Equal(t, StatusNotApplicable, Evaluate(s, &snap))
		assert.Equal(t, StatusNotApplicable, Evaluate(s, nil), "no weather needed for %s", s)
	}
	assert.Equal(t, "N/A", StatusNotApplicable.String())
}

func TestEvaluate_MissingSnapshot(t *testing.T) {
	assert.Equal(t, StatusUnavailable, Evaluate(grid.SourceSolar, nil))
	assert.Equal(t, StatusUnavailable, Evaluate(grid.SourceWindOnshore, nil))
}

func TestStatus_MarshalText(t *testing.T) {
	b, err := StatusSolarModerate.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "Moderate Solar Output (Partly Cloudy)", string(b))
}

func TestSnapshot_Summary(t *testing.T) {
	snap := Snapshot{TemperatureC: common.Float(18.46), WindSpeedMS: common.Float(7.2), CloudCoverPct: common.Float(40)}
	assert.Equal(t, "18.5°C, wind 7.2 m/s, clouds 40%", snap.Summary())

	assert.Equal(t, "n/a, wind n/a, clouds n/a", Snapshot{}.Summary())
}
