package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
)

func sampleSnapshot(t *testing.T) grid.Snapshot {
	t.Helper()
	athens, err := time.LoadLocation("Europe/Athens")
	require.NoError(t, err)

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, athens)
	return grid.Aggregate(
		[]grid.GenerationPoint{
			{Timestamp: t0, Source: grid.SourceLignite, MW: common.Float(1234.5)},
			{Timestamp: t0, Source: grid.SourceSolar, MW: common.Float(0)},
			{Timestamp: t0.Add(15 * time.Minute), Source: grid.SourceWindOnshore, MW: common.Float(88.125)},
		},
		[]grid.LoadPoint{{Timestamp: t0, MW: common.Float(5100)}},
		[]grid.PricePoint{
			{Timestamp: t0, EURPerMWh: common.Float(-0.01)},
			{Timestamp: t0.Add(15 * time.Minute), EURPerMWh: nil},
		},
	)
}

func TestWriteCSV_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleSnapshot(t)))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, utf8BOM), "missing byte order mark")

	lines := strings.Split(strings.TrimRight(string(out[len(utf8BOM):]), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Datetime;Fossil Brown coal/Lignite;Fossil Gas;"))
	assert.True(t, strings.HasSuffix(lines[0], ";Actual Load;Day-Ahead Price (EUR/MWh)"))
	assert.Equal(t, "2025-03-01 00:00:00+02:00;1234,5;;;;;0;;;5100;-0,01", lines[1])
	assert.Equal(t, "2025-03-01 00:15:00+02:00;;;;;88,125;;;;;", lines[2])
}

func TestCSV_RoundTripPreservesNulls(t *testing.T) {
	snap := sampleSnapshot(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, snap))

	parsed, err := ParseCSV(&buf)
	require.NoError(t, err)

	require.Equal(t, snap.Len(), parsed.Len())
	for i, want := range snap.Rows {
		got := parsed.Rows[i]
		assert.True(t, want.Timestamp.Equal(got.Timestamp))
		for _, s := range grid.Sources {
			assert.True(t, common.FloatEqual(want.Generation[s], got.Generation[s]), "row %d %s", i, s)
		}
		assert.True(t, common.FloatEqual(want.LoadMW, got.LoadMW), "row %d load", i)
		assert.True(t, common.FloatEqual(want.PriceEUR, got.PriceEUR), "row %d price", i)
	}
}

func TestCSV_RoundTripEmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, grid.Snapshot{}))

	parsed, err := ParseCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Len())
}

func TestParseCSV_Malformed(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "wrong index", input: "Time;Solar\n"},
		{name: "unknown column", input: "Datetime;Nuclear\n"},
		{name: "bad timestamp", input: "Datetime;Solar\nyesterday;1\n"},
		{name: "bad number", input: "Datetime;Solar\n2025-03-01 00:00:00+02:00;lots\n"},
		{name: "nan", input: "Datetime;Solar\n2025-03-01 00:00:00+02:00;NaN\n"},
		{name: "short row", input: "Datetime;Solar;Actual Load\n2025-03-01 00:00:00+02:00;1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestFilename(t *testing.T) {
	r := grid.DateRange{
		From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "Hellas_Grid_2025-03-01_to_2025-03-02.csv", Filename("", r))
	assert.Equal(t, "Grid_2025-03-01_to_2025-03-02.csv", Filename("Grid", r))
}
