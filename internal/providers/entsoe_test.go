package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
)

const generationXML = `<?xml version="1.0" encoding="UTF-8"?>
<GL_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-6:generationloaddocument:3:0">
  <mRID>abc</mRID>
  <TimeSeries>
    <mRID>1</mRID>
    <inBiddingZone_Domain.mRID codingScheme="A01">10YGR-HTSO-----Y</inBiddingZone_Domain.mRID>
    <MktPSRType><psrType>B16</psrType></MktPSRType>
    <Period>
      <timeInterval><start>2025-03-01T22:00Z</start><end>2025-03-02T01:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><quantity>100</quantity></Point>
      <Point><position>2</position><quantity>n/a</quantity></Point>
      <Point><position>3</position><quantity>-5</quantity></Point>
    </Period>
  </TimeSeries>
  <TimeSeries>
    <mRID>2</mRID>
    <inBiddingZone_Domain.mRID codingScheme="A01">10YGR-HTSO-----Y</inBiddingZone_Domain.mRID>
    <MktPSRType><psrType>B02</psrType></MktPSRType>
    <Period>
      <timeInterval><start>2025-03-01T22:00Z</start><end>2025-03-01T22:30Z</end></timeInterval>
      <resolution>PT15M</resolution>
      <Point><position>1</position><quantity>1500</quantity></Point>
      <Point><position>2</position><quantity>1510</quantity></Point>
    </Period>
  </TimeSeries>
  <TimeSeries>
    <mRID>3</mRID>
    <outBiddingZone_Domain.mRID codingScheme="A01">10YGR-HTSO-----Y</outBiddingZone_Domain.mRID>
    <MktPSRType><psrType>B12</psrType></MktPSRType>
    <Period>
      <timeInterval><start>2025-03-01T22:00Z</start><end>2025-03-01T23:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><quantity>80</quantity></Point>
    </Period>
  </TimeSeries>
  <TimeSeries>
    <mRID>4</mRID>
    <inBiddingZone_Domain.mRID codingScheme="A01">10YGR-HTSO-----Y</inBiddingZone_Domain.mRID>
    <MktPSRType><psrType>B14</psrType></MktPSRType>
    <Period>
      <timeInterval><start>2025-03-01T22:00Z</start><end>2025-03-01T23:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><quantity>999</quantity></Point>
    </Period>
  </TimeSeries>
</GL_MarketDocument>`

const pricesXML = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3">
  <TimeSeries>
    <Period>
      <timeInterval><start>2025-03-01T23:00Z</start><end>2025-03-02T01:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><price.amount>-3.5</price.amount></Point>
      <Point><position>2</position><price.amount>120.25</price.amount></Point>
    </Period>
  </TimeSeries>
</Publication_MarketDocument>`

const noDataXML = `<?xml version="1.0" encoding="UTF-8"?>
<Acknowledgement_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-1:acknowledgementdocument:7:0">
  <Reason>
    <code>999</code>
    <text>No matching data found for Data item ACTUAL_GENERATION_PER_PRODUCTION_TYPE</text>
  </Reason>
</Acknowledgement_MarketDocument>`

func newTestENTSOE(t *testing.T, handler http.HandlerFunc) *ENTSOEProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	athens, err := time.LoadLocation("Europe/Athens")
	require.NoError(t, err)

	p := NewENTSOEProvider(srv.Client(), ENTSOEOptions{
		Token:    "test-token",
		Location: athens,
		Timeout:  time.Second,
	})
	p.baseURL = srv.URL
	return p
}

func testWindow() (time.Time, time.Time) {
	start := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	return start, start.Add(3 * time.Hour)
}

func TestENTSOE_FetchGeneration(t *testing.T) {
	var query url.Values
	p := newTestENTSOE(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(generationXML))
	})

	start, end := testWindow()
	points, err := p.FetchGeneration(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, "A75", query.Get("documentType"))
	assert.Equal(t, "A16", query.Get("processType"))
	assert.Equal(t, GreeceAreaCode, query.Get("in_Domain"))
	assert.Equal(t, "test-token", query.Get("securityToken"))
	assert.Equal(t, "202503012200", query.Get("periodStart"))
	assert.Equal(t, "202503020100", query.Get("periodEnd"))

	// Three solar points and two lignite points; consumption and
	// untracked series are dropped.
	require.Len(t, points, 5)

	solar := points[:3]
	for _, pt := range solar {
		assert.Equal(t, grid.SourceSolar, pt.Source)
	}
	assert.True(t, solar[0].Timestamp.Equal(start))
	assert.Equal(t, "Europe/Athens", solar[0].Timestamp.Location().String())
	assert.Equal(t, 100.0, *solar[0].MW)
	assert.True(t, solar[1].Timestamp.Equal(start.Add(time.Hour)))
	assert.Nil(t, solar[1].MW, "malformed quantity must be null")
	assert.Nil(t, solar[2].MW, "negative quantity must be null")

	lignite := points[3:]
	assert.Equal(t, grid.SourceLignite, lignite[1].Source)
	assert.True(t, lignite[1].Timestamp.Equal(start.Add(15*time.Minute)))
	assert.Equal(t, 1510.0, *lignite[1].MW)
}

func TestENTSOE_NonFiniteQuantitiesAreNull(t *testing.T) {
	body := strings.Replace(generationXML, "<quantity>1500</quantity>", "<quantity>NaN</quantity>", 1)
	body = strings.Replace(body, "<quantity>1510</quantity>", "<quantity>+Inf</quantity>", 1)
	p := newTestENTSOE(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	start, end := testWindow()
	points, err := p.FetchGeneration(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, points, 5)
	assert.Nil(t, points[3].MW)
	assert.Nil(t, points[4].MW)

	snap := grid.Aggregate(points, nil, nil)
	row, ok := snap.RowAt(start)
	require.True(t, ok)

	m := grid.ComputeMetrics(row)
	require.NotNil(t, m.TotalMW)
	assert.Equal(t, 100.0, *m.TotalMW)
	assert.Equal(t, 100.0, *m.RESPercent)
	assert.Equal(t, grid.GaugeGood, m.Gauge)

	_, err = json.Marshal(snap)
	assert.NoError(t, err)
	_, err = json.Marshal(m)
	assert.NoError(t, err)
}

func TestENTSOE_FetchDayAheadPricesKeepsNegativePrices(t *testing.T) {
	var query url.Values
	p := newTestENTSOE(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(pricesXML))
	})

	start, end := testWindow()
	prices, err := p.FetchDayAheadPrices(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, "A44", query.Get("documentType"))
	assert.Equal(t, GreeceAreaCode, query.Get("in_Domain"))
	assert.Equal(t, GreeceAreaCode, query.Get("out_Domain"))

	require.Len(t, prices, 2)
	assert.Equal(t, -3.5, *prices[0].EURPerMWh)
	assert.Equal(t, 120.25, *prices[1].EURPerMWh)
}

func TestENTSOE_FetchLoadAndForecastQueries(t *testing.T) {
	var queries []url.Values
	p := newTestENTSOE(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		_, _ = w.Write([]byte(noDataXML))
	})
	ctx := context.Background()
	start, end := testWindow()

	_, err := p.FetchLoad(ctx, start, end)
	require.NoError(t, err)
	_, err = p.FetchLoadForecast(ctx, start, end)
	require.NoError(t, err)
	_, err = p.FetchGenerationForecast(ctx, start, end)
	require.NoError(t, err)

	require.Len(t, queries, 3)
	assert.Equal(t, "A65", queries[0].Get("documentType"))
	assert.Equal(t, "A16", queries[0].Get("processType"))
	assert.Equal(t, GreeceAreaCode, queries[0].Get("outBiddingZone_Domain"))
	assert.Equal(t, "A65", queries[1].Get("documentType"))
	assert.Equal(t, "A01", queries[1].Get("processType"))
	assert.Equal(t, "A71", queries[2].Get("documentType"))
	assert.Equal(t, "A01", queries[2].Get("processType"))
	assert.Equal(t, GreeceAreaCode, queries[2].Get("in_Domain"))
}

func TestENTSOE_NoMatchingDataIsEmpty(t *testing.T) {
	testCases := []struct {
		name   string
		status int
	}{
		{name: "ok status", status: http.StatusOK},
		{name: "bad request status", status: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestENTSOE(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(noDataXML))
			})

			start, end := testWindow()
			points, err := p.FetchGeneration(context.Background(), start, end)
			require.NoError(t, err)
			assert.Empty(t, points)
		})
	}
}

func TestENTSOE_FailuresAreProviderUnavailable(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{name: "unauthorized", handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{name: "rate limited", handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{name: "garbage body", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html><body>maintenance"))
		}},
		{name: "rejected request", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<Acknowledgement_MarketDocument><Reason><code>999</code><text>Invalid security token</text></Reason></Acknowledgement_MarketDocument>`))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestENTSOE(t, tc.handler)

			start, end := testWindow()
			_, err := p.FetchLoad(context.Background(), start, end)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrProviderUnavailable), "got %v", err)
		})
	}
}

func TestENTSOE_TimeoutIsProviderUnavailable(t *testing.T) {
	release := make(chan struct{})
	p := newTestENTSOE(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })
	p.httpCfg.Timeout = 50 * time.Millisecond

	start, end := testWindow()
	_, err := p.FetchDayAheadPrices(context.Background(), start, end)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrProviderUnavailable))
}

func TestENTSOE_MissingTokenIsConfigurationError(t *testing.T) {
	p := NewENTSOEProvider(http.DefaultClient, ENTSOEOptions{})

	start, end := testWindow()
	_, err := p.FetchGeneration(context.Background(), start, end)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
	assert.False(t, errors.Is(err, common.ErrProviderUnavailable))
}

func TestParseResolution(t *testing.T) {
	testCases := []struct {
		in       string
		expected time.Duration
		wantErr  bool
	}{
		{in: "PT15M", expected: 15 * time.Minute},
		{in: "PT60M", expected: time.Hour},
		{in: "PT1H", expected: time.Hour},
		{in: "P1D", expected: 24 * time.Hour},
		{in: "PT0M", wantErr: true},
		{in: "P1Y", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := parseResolution(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.expected, got, tc.in)
	}
}
