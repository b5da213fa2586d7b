package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
)

const (
	// GreeceAreaCode is the EIC of the Greek bidding zone.
	GreeceAreaCode = "10YGR-HTSO-----Y"

	entsoeBaseURL   = "https://web-api.tp.entsoe.eu/api"
	entsoePeriodFmt = "200601021504"

	docActualGeneration = "A75"
	docLoad             = "A65"
	docDayAheadPrices   = "A44"
	docGenForecast      = "A71"
	processRealised     = "A16"
	processDayAhead     = "A01"
)

// ENTSOEProvider implements grid.Provider against the ENTSO-E
// transparency platform REST API.
type ENTSOEProvider struct {
	name     string
	token    string
	baseURL  string
	areaCode string
	loc      *time.Location
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

var _ grid.Provider = (*ENTSOEProvider)(nil)

// ENTSOEOptions configures an ENTSOEProvider. Zero values fall back to the
// Greek bidding zone and UTC.
type ENTSOEOptions struct {
	Token    string
	AreaCode string
	Location *time.Location
	Timeout  time.Duration
	Limiter  *rate.Limiter
	Logger   *logrus.Logger
}

func NewENTSOEProvider(client *http.Client, opts ENTSOEOptions) *ENTSOEProvider {
	area := opts.AreaCode
	if area == "" {
		area = GreeceAreaCode
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.NopLogger()
	}

	return &ENTSOEProvider{
		name:     "entsoe",
		token:    opts.Token,
		baseURL:  entsoeBaseURL,
		areaCode: area,
		loc:      loc,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Timeout: opts.Timeout,
			Limiter: opts.Limiter,
			NoData:  isNoDataResponse,
		},
		circuit: newCircuitBreaker("entsoe"),
		logger:  logger,
	}
}

func (p *ENTSOEProvider) Name() string {
	return p.name
}

func (p *ENTSOEProvider) FetchGeneration(ctx context.Context, start, end time.Time) ([]grid.GenerationPoint, error) {
	doc, err := p.query(ctx, "generation", start, end, url.Values{
		"documentType": {docActualGeneration},
		"processType":  {processRealised},
		"in_Domain":    {p.areaCode},
	})
	if err != nil {
		return nil, err
	}

	var out []grid.GenerationPoint
	for _, ts := range doc.TimeSeries {
		// Series with only an outBiddingZone carry consumption by the unit
		// (e.g. pumped storage), not generation.
		if ts.InDomain == "" && ts.OutDomain != "" {
			continue
		}
		source, ok := grid.SourceFromPSR(ts.PSRType)
		if !ok {
			continue
		}
		for _, s := range ts.samples(p.loc) {
			out = append(out, grid.GenerationPoint{
				Timestamp: s.Timestamp,
				Source:    source,
				MW:        nonNegative(s.Quantity),
			})
		}
	}
	return out, nil
}

func (p *ENTSOEProvider) FetchLoad(ctx context.Context, start, end time.Time) ([]grid.LoadPoint, error) {
	doc, err := p.query(ctx, "load", start, end, url.Values{
		"documentType":          {docLoad},
		"processType":           {processRealised},
		"outBiddingZone_Domain": {p.areaCode},
	})
	if err != nil {
		return nil, err
	}

	var out []grid.LoadPoint
	for _, ts := range doc.TimeSeries {
		for _, s := range ts.samples(p.loc) {
			out = append(out, grid.LoadPoint{Timestamp: s.Timestamp, MW: nonNegative(s.Quantity)})
		}
	}
	return out, nil
}

func (p *ENTSOEProvider) FetchDayAheadPrices(ctx context.Context, start, end time.Time) ([]grid.PricePoint, error) {
	doc, err := p.query(ctx, "prices", start, end, url.Values{
		"documentType": {docDayAheadPrices},
		"in_Domain":    {p.areaCode},
		"out_Domain":   {p.areaCode},
	})
	if err != nil {
		return nil, err
	}

	var out []grid.PricePoint
	for _, ts := range doc.TimeSeries {
		for _, s := range ts.samples(p.loc) {
			// Prices may legitimately be negative.
			out = append(out, grid.PricePoint{Timestamp: s.Timestamp, EURPerMWh: s.Price})
		}
	}
	return out, nil
}

func (p *ENTSOEProvider) FetchGenerationForecast(ctx context.Context, start, end time.Time) ([]grid.ForecastValue, error) {
	doc, err := p.query(ctx, "generation forecast", start, end, url.Values{
		"documentType": {docGenForecast},
		"processType":  {processDayAhead},
		"in_Domain":    {p.areaCode},
	})
	if err != nil {
		return nil, err
	}
	return forecastValues(doc, p.loc, true), nil
}

func (p *ENTSOEProvider) FetchLoadForecast(ctx context.Context, start, end time.Time) ([]grid.ForecastValue, error) {
	doc, err := p.query(ctx, "load forecast", start, end, url.Values{
		"documentType":          {docLoad},
		"processType":           {processDayAhead},
		"outBiddingZone_Domain": {p.areaCode},
	})
	if err != nil {
		return nil, err
	}
	return forecastValues(doc, p.loc, false), nil
}

// forecastValues flattens forecast series. With generationOnly set, series
// that only name an outBiddingZone (forecast consumption) are dropped.
func forecastValues(doc marketDocument, loc *time.Location, generationOnly bool) []grid.ForecastValue {
	var out []grid.ForecastValue
	for _, ts := range doc.TimeSeries {
		if generationOnly && ts.InDomain == "" && ts.OutDomain != "" {
			continue
		}
		for _, s := range ts.samples(loc) {
			out = append(out, grid.ForecastValue{Timestamp: s.Timestamp, MW: nonNegative(s.Quantity)})
		}
	}
	return out
}

func (p *ENTSOEProvider) query(ctx context.Context, op string, start, end time.Time, params url.Values) (marketDocument, error) {
	if p.token == "" {
		return marketDocument{}, fmt.Errorf("%s %s: %w: security token is not configured", p.name, op, common.ErrConfiguration)
	}
	if end.Before(start) {
		return marketDocument{}, fmt.Errorf("%s %s: end %s before start %s", p.name, op, end, start)
	}

	params.Set("securityToken", p.token)
	params.Set("periodStart", start.UTC().Format(entsoePeriodFmt))
	params.Set("periodEnd", end.UTC().Format(entsoePeriodFmt))

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s?%s", p.baseURL, params.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	began := time.Now()
	body, err := doRequest(ctx, p.name, op, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		p.logger.WithError(err).WithField("op", op).Warn("entsoe request failed")
		return marketDocument{}, err
	}

	doc, err := parseMarketDocument(body)
	if err != nil {
		return marketDocument{}, common.Unavailable(p.name, op, err)
	}

	p.logger.WithFields(logrus.Fields{
		"op":         op,
		"timeSeries": len(doc.TimeSeries),
		"elapsed":    time.Since(began),
	}).Debug("entsoe request completed")
	return doc, nil
}
