package providers

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
)

const (
	acknowledgementRoot = "Acknowledgement_MarketDocument"
	noMatchingData      = "No matching data found"
)

// marketDocument covers the GL, Publication and Acknowledgement market
// documents returned by the transparency platform.
type marketDocument struct {
	XMLName    xml.Name
	TimeSeries []timeSeries `xml:"TimeSeries"`
	Reasons    []reason     `xml:"Reason"`
}

type reason struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}

type timeSeries struct {
	InDomain  string   `xml:"inBiddingZone_Domain.mRID"`
	OutDomain string   `xml:"outBiddingZone_Domain.mRID"`
	PSRType   string   `xml:"MktPSRType>psrType"`
	Periods   []period `xml:"Period"`
}

type period struct {
	Start      string  `xml:"timeInterval>start"`
	End        string  `xml:"timeInterval>end"`
	Resolution string  `xml:"resolution"`
	Points     []point `xml:"Point"`
}

type point struct {
	Position string `xml:"position"`
	Quantity string `xml:"quantity"`
	Price    string `xml:"price.amount"`
}

// sample is a decoded point placed on the time axis.
type sample struct {
	Timestamp time.Time
	Quantity  *float64
	Price     *float64
}

func parseMarketDocument(body []byte) (marketDocument, error) {
	var doc marketDocument
	if len(body) == 0 {
		return doc, nil
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		return doc, fmt.Errorf("decode market document: %w", err)
	}
	if doc.XMLName.Local == acknowledgementRoot {
		if doc.noData() {
			return marketDocument{}, nil
		}
		return doc, fmt.Errorf("request rejected: %s", doc.reasonText())
	}
	return doc, nil
}

func (d marketDocument) noData() bool {
	for _, r := range d.Reasons {
		if common.HasAny(r.Text, noMatchingData) {
			return true
		}
	}
	return false
}

func (d marketDocument) reasonText() string {
	texts := make([]string, 0, len(d.Reasons))
	for _, r := range d.Reasons {
		texts = append(texts, strings.TrimSpace(r.Code+" "+r.Text))
	}
	return strings.Join(texts, "; ")
}

// isNoDataResponse reports whether an error response is the platform's way
// of saying the query matched nothing.
func isNoDataResponse(_ int, body []byte) bool {
	return common.HasAny(string(body), noMatchingData)
}

// samples expands the series' periods into timestamped points. Periods with
// an unreadable interval start or resolution are skipped, as are points
// with an invalid position.
func (ts timeSeries) samples(loc *time.Location) []sample {
	var out []sample
	for _, p := range ts.Periods {
		start, err := parseInstant(p.Start)
		if err != nil {
			continue
		}
		step, err := parseResolution(p.Resolution)
		if err != nil {
			continue
		}
		for _, pt := range p.Points {
			pos, err := strconv.Atoi(strings.TrimSpace(pt.Position))
			if err != nil || pos < 1 {
				continue
			}
			out = append(out, sample{
				Timestamp: start.Add(time.Duration(pos-1) * step).In(loc),
				Quantity:  common.ParseFloat(pt.Quantity),
				Price:     common.ParseFloat(pt.Price),
			})
		}
	}
	return out
}

var instantLayouts = []string{"2006-01-02T15:04Z", time.RFC3339}

func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid instant %q", s)
}

// parseResolution reads the ISO-8601 durations used by the platform
// (PT15M, PT30M, PT60M, PT1H, P1D).
func parseResolution(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "P1D" {
		return 24 * time.Hour, nil
	}
	if !strings.HasPrefix(s, "PT") || len(s) < 4 {
		return 0, fmt.Errorf("invalid resolution %q", s)
	}

	body, unit := s[2:len(s)-1], s[len(s)-1]
	n, err := strconv.Atoi(body)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid resolution %q", s)
	}

	switch unit {
	case 'M':
		return time.Duration(n) * time.Minute, nil
	case 'H':
		return time.Duration(n) * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid resolution %q", s)
	}
}

// nonNegative drops negative quantities; the platform uses them for
// consumption and they are not generation or load.
func nonNegative(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}
