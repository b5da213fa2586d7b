package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/hellas-grid-monitor/internal/grid"
)

const (
	IndexLabel  = "Datetime"
	LoadLabel   = "Actual Load"
	PriceLabel  = "Day-Ahead Price (EUR/MWh)"
	TimeLayout  = "2006-01-02 15:04:05-07:00"
	DefaultName = "Hellas_Grid"
	ContentType = "text/csv; charset=utf-8"
)

// Spreadsheet-friendly dialect: semicolon separated, comma decimal mark.
const (
	separator   = ';'
	decimalMark = ","
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var ErrMalformed = errors.New("malformed export")

// Filename returns the download name for a date range, e.g.
// "Hellas_Grid_2025-03-01_to_2025-03-02.csv".
func Filename(prefix string, r grid.DateRange) string {
	if prefix == "" {
		prefix = DefaultName
	}
	return fmt.Sprintf("%s_%s.csv", prefix, r.Key())
}

// Header returns the column labels in file order.
func Header() []string {
	header := make([]string, 0, len(grid.Sources)+3)
	header = append(header, IndexLabel)
	for _, s := range grid.Sources {
		header = append(header, string(s))
	}
	return append(header, LoadLabel, PriceLabel)
}

// WriteCSV writes the snapshot as a BOM-prefixed table. Null cells are
// left empty.
func WriteCSV(w io.Writer, snap grid.Snapshot) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = separator

	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, 0, len(grid.Sources)+3)
	for _, row := range snap.Rows {
		record = record[:0]
		record = append(record, row.Timestamp.Format(TimeLayout))
		for _, s := range grid.Sources {
			record = append(record, formatCell(row.Generation[s]))
		}
		record = append(record, formatCell(row.LoadMW), formatCell(row.PriceEUR))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", row.Timestamp.Format(TimeLayout), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ParseCSV reads a table written by WriteCSV back into a snapshot.
func ParseCSV(r io.Reader) (grid.Snapshot, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comma = separator

	header, err := cr.Read()
	if err != nil {
		return grid.Snapshot{}, fmt.Errorf("%w: read header: %v", ErrMalformed, err)
	}
	if len(header) == 0 || header[0] != IndexLabel {
		return grid.Snapshot{}, fmt.Errorf("%w: first column must be %q", ErrMalformed, IndexLabel)
	}

	type column struct {
		source grid.SourceType
		load   bool
		price  bool
	}
	columns := make([]column, len(header))
	for i, label := range header[1:] {
		switch {
		case label == LoadLabel:
			columns[i+1] = column{load: true}
		case label == PriceLabel:
			columns[i+1] = column{price: true}
		case grid.SourceType(label).Valid():
			columns[i+1] = column{source: grid.SourceType(label)}
		default:
			return grid.Snapshot{}, fmt.Errorf("%w: unknown column %q", ErrMalformed, label)
		}
	}

	snap := grid.Snapshot{Rows: []grid.Row{}}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return grid.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		ts, err := time.Parse(TimeLayout, record[0])
		if err != nil {
			return grid.Snapshot{}, fmt.Errorf("%w: timestamp %q: %v", ErrMalformed, record[0], err)
		}

		row := grid.Row{Timestamp: ts, Generation: make(map[grid.SourceType]*float64, len(grid.Sources))}
		for _, s := range grid.Sources {
			row.Generation[s] = nil
		}
		for i, cell := range record[1:] {
			v, err := parseCell(cell)
			if err != nil {
				return grid.Snapshot{}, fmt.Errorf("%w: %s column %q: %v", ErrMalformed, record[0], header[i+1], err)
			}
			switch col := columns[i+1]; {
			case col.load:
				row.LoadMW = v
			case col.price:
				row.PriceEUR = v
			default:
				row.Generation[col.source] = v
			}
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strings.Replace(strconv.FormatFloat(*v, 'f', -1, 64), ".", decimalMark, 1)
}

func parseCell(cell string) (*float64, error) {
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(cell, decimalMark, ".", 1), 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("non-finite value %q", cell)
	}
	return &v, nil
}
