package schema

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Format selects the tabular dialect of the raw artifact bytes.
type Format string

const (
	FormatDelimited   Format = "delimited"
	FormatSpreadsheet Format = "spreadsheet"
)

// Row is one normalized forecast interval. Exactly one of HourEnding and
// ExplicitInstant is populated: hour-ending rows carry CalendarDate plus
// HourEnding in [1,24], explicit rows carry the instant directly.
type Row struct {
	CalendarDate    time.Time
	HourEnding      int
	ExplicitInstant *time.Time
	Price           decimal.Decimal
}

// SchemaError reports that required columns could not be located. It carries
// the headers actually found so operators can see what the portal shipped.
type SchemaError struct {
	Format       Format
	Missing      []string
	HeadersFound []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s schema missing column(s) %s; headers found: %s",
		e.Format, strings.Join(e.Missing, ", "), strings.Join(e.HeadersFound, ", "))
}

// Normalizer turns raw artifact bytes into normalized rows. Single malformed
// rows are skipped; absent required columns abort with a SchemaError.
type Normalizer struct {
	logger zerolog.Logger
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With().Str("component", "schema_normalizer").Logger()}
}

// Normalize parses raw bytes according to the format hint.
func (n *Normalizer) Normalize(raw []byte, format Format) ([]Row, error) {
	switch format {
	case FormatSpreadsheet:
		return n.normalizeSpreadsheet(raw)
	default:
		return n.normalizeDelimited(raw)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// dateLayouts accepted for the hour-ending calendar date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

func (n *Normalizer) normalizeDelimited(raw []byte) ([]Row, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &SchemaError{Format: FormatDelimited, Missing: []string{"date", "he", "forecast/value"}}
	}

	lookup := make(map[string]int, len(header))
	found := make([]string, 0, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		found = append(found, name)
		if _, exists := lookup[name]; !exists {
			lookup[name] = i
		}
	}

	dateIdx, dateOK := lookup["date"]
	heIdx, heOK := lookup["he"]
	priceIdx, priceOK := lookup["forecast"]
	if !priceOK {
		priceIdx, priceOK = lookup["value"]
	}

	var missing []string
	if !dateOK {
		missing = append(missing, "date")
	}
	if !heOK {
		missing = append(missing, "he")
	}
	if !priceOK {
		missing = append(missing, "forecast/value")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Format: FormatDelimited, Missing: missing, HeadersFound: found}
	}

	var rows []Row
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		row, ok := parseDelimitedRecord(record, dateIdx, heIdx, priceIdx)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	if skipped > 0 {
		n.logger.Debug().Int("skipped", skipped).Int("kept", len(rows)).Msg("dropped malformed delimited rows")
	}
	return rows, nil
}

func parseDelimitedRecord(record []string, dateIdx, heIdx, priceIdx int) (Row, bool) {
	if dateIdx >= len(record) || heIdx >= len(record) || priceIdx >= len(record) {
		return Row{}, false
	}

	date, ok := parseCalendarDate(record[dateIdx])
	if !ok {
		return Row{}, false
	}

	he, err := strconv.Atoi(strings.TrimSpace(record[heIdx]))
	if err != nil || he < 1 || he > 24 {
		return Row{}, false
	}

	price, ok := parsePrice(record[priceIdx])
	if !ok {
		return Row{}, false
	}

	return Row{CalendarDate: date, HourEnding: he, Price: price}, true
}

func parseCalendarDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d.UTC(), true
		}
	}
	return time.Time{}, false
}

func parsePrice(value string) (decimal.Decimal, bool) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "$")
	value = strings.ReplaceAll(value, ",", "")
	if value == "" {
		return decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}
