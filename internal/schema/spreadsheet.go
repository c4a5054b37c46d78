package schema

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Column alias tables for spreadsheet artifacts. Matching is case-insensitive;
// a header that merely contains an alias also matches so that decorated labels
// like "LMP ($/MWh)" resolve.
var (
	timestampAliases = []string{"timestamp", "time", "intervalstart", "interval start", "interval_start", "start", "hour", "datetime"}
	priceAliases     = []string{"price", "lmp", "value", "forecast"}
)

// explicitLayouts accepted for the spreadsheet timestamp column.
var explicitLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/06 15:04",
	"01-02-06 15:04",
}

func (n *Normalizer) normalizeSpreadsheet(raw []byte) ([]Row, error) {
	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, &SchemaError{Format: FormatSpreadsheet, Missing: []string{"timestamp", "price"}}
	}

	cells, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, &SchemaError{Format: FormatSpreadsheet, Missing: []string{"timestamp", "price"}}
	}

	header := cells[0]
	tsIdx := matchAlias(header, timestampAliases)
	priceIdx := matchAlias(header, priceAliases)

	var missing []string
	if tsIdx < 0 {
		missing = append(missing, "timestamp")
	}
	if priceIdx < 0 {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		found := make([]string, 0, len(header))
		for _, h := range header {
			found = append(found, strings.TrimSpace(h))
		}
		return nil, &SchemaError{Format: FormatSpreadsheet, Missing: missing, HeadersFound: found}
	}

	var rows []Row
	skipped := 0
	for _, record := range cells[1:] {
		row, ok := parseSpreadsheetRecord(record, tsIdx, priceIdx)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	if skipped > 0 {
		n.logger.Debug().Int("skipped", skipped).Int("kept", len(rows)).Msg("dropped malformed spreadsheet rows")
	}
	return rows, nil
}

// matchAlias finds the first header matching any alias; exact matches take
// precedence over contains matches so "price node" cannot shadow "price".
func matchAlias(header []string, aliases []string) int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	for _, alias := range aliases {
		for i, h := range normalized {
			if h == alias {
				return i
			}
		}
	}
	for _, alias := range aliases {
		for i, h := range normalized {
			if strings.Contains(h, alias) {
				return i
			}
		}
	}
	return -1
}

func parseSpreadsheetRecord(record []string, tsIdx, priceIdx int) (Row, bool) {
	if tsIdx >= len(record) || priceIdx >= len(record) {
		return Row{}, false
	}

	instant, ok := parseExplicitInstant(record[tsIdx])
	if !ok {
		return Row{}, false
	}

	price, ok := parsePrice(record[priceIdx])
	if !ok {
		return Row{}, false
	}

	date := time.Date(instant.Year(), instant.Month(), instant.Day(), 0, 0, 0, 0, time.UTC)
	return Row{CalendarDate: date, ExplicitInstant: &instant, Price: price}, true
}

func parseExplicitInstant(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range explicitLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
