package evaluate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"curtailment-alerts/internal/projection"
)

// Comparator selects the threshold predicate. Observed deployments disagree
// on whether the boundary price alerts, so this is explicit configuration.
type Comparator string

const (
	ComparatorGTE Comparator = "gte"
	ComparatorGT  Comparator = "gt"
)

// Exceeds reports whether price meets the threshold under this comparator.
func (c Comparator) Exceeds(price, threshold decimal.Decimal) bool {
	if c == ComparatorGT {
		return price.GreaterThan(threshold)
	}
	return price.GreaterThanOrEqual(threshold)
}

func (c Comparator) symbol() string {
	if c == ComparatorGT {
		return ">"
	}
	return ">="
}

// WindowMode selects how the evaluated subset of the series is chosen.
type WindowMode string

const (
	// WindowRowCount considers the first N rows regardless of their instants.
	WindowRowCount WindowMode = "rows"
	// WindowLookahead considers rows inside [now, now+Lookahead].
	WindowLookahead WindowMode = "lookahead"
)

// WindowPolicy parameterises the evaluation window.
type WindowPolicy struct {
	Mode      WindowMode
	Rows      int
	Lookahead time.Duration
}

// Result is the evaluated alert set over the considered window.
type Result struct {
	Considered  []projection.Interval
	Flagged     []projection.Interval
	WindowStart time.Time
	WindowEnd   time.Time
	Threshold   decimal.Decimal
	Comparator  Comparator
}

// Evaluate applies the window policy and threshold predicate to the series.
// The series must already be ascending by instant; evaluation never mutates it.
func Evaluate(series []projection.Interval, now time.Time, policy WindowPolicy, threshold decimal.Decimal, cmp Comparator) Result {
	res := Result{Threshold: threshold, Comparator: cmp}

	switch policy.Mode {
	case WindowLookahead:
		res.WindowStart = now.UTC()
		res.WindowEnd = now.UTC().Add(policy.Lookahead)
		for _, iv := range series {
			if iv.InstantUTC.Before(res.WindowStart) || iv.InstantUTC.After(res.WindowEnd) {
				continue
			}
			res.Considered = append(res.Considered, iv)
		}
	default:
		limit := policy.Rows
		if limit <= 0 || limit > len(series) {
			limit = len(series)
		}
		res.Considered = append(res.Considered, series[:limit]...)
		if len(res.Considered) > 0 {
			res.WindowStart = res.Considered[0].InstantUTC
			res.WindowEnd = res.Considered[len(res.Considered)-1].InstantUTC
		}
	}

	for _, iv := range res.Considered {
		if cmp.Exceeds(iv.Price, threshold) {
			res.Flagged = append(res.Flagged, iv)
		}
	}
	return res
}

// alertMarker is appended to flagged report lines.
const alertMarker = " ⚠"

// Report renders the full human-readable report: a summary line, then the
// considered rows grouped by calendar date in first-appearance order.
func (r Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d interval(s) %s %s\n",
		len(r.Flagged), len(r.Considered), r.Comparator.symbol(), r.Threshold.StringFixed(2))

	var dates []string
	grouped := make(map[string][]projection.Interval)
	for _, iv := range r.Considered {
		day := iv.InstantUTC.Format("2006-01-02")
		if _, seen := grouped[day]; !seen {
			dates = append(dates, day)
		}
		grouped[day] = append(grouped[day], iv)
	}

	for _, day := range dates {
		fmt.Fprintf(&b, "%s:\n", day)
		for _, iv := range grouped[day] {
			fmt.Fprintf(&b, "  %s: %s", iv.InstantUTC.Format("15:04"), iv.Price.StringFixed(2))
			if r.Comparator.Exceeds(iv.Price, r.Threshold) {
				b.WriteString(alertMarker)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// InlineFlagged renders the compact above-threshold list, e.g.
// "14:00 → 95.00, 15:00 → 88.25".
func (r Result) InlineFlagged() string {
	parts := make([]string, 0, len(r.Flagged))
	for _, iv := range r.Flagged {
		parts = append(parts, fmt.Sprintf("%s → %s", iv.InstantUTC.Format("15:04"), iv.Price.StringFixed(2)))
	}
	return strings.Join(parts, ", ")
}
