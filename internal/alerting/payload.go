package alerting

import (
	"time"

	"curtailment-alerts/internal/projection"
)

// IntervalPayload is one hourly point in the delivered document.
type IntervalPayload struct {
	InstantUTC   time.Time `json:"instant_utc"`
	LocalDisplay string    `json:"local_display,omitempty"`
	Price        float64   `json:"price"`
}

// Payload is the structured document delivered for a successful run.
type Payload struct {
	IdempotencyKey string            `json:"idempotency_key"`
	FileName       string            `json:"file_name"`
	Threshold      float64           `json:"threshold"`
	TimezoneLabel  string            `json:"timezone_label"`
	SheetLabel     string            `json:"sheet_label"`
	GeneratedAtUTC time.Time         `json:"generated_at_utc"`
	WindowStartUTC time.Time         `json:"window_start_utc"`
	WindowEndUTC   time.Time         `json:"window_end_utc"`
	RowsEvaluated  int               `json:"rows_evaluated"`
	FlaggedCount   int               `json:"flagged_count"`
	Flagged        []IntervalPayload `json:"flagged"`
	RawIntervals   []IntervalPayload `json:"raw_intervals"`
	ReportText     string            `json:"report_text"`
}

// ErrorDetail describes a fatal pipeline failure.
type ErrorDetail struct {
	Message string `json:"message"`
	Stage   string `json:"stage"`
}

// ErrorPayload is the reduced document delivered when resolution or
// normalization fails.
type ErrorPayload struct {
	Error           ErrorDetail `json:"error"`
	FileName        string      `json:"file_name"`
	PortalReference string      `json:"portal_reference"`
}

// IntervalsPayload converts projected intervals into their wire form.
func IntervalsPayload(intervals []projection.Interval) []IntervalPayload {
	out := make([]IntervalPayload, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, IntervalPayload{
			InstantUTC:   iv.InstantUTC,
			LocalDisplay: iv.LocalDisplay,
			Price:        iv.Price.InexactFloat64(),
		})
	}
	return out
}
