package projection

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"curtailment-alerts/internal/schema"
)

// Interval is one hourly forecast point on the canonical UTC axis.
type Interval struct {
	InstantUTC   time.Time
	LocalDisplay string
	Price        decimal.Decimal
}

// Projector converts normalized rows into a single ascending UTC series.
// The display location only affects LocalDisplay; projection math is UTC.
type Projector struct {
	loc *time.Location
}

// New constructs a Projector. loc may be nil to disable local display.
func New(loc *time.Location) *Projector {
	return &Projector{loc: loc}
}

// Project maps rows onto UTC instants and sorts them ascending. The sort is
// stable: rows sharing an instant keep their input order, duplicates included.
//
// Hour-ending rule: HE 在 [1,23] 时取当日该小时; HE=24 表示次日零点结束的区间,
// 因此日期加一天。Explicit instants are truncated to the top of their hour.
func (p *Projector) Project(rows []schema.Row) []Interval {
	intervals := make([]Interval, 0, len(rows))
	for _, row := range rows {
		var instant time.Time
		switch {
		case row.ExplicitInstant != nil:
			instant = row.ExplicitInstant.UTC().Truncate(time.Hour)
		case row.HourEnding >= 1 && row.HourEnding <= 24:
			d := row.CalendarDate
			instant = time.Date(d.Year(), d.Month(), d.Day(), row.HourEnding%24, 0, 0, 0, time.UTC)
			if row.HourEnding == 24 {
				instant = instant.AddDate(0, 0, 1)
			}
		default:
			continue
		}

		iv := Interval{InstantUTC: instant, Price: row.Price}
		if p.loc != nil {
			iv.LocalDisplay = instant.In(p.loc).Format("2006-01-02 15:04 MST")
		}
		intervals = append(intervals, iv)
	}

	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].InstantUTC.Before(intervals[j].InstantUTC)
	})
	return intervals
}
