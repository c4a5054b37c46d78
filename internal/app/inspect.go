package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"curtailment-alerts/internal/evaluate"
	"curtailment-alerts/internal/projection"
	"curtailment-alerts/internal/schema"
	"curtailment-alerts/internal/service"
)

// Inspect runs the offline pipeline over a local artifact file and prints the
// rendered report. Optional PNG/CSV outputs visualise the projected series.
func (a *App) Inspect(ctx context.Context, opts InspectOptions) error {
	raw, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	format := service.DetectFormat(a.Config.Portal.Format, opts.Path)
	rows, err := schema.NewNormalizer(a.Logger).Normalize(raw, format)
	if err != nil {
		return err
	}

	var loc *time.Location
	if a.Config.Pipeline.TimezoneLabel != "" {
		if parsed, locErr := time.LoadLocation(a.Config.Pipeline.TimezoneLabel); locErr == nil {
			loc = parsed
		}
	}
	series := projection.New(loc).Project(rows)

	threshold := decimal.NewFromFloat(a.Config.Pipeline.Threshold)
	if opts.Threshold != nil {
		threshold = decimal.NewFromFloat(*opts.Threshold)
	}

	result := evaluate.Evaluate(series, time.Now().UTC(), evaluate.WindowPolicy{
		Mode:      evaluate.WindowMode(a.Config.Pipeline.Window.Mode),
		Rows:      a.Config.Pipeline.Window.Rows,
		Lookahead: a.Config.Pipeline.Window.Lookahead,
	}, threshold, evaluate.Comparator(a.Config.Pipeline.Comparator))

	fmt.Fprint(os.Stdout, result.Report())
	if inline := result.InlineFlagged(); inline != "" {
		fmt.Fprintf(os.Stdout, "above threshold: %s\n", inline)
	}

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, result); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSeriesPNG(opts.PNGPath, result); err != nil {
			return err
		}
	}

	return nil
}

func writeSeriesCSV(path string, result evaluate.Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"instant_utc", "local_display", "price", "flagged"}); err != nil {
		return err
	}

	for _, iv := range result.Considered {
		flagged := "false"
		if result.Comparator.Exceeds(iv.Price, result.Threshold) {
			flagged = "true"
		}
		record := []string{
			iv.InstantUTC.Format(time.RFC3339),
			iv.LocalDisplay,
			iv.Price.StringFixed(2),
			flagged,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSeriesPNG(path string, result evaluate.Result) error {
	if len(result.Considered) < 2 {
		return fmt.Errorf("need at least two intervals to render a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(result.Considered))
	prices := make([]float64, len(result.Considered))
	thresholdLine := make([]float64, len(result.Considered))
	thresholdVal := result.Threshold.InexactFloat64()
	for i, iv := range result.Considered {
		x[i] = iv.InstantUTC
		prices[i] = iv.Price.InexactFloat64()
		thresholdLine[i] = thresholdVal
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price ($/MWh)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Forecast",
				XValues: x,
				YValues: prices,
			},
			chart.TimeSeries{
				Name:    "Threshold",
				XValues: x,
				YValues: thresholdLine,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
