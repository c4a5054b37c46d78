package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"curtailment-alerts/internal/config"
)

func inspectTestApp() *App {
	cfg := &config.Config{
		Portal: config.PortalConfig{Format: "auto"},
		Pipeline: config.PipelineConfig{
			Threshold:  80,
			Comparator: "gte",
			Window:     config.WindowConfig{Mode: "rows", Rows: 48},
		},
	}
	return NewApp(cfg, zerolog.Nop())
}

func flaggedCount(t *testing.T, csvPath string) int {
	t.Helper()
	raw, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("读取 CSV 输出失败: %v", err)
	}
	return strings.Count(string(raw), ",true")
}

func TestInspectThresholdOverride(t *testing.T) {
	dir := t.TempDir()
	artifactPath := filepath.Join(dir, "forecast.csv")
	data := "Date,HE,Forecast\n2025-08-10,1,10.00\n2025-08-10,2,20.00\n"
	if err := os.WriteFile(artifactPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	a := inspectTestApp()

	defaultCSV := filepath.Join(dir, "default.csv")
	if err := a.Inspect(context.Background(), InspectOptions{Path: artifactPath, CSVPath: defaultCSV}); err != nil {
		t.Fatalf("inspect 应成功: %v", err)
	}
	if got := flaggedCount(t, defaultCSV); got != 0 {
		t.Fatalf("默认阈值 80 下不应有越限行, 实际 %d", got)
	}

	// 显式传入 0 必须覆盖配置阈值, 而不是退回默认
	zero := 0.0
	overrideCSV := filepath.Join(dir, "override.csv")
	opts := InspectOptions{Path: artifactPath, CSVPath: overrideCSV, Threshold: &zero}
	if err := a.Inspect(context.Background(), opts); err != nil {
		t.Fatalf("inspect 应成功: %v", err)
	}
	if got := flaggedCount(t, overrideCSV); got != 2 {
		t.Fatalf("阈值 0 下两行都应越限, 实际 %d", got)
	}
}
