package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"curtailment-alerts/internal/artifact"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestListArtifactsMissingBaseURL(t *testing.T) {
	c := NewHTTPClient(HTTPOptions{}, noopLogger())
	if _, err := c.ListArtifacts(context.Background()); err == nil {
		t.Fatal("未配置 base url 时应返回错误")
	}
}

func TestListArtifactsOrdering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/forecasts" {
			t.Fatalf("listing 路径错误: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"name": "fc 2025-08-09 09:00:00", "ref": "/files/a.csv"},
			{"name": "fc 2025-08-10 09:00:00", "ref": "/files/b.csv"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	descs, err := c.ListArtifacts(context.Background())
	if err != nil {
		t.Fatalf("listing 失败: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("期望 2 个候选, 实际 %d", len(descs))
	}
	for i, d := range descs {
		if d.SequencePosition != i {
			t.Fatalf("SequencePosition 应按列表顺序编号: %+v", d)
		}
	}
	if descs[1].BytesRef != "/files/b.csv" {
		t.Fatalf("BytesRef 错误: %s", descs[1].BytesRef)
	}
}

func TestListArtifactsMergesExtraPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/forecasts":
			_ = json.NewEncoder(w).Encode([]map[string]string{
				{"name": "fc 2025-08-10 09:00:00", "ref": "/files/current.csv"},
			})
		case "/api/archive":
			_ = json.NewEncoder(w).Encode([]map[string]string{
				{"name": "fc 2025-08-09 09:00:00", "ref": "/files/old.csv"},
			})
		default:
			t.Fatalf("未预期的 listing 路径: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{
		BaseURL:           srv.URL,
		ExtraListingPaths: []string{"/api/archive"},
		Timeout:           time.Second,
	}, noopLogger())

	descs, err := c.ListArtifacts(context.Background())
	if err != nil {
		t.Fatalf("listing 失败: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("两个 frame 应合并为 2 个候选, 实际 %d", len(descs))
	}
	for i, d := range descs {
		if d.SequencePosition != i {
			t.Fatalf("合并后 SequencePosition 应重新编号: %+v", d)
		}
		if d.EmbeddedTimestamp == nil {
			t.Fatalf("合并时应预解析嵌入时间戳: %+v", d)
		}
	}
	if descs[0].BytesRef != "/files/current.csv" || descs[1].BytesRef != "/files/old.csv" {
		t.Fatalf("frame 应按路径顺序合并: %+v", descs)
	}
}

func TestFetchUsesContentDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="forecast_20250810090000.csv"`)
		_, _ = w.Write([]byte("date,he,forecast\n"))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	art, err := c.Fetch(context.Background(), artifact.Descriptor{BytesRef: "/files/x"})
	if err != nil {
		t.Fatalf("下载失败: %v", err)
	}
	if art.FileName != "forecast_20250810090000.csv" {
		t.Fatalf("应优先使用 Content-Disposition 文件名, 实际 %s", art.FileName)
	}
	if len(art.Bytes) == 0 {
		t.Fatal("下载内容不应为空")
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "gone"})
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := c.Fetch(context.Background(), artifact.Descriptor{BytesRef: "/files/x"}); err == nil {
		t.Fatal("HTTP 404 应返回错误")
	}
}
