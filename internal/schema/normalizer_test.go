package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNormalizeDelimited(t *testing.T) {
	raw := []byte("\xEF\xBB\xBFDate,HE,Node,Forecast\n" +
		"2025-08-10,24,\"HUB, NORTH\",95.00\n" +
		"2025-08-11,1,HUB,60.50\n")

	n := NewNormalizer(noopLogger())
	rows, err := n.Normalize(raw, FormatDelimited)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望 2 行, 实际 %d", len(rows))
	}
	if rows[0].HourEnding != 24 {
		t.Fatalf("HE 解析错误: %d", rows[0].HourEnding)
	}
	if !rows[0].CalendarDate.Equal(time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("日期解析错误: %s", rows[0].CalendarDate)
	}
	if rows[0].Price.String() != "95" {
		t.Fatalf("价格解析错误: %s", rows[0].Price)
	}
	if rows[0].ExplicitInstant != nil {
		t.Fatal("hour-ending 行不应携带显式时间戳")
	}
}

func TestNormalizeDelimitedValueColumn(t *testing.T) {
	raw := []byte("date,he,value\n2025-08-10,5,41.20\n")

	n := NewNormalizer(noopLogger())
	rows, err := n.Normalize(raw, FormatDelimited)
	if err != nil {
		t.Fatalf("value 列应被接受: %v", err)
	}
	if len(rows) != 1 || rows[0].Price.String() != "41.2" {
		t.Fatalf("value 列解析结果错误: %+v", rows)
	}
}

func TestNormalizeDelimitedMissingColumn(t *testing.T) {
	raw := []byte("Date,Hour,Forecast\n2025-08-10,1,10\n")

	n := NewNormalizer(noopLogger())
	rows, err := n.Normalize(raw, FormatDelimited)
	if err == nil {
		t.Fatal("缺少 he 列应返回 SchemaError")
	}
	if rows != nil {
		t.Fatal("失败时不应产生部分输出")
	}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("期望 SchemaError, 实际 %T", err)
	}
	if len(schemaErr.Missing) != 1 || schemaErr.Missing[0] != "he" {
		t.Fatalf("missing 应为 [he], 实际 %v", schemaErr.Missing)
	}
	if !strings.Contains(err.Error(), "hour") {
		t.Fatalf("错误信息应列出实际发现的表头: %s", err)
	}
}

func TestNormalizeDelimitedSkipsMalformedRows(t *testing.T) {
	raw := []byte("date,he,forecast\n" +
		"2025-08-10,1,50.00\n" +
		"2025-08-10,not-a-number,50.00\n" +
		"2025-08-10,2,banana\n" +
		",3,50.00\n" +
		"2025-08-10,25,50.00\n" +
		"2025-08-10,4,75.00\n")

	n := NewNormalizer(noopLogger())
	rows, err := n.Normalize(raw, FormatDelimited)
	if err != nil {
		t.Fatalf("行级损坏不应中止整个运行: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("应跳过 4 个坏行, 保留 2 行, 实际 %d", len(rows))
	}
}

func buildSheet(t *testing.T, header []interface{}, records [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("写入表头失败: %v", err)
	}
	for i, record := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &record); err != nil {
			t.Fatalf("写入数据行失败: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("序列化 xlsx 失败: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeSpreadsheetAliases(t *testing.T) {
	raw := buildSheet(t,
		[]interface{}{"Start", "LMP ($/MWh)"},
		[][]interface{}{
			{"2025-08-10 13:00:00", "88.25"},
			{"2025-08-10 14:00:00", "not numeric"},
			{"2025-08-10 15:00:00", "61.00"},
		})

	n := NewNormalizer(noopLogger())
	rows, err := n.Normalize(raw, FormatSpreadsheet)
	if err != nil {
		t.Fatalf("别名表头应匹配成功: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("应保留 2 行(跳过非数值价格), 实际 %d", len(rows))
	}
	if rows[0].ExplicitInstant == nil {
		t.Fatal("spreadsheet 行应携带显式时间戳")
	}
	want := time.Date(2025, 8, 10, 13, 0, 0, 0, time.UTC)
	if !rows[0].ExplicitInstant.Equal(want) {
		t.Fatalf("时间戳错误: %s", rows[0].ExplicitInstant)
	}
	if rows[0].HourEnding != 0 {
		t.Fatal("explicit 行不应携带 hour-ending")
	}
}

func TestNormalizeSpreadsheetNoAliasMatch(t *testing.T) {
	raw := buildSheet(t,
		[]interface{}{"Node", "Region"},
		[][]interface{}{{"HUB", "NORTH"}})

	n := NewNormalizer(noopLogger())
	_, err := n.Normalize(raw, FormatSpreadsheet)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("无别名匹配应返回 SchemaError, 实际 %v", err)
	}
	if len(schemaErr.HeadersFound) != 2 {
		t.Fatalf("SchemaError 应列出发现的表头: %v", schemaErr.HeadersFound)
	}
}

func TestNormalizeSpreadsheetSkipsEmptyTimestamp(t *testing.T) {
	raw := buildSheet(t,
		[]interface{}{"Timestamp", "Price"},
		[][]interface{}{
			{"", "10.00"},
			{"2025-08-10 01:00:00", "10.00"},
		})

	n := NewNormalizer(noopLogger())
	rows, err := n.Normalize(raw, FormatSpreadsheet)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("空时间戳行应被跳过, 实际保留 %d 行", len(rows))
	}
}
