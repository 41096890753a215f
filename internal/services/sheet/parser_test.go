package sheet

import (
	"testing"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"¥226,500 オレンジ -2000", 226500, true},
		{"￥198,000", 198000, true},
		{"198000", 198000, true},
		{"226,500", 226500, true},
		{"150000 512GB", 150000, true},
		{"問い合わせ", 0, false},
		{"要問い合わせ", 0, false},
		{"#N/A", 0, false},
		{"N/A", 0, false},
		{"-", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"オレンジ", 0, false},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParsePrice(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

// testTables mirrors the end-to-end scenario: one model "X" whose 150000
// retail price maps to capacity "256", two stores from column 3 on.
func testTables() *Tables {
	return &Tables{
		StoreHeaders: map[string]string{
			"StoreA": "StoreA",
			"StoreB": "StoreB",
		},
		ModelNames: map[string]string{"X": "iPhone X"},
		ImageURLs:  map[string]string{},
		CapacityBands: map[string][]CapacityBand{
			"X": {{140000, 160000, "256"}},
		},
	}
}

func TestExtractRowsEndToEnd(t *testing.T) {
	grid := [][]string{
		{"Model", "Capacity", "Apple", "StoreA", "StoreB"},
		{"X", "", "150000", "¥120,000", "問い合わせ"},
	}
	records, report := ExtractRows(grid, testTables(), 3)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Capacity != "256" {
		t.Errorf("capacity = %q, want 256", rec.Capacity)
	}
	if rec.RetailPrice == nil || *rec.RetailPrice != 150000 {
		t.Errorf("retail price = %v, want 150000", rec.RetailPrice)
	}
	if len(rec.StorePrices) != 1 {
		t.Fatalf("expected 1 store price, got %d", len(rec.StorePrices))
	}
	if rec.StorePrices["StoreA"] != 120000 {
		t.Errorf("StoreA price = %d, want 120000", rec.StorePrices["StoreA"])
	}
	if report.RowsSeen != 1 || report.RowsAccepted != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestExtractRowsRejectsUnresolvableCapacity(t *testing.T) {
	grid := [][]string{
		{"Model", "Capacity", "Apple", "StoreA", "StoreB"},
		{"X", "", "999999", "¥120,000", ""},   // 区間外 → 容量不明
		{"X", "", "150000", "¥121,000", ""},   // 正常行は生き残る
	}
	records, report := ExtractRows(grid, testTables(), 3)

	if len(records) != 1 {
		t.Fatalf("expected sibling row to survive, got %d records", len(records))
	}
	if report.RowsSkipped != 1 || report.SkipReasons["capacity_unresolved"] != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestExtractRowsSkipsShortAndUnknownRows(t *testing.T) {
	grid := [][]string{
		{"Model", "Capacity", "Apple", "StoreA"},
		{"X", "256"},                      // 列不足
		{"Galaxy", "256", "100000", "¥1"}, // 対象外モデル
	}
	records, report := ExtractRows(grid, testTables(), 3)

	if len(records) != 0 {
		t.Fatalf("expected 0 records, got %d", len(records))
	}
	if report.SkipReasons["too_few_columns"] != 1 || report.SkipReasons["unrecognized_model"] != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestExtractRowsDeduplicatesStoreColumns(t *testing.T) {
	tables := testTables()
	grid := [][]string{
		{"Model", "Capacity", "Apple", "StoreA", "StoreA リンク"},
		{"X", "256", "150000", "¥120,000", "¥110,000"},
	}
	records, _ := ExtractRows(grid, tables, 3)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	// 重複ヘッダーは初出の値のみ
	if got := records[0].StorePrices["StoreA"]; got != 120000 {
		t.Errorf("StoreA price = %d, want first-seen 120000", got)
	}
}

func TestExtractRowsEmptyGrid(t *testing.T) {
	records, report := ExtractRows([][]string{{"Model"}}, testTables(), 3)
	if records != nil || report.RowsSeen != 0 {
		t.Errorf("expected nothing from header-only grid, got %v / %+v", records, report)
	}
}
