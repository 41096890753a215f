package sheet

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInferCapacityBands(t *testing.T) {
	tables := Defaults()

	cases := []struct {
		model string
		price int
		want  string
		ok    bool
	}{
		{"17 PM", 190000, "256", true},
		{"17 PM", 200000, "256", true}, // 両端inclusive
		{"17 PM", 225000, "512", true},
		{"17 PM", 260000, "1TB", true},
		{"17 PM", 320000, "2TB", true},
		{"16PM", 195000, "256", true}, // Pro Maxは17/16で同じ区間
		{"17 Pro", 220000, "512", true}, // 境界重複は先に宣言した区間が勝つ
		{"16e", 100000, "128", true},
		{"17 PM", 210000, "", false}, // 区間の隙間
		{"17 PM", 500000, "", false}, // 全区間の外
		{"unknown-model", 190000, "", false},
	}
	for _, c := range cases {
		price := c.price
		got, ok := tables.InferCapacity(c.model, &price, "")
		if got != c.want || ok != c.ok {
			t.Errorf("InferCapacity(%q, %d) = (%q, %v), want (%q, %v)",
				c.model, c.price, got, ok, c.want, c.ok)
		}
	}
}

func TestInferCapacityExplicitValueWins(t *testing.T) {
	tables := Defaults()
	price := 500000 // どの区間にも入らない価格でも明示値が優先
	got, ok := tables.InferCapacity("17 PM", &price, " 512 ")
	if !ok || got != "512" {
		t.Errorf("got (%q, %v), want (512, true)", got, ok)
	}
}

func TestInferCapacityRejectsPlaceholders(t *testing.T) {
	tables := Defaults()
	if _, ok := tables.InferCapacity("17 PM", nil, "GB"); ok {
		t.Error("placeholder GB must not count as a capacity")
	}
	if _, ok := tables.InferCapacity("17 PM", nil, ""); ok {
		t.Error("missing price and capacity must fail inference")
	}
}

func TestResolveStoreStripsLinkSuffix(t *testing.T) {
	tables := Defaults()

	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"森森法人買取", "森森買取", true},
		{"森森法人買取 リンク", "森森買取", true},
		{"ベストワンリンク", "買取ベストワン", true},
		{" mobile-mix ", "モバイルミックス", true},
		{"日付", "", false},
	}
	for _, c := range cases {
		got, ok := tables.ResolveStore(c.header)
		if got != c.want || ok != c.ok {
			t.Errorf("ResolveStore(%q) = (%q, %v), want (%q, %v)", c.header, got, ok, c.want, c.ok)
		}
	}
}

func TestLoadTablesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	content := `{
		"store_headers": {"NewStore": "新店舗"},
		"capacity_bands": {"X": [{"min_price": 1, "max_price": 10, "capacity": "64"}]}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tables, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if name, ok := tables.ResolveStore("NewStore"); !ok || name != "新店舗" {
		t.Errorf("custom store header not honored: (%q, %v)", name, ok)
	}
	price := 5
	if label, ok := tables.InferCapacity("X", &price, ""); !ok || label != "64" {
		t.Errorf("custom band not honored: (%q, %v)", label, ok)
	}
	// 省略セクションはデフォルトに戻る
	if !tables.IsTargetModel("17 PM") {
		t.Error("model names should fall back to defaults")
	}
}

func TestLoadTablesDefaultPath(t *testing.T) {
	tables, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !tables.IsTargetModel("16e") {
		t.Error("defaults missing 16e")
	}
}
