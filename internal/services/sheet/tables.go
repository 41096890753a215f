package sheet

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CapacityBand maps an inclusive official-price range to a capacity tier.
// Bands are evaluated in declared order and the first match wins, so an
// overlapping boundary (the Pro tier shares 220000 between 512 and 1TB)
// resolves to the earlier band.
type CapacityBand struct {
	MinPrice int    `json:"min_price"`
	MaxPrice int    `json:"max_price"`
	Capacity string `json:"capacity"`
}

// Tables holds every lookup the extractor needs. All of it is data, not
// logic: new stores, models or price bands are added here (or in the JSON
// file loaded by Load) without touching the pipeline.
type Tables struct {
	// CSV列名 → DB店舗名
	StoreHeaders map[string]string `json:"store_headers"`
	// 表内短机型名 → 正式モデル名
	ModelNames map[string]string `json:"model_names"`
	// 機種別の製品画像
	ImageURLs map[string]string `json:"image_urls"`
	// 公式価格から容量を推定する区間表
	CapacityBands map[string][]CapacityBand `json:"capacity_bands"`
}

// Defaults returns the compiled-in tables matching the current sheet layout.
func Defaults() *Tables {
	proMaxBands := []CapacityBand{
		{190000, 200000, "256"},
		{220000, 235000, "512"},
		{240000, 270000, "1TB"},
		{300000, 340000, "2TB"},
	}
	proBands := []CapacityBand{
		{170000, 185000, "256"},
		{210000, 220000, "512"},
		{220000, 260000, "1TB"},
	}
	baseBands := []CapacityBand{
		{120000, 135000, "256"},
		{150000, 170000, "512"},
	}
	airBands := []CapacityBand{
		{150000, 165000, "256"},
		{180000, 200000, "512"},
		{220000, 240000, "1TB"},
	}
	sixteenEBands := []CapacityBand{
		{90000, 105000, "128"},
		{105000, 120000, "256"},
		{130000, 150000, "512"},
	}
	plusBands := []CapacityBand{
		{130000, 145000, "128"},
		{145000, 165000, "256"},
		{170000, 195000, "512"},
	}

	return &Tables{
		StoreHeaders: map[string]string{
			"森森法人買取":      "森森買取",
			"買取商店":        "買取商店",
			"モバイル一番":      "モバイル一番",
			"携帯空間":        "携帯空間",
			"トゥインクル":      "トゥインクル",
			"買取一丁目":       "買取一丁目",
			"モバステ":        "モバステ",
			"mobile-mix":  "モバイルミックス",
			"買取楽園":        "買取楽園",
			"ﾄﾞﾗｺﾞﾝﾓﾊﾞｲﾙ":  "ドラゴンモバイル",
			"ベストワン":       "買取ベストワン",
			"買取ルデヤ":       "買取ルデヤ",
			"ヤマダ電機":       "ヤマダ電機",
			"買取Wiki":      "買取wiki",
			"買取BASE":      "買取BASE",
			"アキモバ":        "アキモバ",
			"買取ホムラ":       "買取ホムラ",
			"買取当番":        "買取当番",
			"買取レッド":       "買取レッド",
			"PANDA買取":     "PANDA買取",
			"ケータイゴット":     "ケータイゴット",
			"ゲストモバイル":     "ゲストモバイル",
			"ソムリエ":        "買取ソムリエ",
		},
		ModelNames: map[string]string{
			"17 PM":  "iPhone 17 Pro Max",
			"17 Pro": "iPhone 17 Pro",
			"17":     "iPhone 17",
			"Air":    "iPhone 17 Air",
			"16PM":   "iPhone 16 Pro Max",
			"16 Pro": "iPhone 16 Pro",
			"16":     "iPhone 16",
			"16e":    "iPhone 16e",
			"16Plus": "iPhone 16 Plus",
		},
		ImageURLs: map[string]string{
			"17 PM":  "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-17-pro-max-select-2025?wid=470&hei=556&fmt=png-alpha",
			"17 Pro": "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-17-pro-select-2025?wid=470&hei=556&fmt=png-alpha",
			"17":     "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-17-select-2025?wid=470&hei=556&fmt=png-alpha",
			"Air":    "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-17-air-select-2025?wid=470&hei=556&fmt=png-alpha",
			"16PM":   "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-16-pro-max-select-2024?wid=470&hei=556&fmt=png-alpha",
			"16 Pro": "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-16-pro-select-2024?wid=470&hei=556&fmt=png-alpha",
			"16":     "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-16-select-2024?wid=470&hei=556&fmt=png-alpha",
			"16e":    "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-16e-select-2024?wid=470&hei=556&fmt=png-alpha",
			"16Plus": "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-16-plus-select-2024?wid=470&hei=556&fmt=png-alpha",
		},
		CapacityBands: map[string][]CapacityBand{
			"17 PM":  proMaxBands,
			"16PM":   proMaxBands,
			"17 Pro": proBands,
			"16 Pro": proBands,
			"17":     baseBands,
			"16":     baseBands,
			"Air":    airBands,
			"16e":    sixteenEBands,
			"16Plus": plusBands,
		},
	}
}

// Load reads tables from a JSON file. An empty path means built-in defaults;
// sections missing from the file also fall back to the defaults.
func Load(path string) (*Tables, error) {
	defaults := Defaults()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}
	var t Tables
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tables file: %w", err)
	}
	if t.StoreHeaders == nil {
		t.StoreHeaders = defaults.StoreHeaders
	}
	if t.ModelNames == nil {
		t.ModelNames = defaults.ModelNames
	}
	if t.ImageURLs == nil {
		t.ImageURLs = defaults.ImageURLs
	}
	if t.CapacityBands == nil {
		t.CapacityBands = defaults.CapacityBands
	}
	return &t, nil
}

// ResolveStore maps a raw column header to the canonical store name.
// Decorative "リンク" markers are stripped before lookup. Unknown headers
// return ok=false and are simply not price columns.
func (t *Tables) ResolveStore(header string) (string, bool) {
	clean := strings.TrimSpace(header)
	clean = strings.ReplaceAll(clean, " リンク", "")
	clean = strings.ReplaceAll(clean, "リンク", "")
	name, ok := t.StoreHeaders[clean]
	return name, ok
}

// IsTargetModel reports whether the sheet row belongs to this pipeline.
func (t *Tables) IsTargetModel(model string) bool {
	_, ok := t.ModelNames[model]
	return ok
}

// InferCapacity resolves the capacity token for a row. An explicit non-empty
// capacity cell wins as-is; otherwise the official retail price selects a
// band for the model. A miss returns ok=false and the caller must drop the
// row, since guessing a capacity here would corrupt the catalog.
func (t *Tables) InferCapacity(model string, retailPrice *int, rawCapacity string) (string, bool) {
	raw := strings.TrimSpace(rawCapacity)
	if raw != "" && raw != "GB" {
		return raw, true
	}
	if retailPrice == nil {
		return "", false
	}
	for _, band := range t.CapacityBands[model] {
		if *retailPrice >= band.MinPrice && *retailPrice <= band.MaxPrice {
			return band.Capacity, true
		}
	}
	return "", false
}
