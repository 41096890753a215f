package sheet

import (
	"log"
	"regexp"
	"strconv"
	"strings"
)

// Record is one normalized sheet row ready for merging.
type Record struct {
	Model       string         // 表内短机型名（"17 PM"等）
	Capacity    string         // 容量トークン（"256", "1TB"等）
	RetailPrice *int           // Apple公式価格
	StorePrices map[string]int // DB店舗名 → 買取価格
}

// ExtractReport counts what happened to the payload, for the run summary.
type ExtractReport struct {
	RowsSeen     int            `json:"rows_seen"`
	RowsAccepted int            `json:"rows_accepted"`
	RowsSkipped  int            `json:"rows_skipped"`
	SkipReasons  map[string]int `json:"skip_reasons,omitempty"`
}

func (r *ExtractReport) skip(reason string) {
	r.RowsSkipped++
	if r.SkipReasons == nil {
		r.SkipReasons = make(map[string]int)
	}
	r.SkipReasons[reason]++
}

// 価格セルの非値（問い合わせ等）
var priceSentinels = map[string]bool{
	"問い合わせ":  true,
	"要問い合わせ": true,
	"#N/A":   true,
	"N/A":    true,
	"-":      true,
}

var (
	// ¥226,500 のような通貨記号付きトークンを優先
	yenTokenRe = regexp.MustCompile(`[¥￥]\s*(\d{1,3}(?:,\d{3})+|\d+)`)
	// 通貨記号なしの最初の数値トークン
	numTokenRe = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)
)

// ParsePrice extracts an integer yen amount from a free-text cell.
// Cells are human-entered and may carry currency glyphs, a trailing color
// name or a secondary delta number ("¥226,500 オレンジ -2000"); the first
// currency-prefixed token wins, then the first bare numeric token. A cell
// with no usable number returns ok=false, never zero.
func ParsePrice(value string) (int, bool) {
	s := strings.TrimSpace(value)
	if s == "" || priceSentinels[s] {
		return 0, false
	}

	if m := yenTokenRe.FindStringSubmatch(s); m != nil {
		return mustAtoi(m[1])
	}
	if m := numTokenRe.FindString(s); m != "" {
		return mustAtoi(m)
	}
	return 0, false
}

func mustAtoi(token string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// minColumns is the least cells a data row needs (model, capacity, 公式価格).
const minColumns = 3

// ExtractRows walks the raw grid (row 0 = headers) and yields one Record per
// recognized model row. Rows outside the target model set are not errors;
// the sheet mixes unrelated catalog sections. A row whose capacity cannot be
// determined is logged and dropped so it can never reach the database.
func ExtractRows(grid [][]string, tables *Tables, storeColumnOffset int) ([]Record, ExtractReport) {
	var report ExtractReport
	if len(grid) < 2 {
		return nil, report
	}

	headers := grid[0]
	var records []Record

	for _, row := range grid[1:] {
		report.RowsSeen++
		if len(row) < minColumns {
			report.skip("too_few_columns")
			continue
		}

		model := strings.TrimSpace(row[0])
		if !tables.IsTargetModel(model) {
			report.skip("unrecognized_model")
			continue
		}

		retailPrice, hasRetail := ParsePrice(row[2])
		var retailPtr *int
		if hasRetail {
			retailPtr = &retailPrice
		}

		capacity, ok := tables.InferCapacity(model, retailPtr, row[1])
		if !ok {
			log.Printf("[sheet] ✗ %s 容量不明のためスキップ", model)
			report.skip("capacity_unresolved")
			continue
		}

		// 各店舗の価格を収集（重複ヘッダーは初回のみ採用）
		storePrices := make(map[string]int)
		for i := storeColumnOffset; i < len(headers) && i < len(row); i++ {
			storeName, ok := tables.ResolveStore(headers[i])
			if !ok {
				continue
			}
			if _, dup := storePrices[storeName]; dup {
				continue
			}
			if price, ok := ParsePrice(row[i]); ok {
				storePrices[storeName] = price
			}
		}

		records = append(records, Record{
			Model:       model,
			Capacity:    capacity,
			RetailPrice: retailPtr,
			StorePrices: storePrices,
		})
		report.RowsAccepted++
	}

	return records, report
}
