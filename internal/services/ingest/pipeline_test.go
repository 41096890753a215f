package ingest

import (
	"testing"

	"kaitori-tracker/internal/models"
	"kaitori-tracker/internal/services/kline"
)

func TestRunFromGridEndToEnd(t *testing.T) {
	db := newTestDB(t)
	tables := testTables()
	merger := NewMerger(db, tables)
	candles := kline.NewService(db)
	pipeline := NewPipeline(nil, tables, merger, candles, 3)

	grid := [][]string{
		{"Model", "Capacity", "Apple", "StoreA", "StoreB"},
		{"X", "", "150000", "¥120,000", "問い合わせ"},
	}
	report, err := pipeline.RunFromGrid(grid)
	if err != nil {
		t.Fatal(err)
	}

	if report.Products != 1 || report.Observations != 1 {
		t.Fatalf("report = %+v, want 1 product / 1 observation", report)
	}
	if report.Extract.RowsSeen != 1 || report.Extract.RowsAccepted != 1 {
		t.Errorf("extract report = %+v", report.Extract)
	}

	// 容量推定で"256"が確定していること
	var product models.Product
	if err := db.Where("name = ?", "iPhone X 256").First(&product).Error; err != nil {
		t.Fatalf("product not created: %v", err)
	}
	if product.Capacity != "256" {
		t.Errorf("capacity = %q, want 256", product.Capacity)
	}

	// StoreBは「問い合わせ」なので観測ゼロ
	var storeB models.Store
	if err := db.Where("name = ?", "StoreB").First(&storeB).Error; err != nil {
		t.Fatal(err)
	}
	var storeBCount int64
	db.Model(&models.Price{}).Where("store_id = ?", storeB.ID).Count(&storeBCount)
	if storeBCount != 0 {
		t.Errorf("StoreB observations = %d, want 0", storeBCount)
	}

	// 当日candleが維持されていること
	var candleCount int64
	db.Model(&models.DailyCandle{}).Where("product_id = ?", product.ID).Count(&candleCount)
	if candleCount != 1 {
		t.Errorf("candle rows = %d, want 1", candleCount)
	}
}

func TestRunFromGridPartialRowTolerance(t *testing.T) {
	db := newTestDB(t)
	tables := testTables()
	merger := NewMerger(db, tables)
	pipeline := NewPipeline(nil, tables, merger, kline.NewService(db), 3)

	grid := [][]string{
		{"Model", "Capacity", "Apple", "StoreA", "StoreB"},
		{"X", "", "999999", "¥120,000", ""}, // 容量推定不能 → 除外
		{"X", "512", "210000", "¥150,000", "¥149,000"},
	}
	report, err := pipeline.RunFromGrid(grid)
	if err != nil {
		t.Fatal(err)
	}

	if report.Products != 1 {
		t.Fatalf("report = %+v, want exactly the sibling row merged", report)
	}
	var count int64
	db.Model(&models.Product{}).Count(&count)
	if count != 1 {
		t.Errorf("product count = %d, want 1", count)
	}
	var product models.Product
	db.First(&product)
	if product.Capacity != "512" {
		t.Errorf("capacity = %q, want explicit 512", product.Capacity)
	}
}
