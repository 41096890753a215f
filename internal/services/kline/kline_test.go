package kline

import (
	"testing"
	"time"

	"kaitori-tracker/internal/database"
	"kaitori-tracker/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedStore(t *testing.T, db *gorm.DB, name string) models.Store {
	t.Helper()
	store := models.Store{Name: name, IsActive: true}
	if err := db.Create(&store).Error; err != nil {
		t.Fatal(err)
	}
	return store
}

func seedHistory(t *testing.T, db *gorm.DB, productID, storeID uint, at time.Time, price int) {
	t.Helper()
	entry := models.PriceHistory{ProductID: productID, StoreID: storeID, Price: price, RecordedAt: at}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatal(err)
	}
}

func TestDailyBarsDerivedFromHistory(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := seedStore(t, db, "StoreA")

	day := time.Now()
	base := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, day.Location())
	for i, price := range []int{100, 140, 90, 120} {
		seedHistory(t, db, 1, store.ID, base.Add(time.Duration(i)*time.Hour), price)
	}

	bars, err := svc.DailyBars(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	bar := bars[0]
	if bar.Open != 100 || bar.High != 140 || bar.Low != 90 || bar.Close != 120 {
		t.Errorf("bar = %+v, want O100 H140 L90 C120", bar)
	}
	if bar.BestStore != "StoreA" {
		t.Errorf("best store = %q, want StoreA", bar.BestStore)
	}
}

func TestDailyBarsEmptyDayHasNoBar(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := seedStore(t, db, "StoreA")

	// 昨日のみ履歴あり。今日はbarなし（ゼロ値barでもない）。
	yesterday := time.Now().AddDate(0, 0, -1)
	seedHistory(t, db, 1, store.ID, yesterday, 100)

	bars, err := svc.DailyBars(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Date != yesterday.Format("2006-01-02") {
		t.Errorf("bar date = %s, want yesterday", bars[0].Date)
	}
}

func TestDailyBarsPrefersCachedCandle(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := seedStore(t, db, "StoreA")

	today := time.Now()
	date := today.Format("2006-01-02")
	seedHistory(t, db, 1, store.ID, today, 999)

	candle := models.DailyCandle{
		ProductID: 1, Date: date,
		OpenPrice: 10, HighPrice: 40, LowPrice: 5, ClosePrice: 20,
		BestStoreName: "CachedStore",
	}
	if err := db.Create(&candle).Error; err != nil {
		t.Fatal(err)
	}

	bars, err := svc.DailyBars(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	// キャッシュ行があれば履歴からの導出はしない
	if bars[0].High != 40 || bars[0].BestStore != "CachedStore" {
		t.Errorf("bar = %+v, want cached candle values", bars[0])
	}
}

func TestDailyBarsAscendingOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := seedStore(t, db, "StoreA")

	now := time.Now()
	seedHistory(t, db, 1, store.ID, now, 120)
	seedHistory(t, db, 1, store.ID, now.AddDate(0, 0, -2), 100)

	bars, err := svc.DailyBars(1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !(bars[0].Date < bars[1].Date) {
		t.Errorf("bars not ascending: %s then %s", bars[0].Date, bars[1].Date)
	}
}

func TestUpsertTodayCandleIsRepeatable(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := seedStore(t, db, "StoreA")

	now := time.Now()
	seedHistory(t, db, 1, store.ID, now.Add(-2*time.Hour), 100)
	seedHistory(t, db, 1, store.ID, now.Add(-1*time.Hour), 130)

	if err := svc.UpsertTodayCandle(1, now); err != nil {
		t.Fatal(err)
	}
	// 追加観測後の再実行で更新される（重複キー失敗にならない）
	seedHistory(t, db, 1, store.ID, now, 90)
	if err := svc.UpsertTodayCandle(1, now); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	var candles []models.DailyCandle
	db.Where("product_id = ?", 1).Find(&candles)
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle row, got %d", len(candles))
	}
	c := candles[0]
	if c.OpenPrice != 100 || c.HighPrice != 130 || c.LowPrice != 90 || c.ClosePrice != 90 {
		t.Errorf("candle = %+v, want O100 H130 L90 C90", c)
	}
}

func TestUpsertTodayCandleNoHistoryNoRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	if err := svc.UpsertTodayCandle(42, time.Now()); err != nil {
		t.Fatal(err)
	}
	var count int64
	db.Model(&models.DailyCandle{}).Count(&count)
	if count != 0 {
		t.Errorf("candle row created for a day with no data")
	}
}

func TestDailyBarsBatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := seedStore(t, db, "StoreA")

	seedHistory(t, db, 1, store.ID, time.Now(), 100)

	out := svc.DailyBarsBatch([]uint{1, 2}, 1)
	if len(out[1]) != 1 {
		t.Errorf("product 1: expected 1 bar, got %d", len(out[1]))
	}
	// 履歴のない商品はbarゼロ、他商品の集計は妨げない
	if len(out[2]) != 0 {
		t.Errorf("product 2: expected no bars, got %d", len(out[2]))
	}
}
