package kline

import (
	"fmt"
	"log"
	"time"

	"kaitori-tracker/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

// Bar is one daily candle in API shape.
type Bar struct {
	Date      string `json:"date"`
	Open      int    `json:"open"`
	High      int    `json:"high"`
	Low       int    `json:"low"`
	Close     int    `json:"close"`
	BestStore string `json:"best_store,omitempty"` // 当日最高値を付けた店舗
}

// Service owns all reads and writes of DailyCandle. The table is a cache:
// any day missing from it is derived on the fly from PriceHistory, and a
// cached day is trusted as-is.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// DailyBars returns ascending daily bars for the lookback window. A calendar
// day with neither a cached candle nor history entries yields no bar at all:
// absence means no data, not a zero price.
func (s *Service) DailyBars(productID uint, days int) ([]Bar, error) {
	if days <= 0 {
		days = 7
	}
	today := startOfDay(time.Now())
	since := today.AddDate(0, 0, -(days - 1))

	cached, err := s.loadCandles(productID, since)
	if err != nil {
		return nil, err
	}
	byDay, err := s.loadHistoryByDay(productID, since)
	if err != nil {
		return nil, err
	}
	storeNames, err := s.storeNames()
	if err != nil {
		return nil, err
	}

	var bars []Bar
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		if c, ok := cached[date]; ok {
			bars = append(bars, Bar{
				Date:      date,
				Open:      c.OpenPrice,
				High:      c.HighPrice,
				Low:       c.LowPrice,
				Close:     c.ClosePrice,
				BestStore: c.BestStoreName,
			})
			continue
		}
		if entries := byDay[date]; len(entries) > 0 {
			bars = append(bars, deriveBar(date, entries, storeNames))
		}
	}
	return bars, nil
}

// DailyBarsBatch runs DailyBars per product; one product failing does not
// block the rest.
func (s *Service) DailyBarsBatch(productIDs []uint, days int) map[uint][]Bar {
	out := make(map[uint][]Bar, len(productIDs))
	for _, id := range productIDs {
		bars, err := s.DailyBars(id, days)
		if err != nil {
			log.Printf("[kline] ✗ product %d: %v", id, err)
			continue
		}
		out[id] = bars
	}
	return out
}

// UpsertTodayCandle recomputes today's bar from raw history and writes it
// into the cache, keyed uniquely by (product, date). Called after each
// ingestion run; safe to call any number of times.
func (s *Service) UpsertTodayCandle(productID uint, now time.Time) error {
	day := startOfDay(now)
	byDay, err := s.loadHistoryByDay(productID, day)
	if err != nil {
		return err
	}
	date := day.Format(dateLayout)
	entries := byDay[date]
	if len(entries) == 0 {
		return nil
	}
	storeNames, err := s.storeNames()
	if err != nil {
		return err
	}
	bar := deriveBar(date, entries, storeNames)

	candle := models.DailyCandle{
		ProductID:     productID,
		Date:          date,
		OpenPrice:     bar.Open,
		HighPrice:     bar.High,
		LowPrice:      bar.Low,
		ClosePrice:    bar.Close,
		BestStoreName: bar.BestStore,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open_price", "high_price", "low_price", "close_price", "best_store_name",
		}),
	}).Create(&candle).Error
}

func (s *Service) loadCandles(productID uint, since time.Time) (map[string]models.DailyCandle, error) {
	var candles []models.DailyCandle
	if err := s.db.Where("product_id = ? AND date >= ?", productID, since.Format(dateLayout)).
		Find(&candles).Error; err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	out := make(map[string]models.DailyCandle, len(candles))
	for _, c := range candles {
		out[c.Date] = c
	}
	return out, nil
}

// loadHistoryByDay groups the product's history entries by calendar date,
// preserving ascending timestamp order inside each day.
func (s *Service) loadHistoryByDay(productID uint, since time.Time) (map[string][]models.PriceHistory, error) {
	var entries []models.PriceHistory
	if err := s.db.Where("product_id = ? AND recorded_at >= ?", productID, since).
		Order("recorded_at asc").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make(map[string][]models.PriceHistory)
	for _, e := range entries {
		date := e.RecordedAt.Format(dateLayout)
		out[date] = append(out[date], e)
	}
	return out, nil
}

func (s *Service) storeNames() (map[uint]string, error) {
	var stores []models.Store
	if err := s.db.Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("load stores: %w", err)
	}
	out := make(map[uint]string, len(stores))
	for _, st := range stores {
		out[st.ID] = st.Name
	}
	return out, nil
}

// deriveBar folds one day's timestamp-ordered entries into OHLC:
// open = earliest, close = latest, high/low = extremes across any store.
func deriveBar(date string, entries []models.PriceHistory, storeNames map[uint]string) Bar {
	bar := Bar{
		Date:  date,
		Open:  entries[0].Price,
		Close: entries[len(entries)-1].Price,
		High:  entries[0].Price,
		Low:   entries[0].Price,
	}
	bestStoreID := entries[0].StoreID
	for _, e := range entries {
		if e.Price > bar.High {
			bar.High = e.Price
			bestStoreID = e.StoreID
		}
		if e.Price < bar.Low {
			bar.Low = e.Price
		}
	}
	bar.BestStore = storeNames[bestStoreID]
	return bar
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
