package models

import (
	"math"
	"time"
)

// Product represents one sellable iPhone variant (model + capacity + color + carrier).
type Product struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	JANCode     *string   `json:"jan_code" gorm:"size:13;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:255;index;not null"` // 製品名（例: iPhone 17 Pro Max 256）
	Brand       string    `json:"brand" gorm:"size:50;default:'Apple'"`
	Model       string    `json:"model" gorm:"size:100;not null"` // モデル名（iPhone 17 Pro Max等）
	Capacity    string    `json:"capacity" gorm:"size:20;not null"`
	Color       string    `json:"color" gorm:"size:50"`
	Carrier     string    `json:"carrier" gorm:"size:50"`
	Condition   string    `json:"condition" gorm:"size:50;default:'新品'"`
	ImageURL    string    `json:"image_url" gorm:"size:500"`
	RetailPrice *int      `json:"retail_price"` // Apple公式価格（円）
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Prices []Price `json:"-" gorm:"foreignKey:ProductID"`
}

// Store represents a buyback shop (買取店舗).
type Store struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"size:100;uniqueIndex;not null"`
	NameKana   string    `json:"name_kana" gorm:"size:100"`
	LogoURL    string    `json:"logo_url" gorm:"size:500"`
	WebsiteURL string    `json:"website_url" gorm:"size:500"`
	IsActive   bool      `json:"is_active" gorm:"default:true"`
	Priority   int       `json:"priority" gorm:"default:0"` // 表示順
	CreatedAt  time.Time `json:"created_at"`

	Prices []Price `json:"-" gorm:"foreignKey:StoreID"`
}

// Price is one scraped buyback quote. Rows are append-only; the current quote
// for a product×store pair is the one with the newest ScrapedAt.
type Price struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	ProductID          uint      `json:"product_id" gorm:"not null;index:idx_prices_product_store"`
	Product            *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	StoreID            uint      `json:"store_id" gorm:"not null;index:idx_prices_product_store"`
	Store              *Store    `json:"store,omitempty" gorm:"foreignKey:StoreID"`
	Price              int       `json:"price" gorm:"not null"` // 買取価格（円）
	PriceChange        int       `json:"price_change" gorm:"default:0"`
	PriceChangePercent float64   `json:"price_change_percent" gorm:"default:0"`
	IsBestPrice        bool      `json:"is_best_price" gorm:"default:false"`
	URL                string    `json:"url" gorm:"size:1000"`
	ScrapedAt          time.Time `json:"scraped_at" gorm:"index"`
	CreatedAt          time.Time `json:"created_at"`
}

// Profit is the spread against the official retail price, nil when unknown.
func (p *Price) Profit() *int {
	if p.Product == nil || p.Product.RetailPrice == nil {
		return nil
	}
	v := p.Price - *p.Product.RetailPrice
	return &v
}

func (p *Price) ProfitPercent() *float64 {
	if p.Product == nil || p.Product.RetailPrice == nil || *p.Product.RetailPrice <= 0 {
		return nil
	}
	v := round2(float64(p.Price-*p.Product.RetailPrice) / float64(*p.Product.RetailPrice) * 100)
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PriceHistory is the append-only source of truth for time series.
// Never updated, never deleted.
type PriceHistory struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ProductID  uint      `json:"product_id" gorm:"not null;index:idx_history_product_store_date"`
	StoreID    uint      `json:"store_id" gorm:"not null;index:idx_history_product_store_date"`
	Price      int       `json:"price" gorm:"not null"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index:idx_history_product_store_date"`
}

// DailyCandle caches one day's OHLC bar per product. It is derived data:
// always recomputable from PriceHistory, and its absence only means
// "not yet aggregated", never "no price data".
type DailyCandle struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ProductID     uint      `json:"product_id" gorm:"not null;uniqueIndex:uix_daily_candle"`
	Date          string    `json:"date" gorm:"size:10;not null;uniqueIndex:uix_daily_candle"` // YYYY-MM-DD
	OpenPrice     int       `json:"open"`
	HighPrice     int       `json:"high"`
	LowPrice      int       `json:"low"`
	ClosePrice    int       `json:"close"`
	BestStoreName string    `json:"best_store" gorm:"size:100"` // 当日最高値の店舗
	CreatedAt     time.Time `json:"created_at"`
}
