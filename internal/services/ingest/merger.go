package ingest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"kaitori-tracker/internal/models"
	"kaitori-tracker/internal/services/sheet"

	"gorm.io/gorm"
)

// Merger owns all writes to Price and PriceHistory. It folds one extraction
// record at a time into current state: for every (product, store) pair it
// compares the new quote against the latest stored one, computes the delta,
// and appends. Prior rows are never mutated.
type Merger struct {
	db     *gorm.DB
	tables *sheet.Tables

	// 商品単位の排他。merge→best-price再計算の間に同一商品の
	// 別runが割り込まないようにする。
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewMerger(db *gorm.DB, tables *sheet.Tables) *Merger {
	return &Merger{
		db:     db,
		tables: tables,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Merger) productLock(name string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	if l, ok := m.locks[name]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[name] = l
	return l
}

// EnsureStores creates any canonical store from the header table that does
// not exist yet. Stores are never deleted by the pipeline.
func (m *Merger) EnsureStores() error {
	names := make([]string, 0, len(m.tables.StoreHeaders))
	seen := make(map[string]bool)
	for _, name := range m.tables.StoreHeaders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var existing models.Store
		err := m.db.Where("name = ?", name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup store %s: %w", name, err)
		}
		store := models.Store{Name: name, IsActive: true, Priority: 100}
		if err := m.db.Create(&store).Error; err != nil {
			return fmt.Errorf("create store %s: %w", name, err)
		}
	}
	return nil
}

// MergeResult summarizes what one record produced.
type MergeResult struct {
	ProductID    uint
	ProductName  string
	Observations int
	PairsSkipped int
}

// MergeRecord resolves the product, then appends one observation plus one
// history entry per store quote. The whole merge and the subsequent
// best-price recalculation run under the product's lock.
func (m *Merger) MergeRecord(rec sheet.Record, now time.Time) (*MergeResult, error) {
	modelName, ok := m.tables.ModelNames[rec.Model]
	if !ok {
		return nil, fmt.Errorf("model %q not in name table", rec.Model)
	}
	productName := modelName + " " + rec.Capacity

	lock := m.productLock(productName)
	lock.Lock()
	defer lock.Unlock()

	product, err := m.getOrCreateProduct(productName, modelName, rec)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{ProductID: product.ID, ProductName: productName}

	// 店舗順を固定してログと変動計算を再現しやすくする
	storeNames := make([]string, 0, len(rec.StorePrices))
	for name := range rec.StorePrices {
		storeNames = append(storeNames, name)
	}
	sort.Strings(storeNames)

	for _, storeName := range storeNames {
		price := rec.StorePrices[storeName]

		var store models.Store
		if err := m.db.Where("name = ?", storeName).First(&store).Error; err != nil {
			// 未登録店舗はこのペアだけ落とす。recordは続行。
			result.PairsSkipped++
			continue
		}

		if err := m.appendObservation(product, &store, price, now); err != nil {
			result.PairsSkipped++
			continue
		}
		result.Observations++
	}

	if err := m.RecalcBestPrice(product.ID); err != nil {
		return result, fmt.Errorf("recalc best price for %s: %w", productName, err)
	}
	return result, nil
}

func (m *Merger) getOrCreateProduct(productName, modelName string, rec sheet.Record) (*models.Product, error) {
	var product models.Product
	err := m.db.Where("name = ?", productName).First(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup product %s: %w", productName, err)
	}

	// 公式価格は作成時のみ設定。以後のrunでは上書きしない。
	product = models.Product{
		Name:        productName,
		Model:       modelName,
		Capacity:    rec.Capacity,
		Carrier:     "SIMフリー",
		Condition:   "新品",
		ImageURL:    m.tables.ImageURLs[rec.Model],
		RetailPrice: rec.RetailPrice,
	}
	if err := m.db.Create(&product).Error; err != nil {
		return nil, fmt.Errorf("create product %s: %w", productName, err)
	}
	return &product, nil
}

// appendObservation writes the Price row (with change vs. the immediately
// preceding observation of the same pair) and the matching history entry.
func (m *Merger) appendObservation(product *models.Product, store *models.Store, price int, now time.Time) error {
	var prev models.Price
	change := 0
	changePercent := 0.0
	err := m.db.Where("product_id = ? AND store_id = ?", product.ID, store.ID).
		Order("scraped_at desc").
		First(&prev).Error
	switch {
	case err == nil:
		change = price - prev.Price
		if prev.Price > 0 {
			changePercent = math.Round(float64(change)/float64(prev.Price)*100*100) / 100
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 初回観測はchange=0のまま
	default:
		return fmt.Errorf("lookup previous price: %w", err)
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		observation := models.Price{
			ProductID:          product.ID,
			StoreID:            store.ID,
			Price:              price,
			PriceChange:        change,
			PriceChangePercent: changePercent,
			ScrapedAt:          now,
		}
		if err := tx.Create(&observation).Error; err != nil {
			return fmt.Errorf("create price: %w", err)
		}
		history := models.PriceHistory{
			ProductID:  product.ID,
			StoreID:    store.ID,
			Price:      price,
			RecordedAt: now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
}
