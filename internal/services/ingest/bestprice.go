package ingest

import (
	"fmt"

	"kaitori-tracker/internal/models"

	"gorm.io/gorm"
)

// LatestPerStore returns the newest observation for every store that has
// quoted the product, newest-first within the pair.
func LatestPerStore(db *gorm.DB, productID uint) ([]models.Price, error) {
	var prices []models.Price
	if err := db.Where("product_id = ?", productID).
		Order("scraped_at desc").
		Find(&prices).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]bool)
	var latest []models.Price
	for _, p := range prices {
		if seen[p.StoreID] {
			continue
		}
		seen[p.StoreID] = true
		latest = append(latest, p)
	}
	return latest, nil
}

// RecalcBestPrice re-derives the best-price flag for one product: the
// latest-per-store observations at the maximum price get the flag, everything
// else loses it. Ties at the maximum all stay flagged; the source data has
// no secondary tie-break and we do not invent one.
func (m *Merger) RecalcBestPrice(productID uint) error {
	latest, err := LatestPerStore(m.db, productID)
	if err != nil {
		return fmt.Errorf("load latest prices: %w", err)
	}
	if len(latest) == 0 {
		return nil
	}

	best := latest[0].Price
	for _, p := range latest {
		if p.Price > best {
			best = p.Price
		}
	}
	var winners []uint
	for _, p := range latest {
		if p.Price == best {
			winners = append(winners, p.ID)
		}
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Price{}).
			Where("product_id = ? AND is_best_price = ?", productID, true).
			Update("is_best_price", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.Price{}).
			Where("id IN ?", winners).
			Update("is_best_price", true).Error
	})
}
