package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"kaitori-tracker/internal/models"
	"kaitori-tracker/internal/services/ingest"
	"kaitori-tracker/internal/services/kline"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type APIHandler struct {
	db       *gorm.DB
	pipeline *ingest.Pipeline
	candles  *kline.Service
	hub      *Hub
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, pipeline *ingest.Pipeline, candles *kline.Service, hub *Hub) *APIHandler {
	handler := &APIHandler{
		db:       db,
		pipeline: pipeline,
		candles:  candles,
		hub:      hub,
	}

	stores := r.Group("/stores")
	{
		stores.GET("", handler.ListStores)
		stores.GET("/:id", handler.GetStore)
	}

	products := r.Group("/products")
	{
		products.GET("", handler.ListProducts)
		products.GET("/:id", handler.GetProduct)
		products.POST("", handler.CreateProduct)
	}

	prices := r.Group("/prices")
	{
		prices.GET("", handler.ListPrices)
		prices.GET("/latest/:product_id", handler.GetLatestPrices)
		// 日足K線（商品単位・バッチ）
		prices.GET("/kline/:product_id", handler.GetKline)
		prices.POST("/kline/batch", handler.GetKlineBatch)
	}

	r.GET("/history/:product_id/:store_id", handler.GetPriceHistory)
	r.GET("/stats", handler.GetStats)
	r.GET("/search", handler.SearchProducts)

	// 手動実行トリガ（通常はcmd/daemonの周期実行）
	r.POST("/scrape/run", handler.RunScrape)

	return handler
}

// priceJSON mirrors the price row plus its computed profit spread.
func priceJSON(p models.Price) gin.H {
	out := gin.H{
		"id":                   p.ID,
		"product_id":           p.ProductID,
		"store_id":             p.StoreID,
		"price":                p.Price,
		"price_change":         p.PriceChange,
		"price_change_percent": p.PriceChangePercent,
		"is_best_price":        p.IsBestPrice,
		"url":                  p.URL,
		"scraped_at":           p.ScrapedAt,
		"created_at":           p.CreatedAt,
		"store":                p.Store,
		"product":              p.Product,
	}
	if v := p.Profit(); v != nil {
		out["profit"] = *v
	}
	if v := p.ProfitPercent(); v != nil {
		out["profit_percent"] = *v
	}
	return out
}

// ---- stores ----

func (h *APIHandler) ListStores(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var stores []models.Store
	if err := h.db.Where("is_active = ?", true).
		Order("priority desc").
		Offset(skip).Limit(limit).
		Find(&stores).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, stores)
}

func (h *APIHandler) GetStore(c *gin.Context) {
	var store models.Store
	if err := h.db.First(&store, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return
	}
	c.JSON(http.StatusOK, store)
}

// ---- products ----

func (h *APIHandler) ListProducts(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	query := h.db.Model(&models.Product{})
	if model := c.Query("model"); model != "" {
		query = query.Where("model LIKE ?", "%"+model+"%")
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	var products []models.Product
	if err := query.Offset(skip).Limit(limit).Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *APIHandler) GetProduct(c *gin.Context) {
	var product models.Product
	if err := h.db.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *APIHandler) CreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(product.Capacity) == "" || strings.TrimSpace(product.Capacity) == "GB" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capacity is required"})
		return
	}
	if err := h.db.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, product)
}

// ---- prices ----

// latestPrices joins each (product, store) pair against its newest scraped_at.
func (h *APIHandler) latestPrices() *gorm.DB {
	sub := h.db.Model(&models.Price{}).
		Select("product_id, store_id, MAX(scraped_at) AS max_scraped_at").
		Group("product_id, store_id")
	return h.db.Model(&models.Price{}).
		Joins("JOIN (?) AS latest ON prices.product_id = latest.product_id AND prices.store_id = latest.store_id AND prices.scraped_at = latest.max_scraped_at", sub).
		Preload("Store").Preload("Product")
}

func (h *APIHandler) ListPrices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	if limit <= 0 {
		limit = 1000
	}

	query := h.latestPrices()
	if productID := c.Query("product_id"); productID != "" {
		query = query.Where("prices.product_id = ?", productID)
	}
	if storeID := c.Query("store_id"); storeID != "" {
		query = query.Where("prices.store_id = ?", storeID)
	}

	var prices []models.Price
	if err := query.Order("prices.price desc").Limit(limit).Find(&prices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	out := make([]gin.H, len(prices))
	for i, p := range prices {
		out[i] = priceJSON(p)
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) GetLatestPrices(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id"})
		return
	}

	var prices []models.Price
	if err := h.latestPrices().
		Where("prices.product_id = ?", productID).
		Find(&prices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	out := make([]gin.H, len(prices))
	for i, p := range prices {
		out[i] = priceJSON(p)
	}
	c.JSON(http.StatusOK, out)
}

// ---- kline ----

// GetKline returns daily OHLC bars for a product.
// GET /api/v1/prices/kline/:product_id?days=7
func (h *APIHandler) GetKline(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id"})
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	bars, err := h.candles.DailyBars(uint(productID), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if bars == nil {
		bars = []kline.Bar{}
	}
	c.JSON(http.StatusOK, bars)
}

func (h *APIHandler) GetKlineBatch(c *gin.Context) {
	var req struct {
		ProductIDs []uint `json:"product_ids" binding:"required"`
		Days       int    `json:"days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing product_ids"})
		return
	}
	c.JSON(http.StatusOK, h.candles.DailyBarsBatch(req.ProductIDs, req.Days))
}

// ---- history ----

func (h *APIHandler) GetPriceHistory(c *gin.Context) {
	productID, err1 := strconv.Atoi(c.Param("product_id"))
	storeID, err2 := strconv.Atoi(c.Param("store_id"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days < 1 || days > 365 {
		days = 30
	}

	var product models.Product
	if err := h.db.First(&product, productID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	var store models.Store
	if err := h.db.First(&store, storeID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return
	}

	since := time.Now().AddDate(0, 0, -days)
	var history []models.PriceHistory
	if err := h.db.Where("product_id = ? AND store_id = ? AND recorded_at >= ?", productID, storeID, since).
		Order("recorded_at asc").
		Find(&history).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	entries := make([]gin.H, len(history))
	for i, e := range history {
		entries[i] = gin.H{"price": e.Price, "recorded_at": e.RecordedAt}
	}
	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"store":   store,
		"history": entries,
	})
}

// ---- stats ----

func (h *APIHandler) GetStats(c *gin.Context) {
	var totalProducts, totalStores int64
	h.db.Model(&models.Product{}).Count(&totalProducts)
	h.db.Model(&models.Store{}).Where("is_active = ?", true).Count(&totalStores)

	today := time.Now()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	var todayUpdates int64
	h.db.Model(&models.Price{}).Where("scraped_at >= ?", today).Count(&todayUpdates)

	var changes24h int64
	h.db.Model(&models.Price{}).
		Where("scraped_at >= ? AND price_change != 0", today.AddDate(0, 0, -1)).
		Count(&changes24h)

	var lastUpdated *time.Time
	var latest models.Price
	if err := h.db.Order("scraped_at desc").First(&latest).Error; err == nil {
		lastUpdated = &latest.ScrapedAt
	}

	c.JSON(http.StatusOK, gin.H{
		"total_products":    totalProducts,
		"total_stores":      totalStores,
		"today_updates":     todayUpdates,
		"price_changes_24h": changes24h,
		"last_updated":      lastUpdated,
	})
}

// ---- search ----

func (h *APIHandler) SearchProducts(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q"})
		return
	}

	var products []models.Product
	if err := h.db.Where("name LIKE ? OR model LIKE ?", "%"+q+"%", "%"+q+"%").
		Limit(20).Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	results := make([]gin.H, 0, len(products))
	for _, product := range products {
		var prices []models.Price
		if err := h.latestPrices().
			Where("prices.product_id = ?", product.ID).
			Order("prices.price desc").
			Find(&prices).Error; err != nil {
			continue
		}
		var bestPrice *int
		if len(prices) > 0 {
			bestPrice = &prices[0].Price
		}
		priceList := make([]gin.H, len(prices))
		for i, p := range prices {
			priceList[i] = priceJSON(p)
		}
		results = append(results, gin.H{
			"product":     product,
			"best_price":  bestPrice,
			"store_count": len(prices),
			"prices":      priceList,
		})
	}
	c.JSON(http.StatusOK, results)
}

// ---- scrape ----

// RunScrape triggers one full ingestion cycle and returns its report.
func (h *APIHandler) RunScrape(c *gin.Context) {
	report, err := h.pipeline.Run(c.Request.Context())
	if err != nil {
		// fetch失敗はmerge前に中断している（状態は無傷）
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if h.hub != nil {
		h.hub.Broadcast(report)
	}
	c.JSON(http.StatusOK, report)
}
