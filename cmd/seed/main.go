package main

import (
	"errors"
	"log"

	"kaitori-tracker/internal/config"
	"kaitori-tracker/internal/database"
	"kaitori-tracker/internal/models"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// 買取店舗の基礎データ（優先度は表示順）
var storeSeeds = []models.Store{
	{Name: "森森買取", NameKana: "シンシンカイトリ", Priority: 100, WebsiteURL: "https://www.shin-shin.co.jp", IsActive: true},
	{Name: "買取商店", NameKana: "カイトリショウテン", Priority: 90, WebsiteURL: "https://kaitorishoten.com", IsActive: true},
	{Name: "買取一丁目", NameKana: "カイトリイッチョウメ", Priority: 80, WebsiteURL: "https://kaitori1chome.com", IsActive: true},
	{Name: "モバイルミックス", NameKana: "モバイルミックス", Priority: 70, WebsiteURL: "https://mobile-mix.com", IsActive: true},
	{Name: "携帯空間", NameKana: "ケイタイクウカン", Priority: 60, WebsiteURL: "https://keitai-kukan.com", IsActive: true},
	{Name: "買取wiki", NameKana: "カイトリウィキ", Priority: 50, WebsiteURL: "https://kaitori-wiki.com", IsActive: true},
	{Name: "買取ルデヤ", NameKana: "カイトリルデヤ", Priority: 40, WebsiteURL: "https://kaitori-rudeya.com", IsActive: true},
	{Name: "PANDA買取", NameKana: "パンダカイトリ", Priority: 30, WebsiteURL: "https://panda-kaitori.com", IsActive: true},
	{Name: "家電市場", NameKana: "カデンイチバ", Priority: 20, WebsiteURL: "https://kaden-ichiba.jp", IsActive: true},
	{Name: "モバステ", NameKana: "モバステ", Priority: 10, WebsiteURL: "https://mobaste.com", IsActive: true},
	{Name: "買取ホムラ", NameKana: "カイトリホムラ", Priority: 5, WebsiteURL: "https://kaitori-homura.com", IsActive: true},
	{Name: "アバウテック", NameKana: "アバウテック", Priority: 5, WebsiteURL: "https://aboutech.jp", IsActive: true},
}

type productSeed struct {
	model       string
	capacity    string
	retailPrice int
}

// 旧世代カタログ（シートに載らないが履歴表示用に保持）
var productSeeds = []productSeed{
	{"iPhone 15 Pro Max", "256GB", 189800},
	{"iPhone 15 Pro Max", "512GB", 219800},
	{"iPhone 15 Pro Max", "1TB", 249800},
	{"iPhone 15 Pro", "128GB", 159800},
	{"iPhone 15 Pro", "256GB", 179800},
	{"iPhone 15 Pro", "512GB", 209800},
	{"iPhone 15 Pro", "1TB", 239800},
	{"iPhone 15", "128GB", 124800},
	{"iPhone 15", "256GB", 139800},
	{"iPhone 15", "512GB", 169800},
	{"iPhone 14 Pro Max", "128GB", 164800},
	{"iPhone 14 Pro Max", "256GB", 179800},
	{"iPhone 14 Pro Max", "512GB", 209800},
	{"iPhone 14 Pro Max", "1TB", 239800},
	{"iPhone 14 Pro", "128GB", 149800},
	{"iPhone 14 Pro", "256GB", 164800},
	{"iPhone 14 Pro", "512GB", 194800},
	{"iPhone 14 Pro", "1TB", 224800},
	{"iPhone 14", "128GB", 119800},
	{"iPhone 14", "256GB", 134800},
	{"iPhone 14", "512GB", 164800},
	{"iPhone 13 Pro Max", "128GB", 139800},
	{"iPhone 13 Pro Max", "256GB", 154800},
	{"iPhone 13 Pro Max", "512GB", 184800},
	{"iPhone 13 Pro Max", "1TB", 214800},
	{"iPhone 13 Pro", "128GB", 122800},
	{"iPhone 13 Pro", "256GB", 137800},
	{"iPhone 13 Pro", "512GB", 167800},
	{"iPhone 13 Pro", "1TB", 197800},
	{"iPhone 13", "128GB", 98800},
	{"iPhone 13", "256GB", 112800},
	{"iPhone 13", "512GB", 142800},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ データベース接続失敗: %v", err)
	}

	seedStores(db)
	seedProducts(db)
}

func seedStores(db *gorm.DB) {
	created := 0
	for _, seed := range storeSeeds {
		var existing models.Store
		err := db.Where("name = ?", seed.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[seed] ✗ store %s: %v", seed.Name, err)
			continue
		}
		store := seed
		if err := db.Create(&store).Error; err != nil {
			log.Printf("[seed] ✗ store %s: %v", seed.Name, err)
			continue
		}
		created++
	}
	log.Printf("[seed] %d店舗を初期化しました", created)
}

func seedProducts(db *gorm.DB) {
	created := 0
	for _, seed := range productSeeds {
		name := seed.model + " " + seed.capacity
		var existing models.Product
		err := db.Where("name = ?", name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[seed] ✗ product %s: %v", name, err)
			continue
		}
		retail := seed.retailPrice
		product := models.Product{
			Name:        name,
			Model:       seed.model,
			Capacity:    seed.capacity,
			Carrier:     "SIMフリー",
			Condition:   "新品",
			RetailPrice: &retail,
		}
		if err := db.Create(&product).Error; err != nil {
			log.Printf("[seed] ✗ product %s: %v", name, err)
			continue
		}
		created++
	}
	log.Printf("[seed] %d製品を初期化しました", created)
}
