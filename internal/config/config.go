package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Google Sheets CSV导出地址（gviz公开表格API）
	SheetURL     string
	FetchTimeout time.Duration

	// 查表配置文件（店铺映射/机型/容量区间），为空时使用内置默认表
	TablesPath string

	// 店铺价格列的起始下标（AG列）
	StoreColumnOffset int
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "root:kaitori@tcp(127.0.0.1:3306)/kaitori_tracker?charset=utf8mb4&parseTime=True&loc=Local"

	defaultSheet := "https://docs.google.com/spreadsheets/d/1-Eq4q3QTTQIXrxZl0bvAnGiOtelj2JOWeEQeKaTA4iE/gviz/tq?tqx=out:csv&gid=0"

	return &Config{
		DatabaseURL:       getEnv("DATABASE_URL", defaultDSN),
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		SheetURL:          getEnv("SHEET_URL", defaultSheet),
		FetchTimeout:      getDuration("SHEET_FETCH_TIMEOUT", 30*time.Second),
		TablesPath:        getEnv("SHEET_TABLES_PATH", ""),
		StoreColumnOffset: getInt("SHEET_STORE_COLUMN_OFFSET", 32),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
