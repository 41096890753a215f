package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaitori-tracker/internal/config"
	"kaitori-tracker/internal/database"
	"kaitori-tracker/internal/services/ingest"
	"kaitori-tracker/internal/services/kline"
	"kaitori-tracker/internal/services/sheet"

	"github.com/joho/godotenv"
)

var (
	interval = flag.Duration("interval", 30*time.Minute, "スクレイピング間隔")
	runOnce  = flag.Bool("once", false, "1回だけ実行して終了")
	xlsxPath = flag.String("xlsx", "", "シートの代わりに読み込むxlsxファイル")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ データベース接続失敗: %v", err)
	}

	tables, err := sheet.Load(cfg.TablesPath)
	if err != nil {
		log.Fatalf("✗ 変換テーブル読み込み失敗: %v", err)
	}

	fetcher := sheet.NewFetcher(cfg.SheetURL, cfg.FetchTimeout)
	merger := ingest.NewMerger(db, tables)
	candles := kline.NewService(db)
	pipeline := ingest.NewPipeline(fetcher, tables, merger, candles, cfg.StoreColumnOffset)

	log.Printf("[daemon] 起動 (PID: %d, 間隔: %v)", os.Getpid(), *interval)

	if *runOnce {
		runCycle(pipeline, cfg.FetchTimeout, *xlsxPath)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	// 起動直後に1回実行してからticker周期に入る
	runCycle(pipeline, cfg.FetchTimeout, *xlsxPath)

	for {
		select {
		case <-sigChan:
			log.Println("[daemon] 終了シグナル受信、停止します")
			return
		case <-ticker.C:
			runCycle(pipeline, cfg.FetchTimeout, *xlsxPath)
		}
	}
}

// runCycle executes one ingestion run. Failures are logged and left for the
// next tick. The pipeline is idempotent, so at-least-once is fine.
func runCycle(pipeline *ingest.Pipeline, timeout time.Duration, xlsxPath string) {
	log.Printf("[daemon] ⏰ %s run開始", time.Now().Format("2006-01-02 15:04:05"))

	var report *ingest.RunReport
	var err error
	if xlsxPath != "" {
		var grid [][]string
		if grid, err = sheet.ReadXLSXGrid(xlsxPath); err == nil {
			report, err = pipeline.RunFromGrid(grid)
		}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		report, err = pipeline.Run(ctx)
		cancel()
	}
	if err != nil {
		log.Printf("[daemon] ✗ run失敗: %v", err)
		return
	}
	log.Printf("[daemon] ✓ run完了: %d商品 / %d観測 (%v)",
		report.Products, report.Observations, report.FinishedAt.Sub(report.StartedAt))
}
