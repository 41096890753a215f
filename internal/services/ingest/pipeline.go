package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"kaitori-tracker/internal/services/kline"
	"kaitori-tracker/internal/services/sheet"
)

// RunReport is what one ingestion cycle tells the outside world.
type RunReport struct {
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
	Extract      sheet.ExtractReport `json:"extract"`
	Products     int                 `json:"products_merged"`
	Observations int                 `json:"observations_created"`
	PairsSkipped int                 `json:"pairs_skipped"`
	Failures     []string            `json:"failures,omitempty"`
}

// Pipeline wires the whole batch: fetch → extract → merge → best-price →
// candle upsert. One run processes products sequentially; each product's
// merge-then-recalculate block is additionally guarded by the merger's
// per-product lock, so overlapping runs stay consistent.
type Pipeline struct {
	fetcher     *sheet.Fetcher
	tables      *sheet.Tables
	merger      *Merger
	candles     *kline.Service
	storeOffset int
}

func NewPipeline(fetcher *sheet.Fetcher, tables *sheet.Tables, merger *Merger, candles *kline.Service, storeOffset int) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		tables:      tables,
		merger:      merger,
		candles:     candles,
		storeOffset: storeOffset,
	}
}

// Run fetches the sheet and ingests it. A fetch failure aborts before any
// merge, so prior state stays untouched and the scheduler retries on its own
// cadence.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	grid, err := p.fetcher.FetchGrid(ctx)
	if err != nil {
		return nil, fmt.Errorf("run aborted: %w", err)
	}
	return p.RunFromGrid(grid)
}

// RunFromGrid ingests an already-fetched payload (CSV download or XLSX
// export, the extractor does not care).
func (p *Pipeline) RunFromGrid(grid [][]string) (*RunReport, error) {
	report := &RunReport{StartedAt: time.Now()}

	records, extract := sheet.ExtractRows(grid, p.tables, p.storeOffset)
	report.Extract = extract
	log.Printf("[ingest] %d rows seen, %d accepted, %d skipped",
		extract.RowsSeen, extract.RowsAccepted, extract.RowsSkipped)

	if err := p.merger.EnsureStores(); err != nil {
		return report, fmt.Errorf("bootstrap stores: %w", err)
	}

	now := time.Now()
	for _, rec := range records {
		result, err := p.merger.MergeRecord(rec, now)
		if err != nil {
			// 1商品の永続化失敗はrun全体を止めない
			log.Printf("[ingest] ✗ %s %s: %v", rec.Model, rec.Capacity, err)
			report.Failures = append(report.Failures, err.Error())
			continue
		}
		report.Products++
		report.Observations += result.Observations
		report.PairsSkipped += result.PairsSkipped

		if result.Observations > 0 {
			if err := p.candles.UpsertTodayCandle(result.ProductID, now); err != nil {
				log.Printf("[ingest] candle upsert failed for %s: %v", result.ProductName, err)
				report.Failures = append(report.Failures, err.Error())
			}
		}
	}

	report.FinishedAt = time.Now()
	log.Printf("[ingest] ✓ merged %d products, %d observations (%d pairs skipped)",
		report.Products, report.Observations, report.PairsSkipped)
	return report, nil
}
