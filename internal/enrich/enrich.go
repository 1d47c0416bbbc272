// Package enrich implements the price-history enrichment pipeline: dedup,
// windowed price fetch, daily alignment, and correctness derivation.
package enrich

import (
	"context"
	"time"

	"github.com/rcline/electioncal/internal/logger"
	"github.com/rcline/electioncal/internal/models"
)

// PriceSource fetches a historical price series for one outcome token.
type PriceSource interface {
	PriceHistory(ctx context.Context, tokenID string, start, end time.Time, fidelityMinutes int) ([]models.PricePoint, error)
}

// Cache is an optional persistent price-series cache. Load reports whether
// the window was previously fetched, which is distinct from the series
// being empty.
type Cache interface {
	LoadSeries(tokenID string, start, end time.Time) ([]models.PricePoint, bool, error)
	SaveSeries(tokenID string, start, end time.Time, points []models.PricePoint) error
}

// Config holds enrichment behavior.
type Config struct {
	WindowDays      int
	FidelityMinutes int
	MatchTolerance  time.Duration
}

// DefaultConfig returns the production defaults: a 7-day window of daily
// candles matched within 2 hours.
func DefaultConfig() Config {
	return Config{
		WindowDays:      7,
		FidelityMinutes: 1440,
		MatchTolerance:  2 * time.Hour,
	}
}

// Enricher derives per-day probabilities and correctness for labeled
// market records, one record at a time.
type Enricher struct {
	prices PriceSource
	cache  Cache
	config Config
}

// New creates an enricher. cache may be nil to disable caching.
func New(prices PriceSource, cache Cache, config Config) *Enricher {
	if config.WindowDays <= 0 {
		config = DefaultConfig()
	}
	return &Enricher{prices: prices, cache: cache, config: config}
}

// Run enriches each record in order. A single record's fetch failure is
// logged and leaves that record's derived fields null; it never aborts the
// run. The only returned error is context cancellation.
func (e *Enricher) Run(ctx context.Context, records []models.MarketRecord) ([]models.EnrichedRecord, *models.RunReport, error) {
	report := &models.RunReport{
		Command:   "enrich",
		StartedAt: time.Now(),
		Markets:   len(records),
	}

	enriched := make([]models.EnrichedRecord, 0, len(records))
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		rec := e.EnrichRecord(ctx, &records[i])
		report.Observe(&rec)
		enriched = append(enriched, rec)
	}

	report.Duration = time.Since(report.StartedAt)
	return enriched, report, nil
}

// EnrichRecord enriches one record anchored on its own reference date.
func (e *Enricher) EnrichRecord(ctx context.Context, rec *models.MarketRecord) models.EnrichedRecord {
	return e.EnrichRecordAt(ctx, rec, rec.ReferenceDate())
}

// EnrichRecordAt enriches one record anchored on an explicit reference
// date; collate uses this to window both markets of a pair on the same
// close date.
func (e *Enricher) EnrichRecordAt(ctx context.Context, rec *models.MarketRecord, ref *time.Time) models.EnrichedRecord {
	out := models.EnrichedRecord{MarketRecord: *rec}

	token := rec.PrimaryToken()
	switch {
	case token == "":
		logger.Warn("Market %s has no CLOB token id, emitting null probabilities", rec.ID)
		return out
	case ref == nil:
		logger.Warn("Market %s has no usable close date, emitting null probabilities", rec.ID)
		return out
	}

	history, err := e.fetchSeries(ctx, token, *ref)
	if err != nil {
		logger.Warn("Price fetch failed for market %s (token %s): %v", rec.ID, token, err)
		out.FetchErr = err
		return out
	}
	if len(history) == 0 {
		logger.Warn("Empty price series for market %s (token %s)", rec.ID, token)
		return out
	}

	out.Probabilities = AlignDaily(history, *ref, e.config.WindowDays, e.config.MatchTolerance, rec.StartDate)
	out.CorrectAt7d = out.CorrectAt(e.config.WindowDays)
	out.CorrectAt1d = out.CorrectAt(1)

	logger.Debug("Market %s: %d/%d days matched, correct_at_%dd=%v correct_at_1d=%v",
		rec.ID, len(out.Probabilities), e.config.WindowDays,
		e.config.WindowDays, fmtBool(out.CorrectAt7d), fmtBool(out.CorrectAt1d))
	return out
}

// fetchSeries retrieves the record's window from cache when possible,
// hitting the API and backfilling the cache otherwise.
func (e *Enricher) fetchSeries(ctx context.Context, tokenID string, ref time.Time) ([]models.PricePoint, error) {
	start, end := WindowBounds(ref, e.config.WindowDays)

	if e.cache != nil {
		points, hit, err := e.cache.LoadSeries(tokenID, start, end)
		if err != nil {
			logger.Warn("Price cache read failed for token %s: %v", tokenID, err)
		} else if hit {
			logger.Debug("Price cache hit for token %s (%d points)", tokenID, len(points))
			return points, nil
		}
	}

	points, err := e.prices.PriceHistory(ctx, tokenID, start, end, e.config.FidelityMinutes)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SaveSeries(tokenID, start, end, points); err != nil {
			logger.Warn("Price cache write failed for token %s: %v", tokenID, err)
		}
	}
	return points, nil
}

func fmtBool(b *bool) string {
	if b == nil {
		return "null"
	}
	if *b {
		return "TRUE"
	}
	return "FALSE"
}
