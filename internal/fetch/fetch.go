// Package fetch implements market discovery: paging closed markets out of
// the Gamma API and flattening them into the labeling table.
package fetch

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rcline/electioncal/internal/logger"
	"github.com/rcline/electioncal/internal/polymarket"
	"github.com/rcline/electioncal/internal/table"
)

// MarketLister is the slice of the Polymarket client the fetcher needs.
type MarketLister interface {
	ListMarkets(ctx context.Context, q polymarket.ListMarketsQuery) ([]polymarket.GammaMarket, error)
}

// Config controls which markets are discovered.
type Config struct {
	TagID          int
	ExcludedTagIDs []int
	PageLimit      int
}

// Fetcher pages closed markets for one tag out of the Gamma API.
type Fetcher struct {
	client MarketLister
	config Config
}

// New creates a fetcher.
func New(client MarketLister, config Config) *Fetcher {
	if config.PageLimit <= 0 {
		config.PageLimit = 250
	}
	return &Fetcher{client: client, config: config}
}

// FetchAll pages through the market listing until an empty page, then drops
// markets carrying any excluded tag. A mid-pagination request error ends
// the walk and returns both the markets gathered so far and the error.
func (f *Fetcher) FetchAll(ctx context.Context) ([]polymarket.GammaMarket, error) {
	var all []polymarket.GammaMarket
	offset := 0

	for {
		logger.Debug("Fetching markets at offset %d", offset)
		page, err := f.client.ListMarkets(ctx, polymarket.ListMarketsQuery{
			TagID:  f.config.TagID,
			Closed: true,
			Limit:  f.config.PageLimit,
			Offset: offset,
		})
		if err != nil {
			return f.excludeTagged(all), err
		}
		if len(page) == 0 {
			logger.Debug("No more markets at offset %d", offset)
			break
		}
		all = append(all, page...)
		offset += f.config.PageLimit
	}

	logger.Info("Fetched %d markets for tag %d", len(all), f.config.TagID)
	return f.excludeTagged(all), nil
}

func (f *Fetcher) excludeTagged(markets []polymarket.GammaMarket) []polymarket.GammaMarket {
	if len(f.config.ExcludedTagIDs) == 0 {
		return markets
	}
	excluded := make(map[int]bool, len(f.config.ExcludedTagIDs))
	for _, id := range f.config.ExcludedTagIDs {
		excluded[id] = true
	}

	kept := markets[:0]
	removed := 0
	for _, m := range markets {
		skip := false
		for _, id := range m.TagIDs() {
			if excluded[id] {
				skip = true
				break
			}
		}
		if skip {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	if removed > 0 {
		logger.Info("Filtered out %d markets with excluded tags, %d remain", removed, len(kept))
	}
	return kept
}

// tableColumns is the labeling-table schema the fetch step emits and the
// enrich step later reads back (with the hand-added side column).
var tableColumns = []string{
	"id", "question", "slug", "description", "outcomes", "outcomePrices",
	"volume", "liquidity", "startDate", "endDate", "closedTime",
	"resolutionSource", "tag_ids", "tag_labels", "clobTokenIds",
}

// ToTable flattens markets into the labeling table, sorted by volume
// descending so the highest-signal markets label first.
func ToTable(markets []polymarket.GammaMarket) *table.Table {
	t := table.New(tableColumns)
	for i := range markets {
		m := &markets[i]

		ids := make([]string, 0, len(m.Tags))
		labels := make([]string, 0, len(m.Tags))
		for _, tag := range m.Tags {
			ids = append(ids, tag.ID)
			labels = append(labels, tag.Label)
		}
		idsJSON, _ := json.Marshal(ids)
		labelsJSON, _ := json.Marshal(labels)

		t.Append([]string{
			m.ID, m.Question, m.Slug, m.Description,
			orEmptyArray(m.Outcomes), orEmptyArray(m.OutcomePrices),
			strconv.FormatFloat(m.Volume, 'g', -1, 64),
			strconv.FormatFloat(m.Liquidity, 'g', -1, 64),
			m.StartDate, m.EndDate, m.ClosedTime,
			m.ResolutionSource, string(idsJSON), string(labelsJSON),
			orEmptyArray(m.ClobTokenIds),
		})
	}

	volIdx := len(tableColumns) // resolved below; volume column position
	for i, c := range tableColumns {
		if c == "volume" {
			volIdx = i
			break
		}
	}
	t.SortBy(func(a, b []string) bool {
		av, _ := strconv.ParseFloat(a[volIdx], 64)
		bv, _ := strconv.ParseFloat(b[volIdx], 64)
		return av > bv
	})
	return t
}

func orEmptyArray(s string) string {
	if s == "" {
		return "[]"
	}
	return s
}
