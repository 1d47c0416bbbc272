// Package collate merges paired D/R markets into one row per event, seen
// from the Democrat side.
package collate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rcline/electioncal/internal/enrich"
	"github.com/rcline/electioncal/internal/logger"
	"github.com/rcline/electioncal/internal/models"
	"github.com/rcline/electioncal/internal/polymarket"
	"github.com/rcline/electioncal/internal/table"
)

// LoadPairs reads the events file written by the events step. Pairing is a
// human decision; this validates the schema and nothing more.
func LoadPairs(path string) ([]polymarket.EventPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	var pairs []polymarket.EventPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("%s: failed to parse events file: %w", path, err)
	}
	for i := range pairs {
		if pairs[i].EventSlug == "" {
			return nil, fmt.Errorf("%s: pair %d has no event_slug", path, i)
		}
	}
	return pairs, nil
}

// Collator enriches both markets of each pair and combines them.
type Collator struct {
	enricher   *enrich.Enricher
	windowDays int
}

// New creates a collator around an enricher.
func New(e *enrich.Enricher, windowDays int) *Collator {
	return &Collator{enricher: e, windowDays: windowDays}
}

// Run produces the collated table. Pairs missing either side are skipped
// with a diagnostic; a failed price fetch leaves that side's contribution
// null, mirroring the enrichment pipeline's failure handling.
func (c *Collator) Run(ctx context.Context, pairs []polymarket.EventPair) (*table.Table, error) {
	t := table.New(collatedColumns(c.windowDays))

	for i := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pair := &pairs[i]
		if !pair.Complete() {
			logger.Warn("Skipping %s: missing D or R market", pair.Name)
			continue
		}

		row, err := c.collatePair(ctx, pair)
		if err != nil {
			logger.Warn("Skipping %s: %v", pair.Name, err)
			continue
		}
		t.Append(row)
	}
	return t, nil
}

func (c *Collator) collatePair(ctx context.Context, pair *polymarket.EventPair) ([]string, error) {
	dRec, err := pair.DMarket.ToRecord()
	if err != nil {
		return nil, err
	}
	dRec.Side = models.SideDemocrat

	rRec, err := pair.RMarket.ToRecord()
	if err != nil {
		return nil, err
	}
	rRec.Side = models.SideRepublican

	// Both sides anchor on the D market's close so the daily probabilities
	// line up across the pair.
	ref := dRec.ClosedTime
	if ref == nil {
		ref = dRec.EndDate
	}

	d := c.enricher.EnrichRecordAt(ctx, &dRec, ref)
	r := c.enricher.EnrichRecordAt(ctx, &rRec, ref)

	combined := CombineDaily(d.Probabilities, r.Probabilities, c.windowDays)
	dWon := d.YesWon() != nil && *d.YesWon()

	logger.Info("%s: d_prob_%dd=%s d_prob_1d=%s d_won=%v",
		pair.Name, c.windowDays, formatProb(combined, c.windowDays), formatProb(combined, 1), dWon)

	row := []string{
		pair.Name,
		"pair",
		strconv.FormatFloat(dRec.Volume+rRec.Volume, 'g', -1, 64),
	}
	for day := c.windowDays; day >= 1; day-- {
		row = append(row, formatProb(combined, day))
	}
	row = append(row, formatBool(dWon))
	row = append(row, marketValues(pair.DMarket, &d, c.windowDays)...)
	row = append(row, marketValues(pair.RMarket, &r, c.windowDays)...)
	return row, nil
}

// CombineDaily folds the two sides into a single D-win probability per day:
// the average of the D market's Yes price and the complement of the R
// market's, falling back to whichever side is present.
func CombineDaily(d, r map[int]float64, days int) map[int]float64 {
	out := make(map[int]float64, days)
	for day := days; day >= 1; day-- {
		dp, dOK := d[day]
		rp, rOK := r[day]
		switch {
		case dOK && rOK:
			out[day] = (dp + (1 - rp)) / 2
		case dOK:
			out[day] = dp
		case rOK:
			out[day] = 1 - rp
		}
	}
	return out
}

// collatedColumns is the output schema: the pair summary, then the full
// per-side market columns prefixed d_market_ and r_market_.
func collatedColumns(days int) []string {
	cols := []string{"name", "type", "combined_volume"}
	for day := days; day >= 1; day-- {
		cols = append(cols, fmt.Sprintf("d_prob_%dd", day))
	}
	cols = append(cols, "d_won")
	for _, c := range marketColumns(days) {
		cols = append(cols, "d_market_"+c)
	}
	for _, c := range marketColumns(days) {
		cols = append(cols, "r_market_"+c)
	}
	return cols
}

func marketColumns(days int) []string {
	cols := []string{
		"id", "question", "slug", "description", "outcomes", "outcomePrices",
		"volume", "liquidity", "startDate", "endDate", "closedTime",
		"resolutionSource", "tag_labels", "clobTokenIds", "side",
	}
	for day := days; day >= 1; day-- {
		cols = append(cols, fmt.Sprintf("probability%dd", day))
	}
	cols = append(cols,
		fmt.Sprintf("correct_at_%dd", days),
		"correct_at_1d",
	)
	return cols
}

func marketValues(m *polymarket.GammaMarket, e *models.EnrichedRecord, days int) []string {
	labels := make([]string, 0, len(m.Tags))
	for _, tag := range m.Tags {
		labels = append(labels, tag.Label)
	}
	labelsJSON, _ := json.Marshal(labels)

	vals := []string{
		m.ID, m.Question, m.Slug, m.Description, m.Outcomes, m.OutcomePrices,
		strconv.FormatFloat(m.Volume, 'g', -1, 64),
		strconv.FormatFloat(m.Liquidity, 'g', -1, 64),
		m.StartDate, m.EndDate, m.ClosedTime,
		m.ResolutionSource, string(labelsJSON), m.ClobTokenIds, string(e.Side),
	}
	for day := days; day >= 1; day-- {
		vals = append(vals, formatProb(e.Probabilities, day))
	}
	vals = append(vals, formatCorrect(e.CorrectAt7d), formatCorrect(e.CorrectAt1d))
	return vals
}

func formatProb(probs map[int]float64, day int) string {
	p, ok := probs[day]
	if !ok {
		return ""
	}
	return strconv.FormatFloat(p, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func formatCorrect(b *bool) string {
	if b == nil {
		return ""
	}
	return formatBool(*b)
}
