package enrich

import (
	"fmt"
	"strconv"

	"github.com/rcline/electioncal/internal/logger"
	"github.com/rcline/electioncal/internal/models"
	"github.com/rcline/electioncal/internal/table"
)

// RequiredColumns are the labeled-input columns the pipeline cannot run
// without. Their absence aborts before any output is written.
var RequiredColumns = []string{"id", "side", "clobTokenIds", "outcomePrices", "endDate"}

// RecordsFromTable builds one typed record per table row, in row order.
// Schema problems (missing required columns, unparseable side labels) are
// fatal; a malformed timestamp or token list in a single row degrades that
// row to null derived fields later instead of failing the load.
func RecordsFromTable(t *table.Table) ([]models.MarketRecord, error) {
	if err := t.Require(RequiredColumns...); err != nil {
		return nil, err
	}

	records := make([]models.MarketRecord, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		rec := models.MarketRecord{
			ID:       t.Get(i, "id"),
			Question: t.Get(i, "question"),
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("row %d: empty id", i+1)
		}

		side, err := models.ParseSide(t.Get(i, "side"))
		if err != nil {
			return nil, fmt.Errorf("row %d (market %s): %w", i+1, rec.ID, err)
		}
		rec.Side = side

		if rec.ClobTokenIDs, err = models.ParseTokenIDs(t.Get(i, "clobTokenIds")); err != nil {
			logger.Warn("Market %s: %v", rec.ID, err)
		}
		if rec.OutcomePrices, err = models.ParseOutcomePrices(t.Get(i, "outcomePrices")); err != nil {
			logger.Warn("Market %s: %v", rec.ID, err)
		}
		if rec.StartDate, err = models.ParseTime(t.Get(i, "startDate")); err != nil {
			logger.Warn("Market %s: startDate: %v", rec.ID, err)
		}
		if rec.EndDate, err = models.ParseTime(t.Get(i, "endDate")); err != nil {
			logger.Warn("Market %s: endDate: %v", rec.ID, err)
		}
		if rec.ClosedTime, err = models.ParseTime(t.Get(i, "closedTime")); err != nil {
			logger.Warn("Market %s: closedTime: %v", rec.ID, err)
		}
		if v := t.Get(i, "volume"); v != "" {
			if rec.Volume, err = strconv.ParseFloat(v, 64); err != nil {
				logger.Warn("Market %s: volume: %v", rec.ID, err)
			}
		}

		records = append(records, rec)
	}
	return records, nil
}

// DerivedColumns returns the appended output columns, most distant day
// first: probabilityNd … probability1d, correct_at_Nd, correct_at_1d.
func DerivedColumns(windowDays int) []string {
	cols := make([]string, 0, windowDays+2)
	for d := windowDays; d >= 1; d-- {
		cols = append(cols, fmt.Sprintf("probability%dd", d))
	}
	cols = append(cols,
		fmt.Sprintf("correct_at_%dd", windowDays),
		"correct_at_1d",
	)
	return cols
}

// AppendDerived adds the derived columns to the table, one value per
// enriched record. Records must align 1:1 with table rows.
func AppendDerived(t *table.Table, enriched []models.EnrichedRecord, windowDays int) error {
	if len(enriched) != t.Len() {
		return fmt.Errorf("have %d enriched records for %d rows", len(enriched), t.Len())
	}

	for d := windowDays; d >= 1; d-- {
		vals := make([]string, len(enriched))
		for i := range enriched {
			vals[i] = formatProb(enriched[i].Probability(d))
		}
		if err := t.AddColumn(fmt.Sprintf("probability%dd", d), vals); err != nil {
			return err
		}
	}

	far := make([]string, len(enriched))
	near := make([]string, len(enriched))
	for i := range enriched {
		far[i] = formatCorrect(enriched[i].CorrectAt7d)
		near[i] = formatCorrect(enriched[i].CorrectAt1d)
	}
	if err := t.AddColumn(fmt.Sprintf("correct_at_%dd", windowDays), far); err != nil {
		return err
	}
	return t.AddColumn("correct_at_1d", near)
}

func formatProb(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}

func formatCorrect(b *bool) string {
	if b == nil {
		return ""
	}
	if *b {
		return "TRUE"
	}
	return "FALSE"
}
