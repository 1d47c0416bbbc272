package models

import (
	"time"
)

// PricePoint is one (timestamp, price) sample from the CLOB price history.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
}

// EnrichedRecord is a MarketRecord plus the derived daily probabilities and
// correctness verdicts. Probabilities maps days-before-close (1..7) to the
// implied "Yes" probability at 00:00 UTC that day; absent keys are nulls.
type EnrichedRecord struct {
	MarketRecord

	Probabilities map[int]float64
	CorrectAt7d   *bool
	CorrectAt1d   *bool
	FetchErr      error
}

// Probability returns the implied Yes probability N days before close, or
// nil when no usable price was found for that day.
func (e *EnrichedRecord) Probability(daysBefore int) *float64 {
	p, ok := e.Probabilities[daysBefore]
	if !ok {
		return nil
	}
	return &p
}

// CorrectAt reports whether the market's implied prediction N days out
// matched the resolved outcome. Nil when the probability or the resolution
// is unknown; a record is never promoted to correct on partial data.
func (e *EnrichedRecord) CorrectAt(daysBefore int) *bool {
	p := e.Probability(daysBefore)
	yesWon := e.YesWon()
	if p == nil || yesWon == nil {
		return nil
	}
	correct := (*p > 0.5) == *yesWon
	return &correct
}

// SideStats aggregates correctness counts for one side label.
type SideStats struct {
	Markets   int
	Correct7d int
	Total7d   int
	Correct1d int
	Total1d   int
}

// RunReport summarizes one enrichment run for logging, storage, and
// notification.
type RunReport struct {
	RunID     string
	Command   string
	StartedAt time.Time
	Duration  time.Duration

	InputRows  int
	Duplicates int
	Markets    int
	FetchFails int

	With7d    int
	With1d    int
	Correct7d int
	Total7d   int
	Correct1d int
	Total1d   int

	BySide map[Side]*SideStats
}

// Observe folds one enriched record into the report tallies.
func (r *RunReport) Observe(rec *EnrichedRecord) {
	if r.BySide == nil {
		r.BySide = make(map[Side]*SideStats)
	}
	ss := r.BySide[rec.Side]
	if ss == nil {
		ss = &SideStats{}
		r.BySide[rec.Side] = ss
	}
	ss.Markets++

	if rec.FetchErr != nil {
		r.FetchFails++
	}
	if rec.Probability(7) != nil {
		r.With7d++
	}
	if rec.Probability(1) != nil {
		r.With1d++
	}
	if c := rec.CorrectAt7d; c != nil {
		r.Total7d++
		ss.Total7d++
		if *c {
			r.Correct7d++
			ss.Correct7d++
		}
	}
	if c := rec.CorrectAt1d; c != nil {
		r.Total1d++
		ss.Total1d++
		if *c {
			r.Correct1d++
			ss.Correct1d++
		}
	}
}
