// Package models defines the core domain entities: market records, price
// points, and enriched rows.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Side identifies which political party a market's "Yes" outcome stands for.
type Side string

const (
	SideDemocrat   Side = "D"
	SideRepublican Side = "R"
)

// ParseSide parses a side label from a labeled input file.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D":
		return SideDemocrat, nil
	case "R":
		return SideRepublican, nil
	}
	return "", fmt.Errorf("invalid side label %q (want D or R)", s)
}

// Opponent returns the opposite side.
func (s Side) Opponent() Side {
	if s == SideDemocrat {
		return SideRepublican
	}
	return SideDemocrat
}

// MarketRecord is the typed view of one labeled input row. Passthrough
// columns stay in the source table; only the fields the pipeline computes
// with are parsed here.
type MarketRecord struct {
	ID            string
	Question      string
	Side          Side
	ClobTokenIDs  []string
	OutcomePrices []float64
	Volume        float64
	StartDate     *time.Time
	EndDate       *time.Time
	ClosedTime    *time.Time
}

// Validate checks the constraints the pipeline depends on.
func (r *MarketRecord) Validate() error {
	if r.ID == "" {
		return errors.New("market id must not be empty")
	}
	if r.Side != SideDemocrat && r.Side != SideRepublican {
		return fmt.Errorf("market %s: side must be D or R", r.ID)
	}
	if r.Volume < 0 {
		return fmt.Errorf("market %s: volume must not be negative", r.ID)
	}
	if r.ReferenceDate() == nil {
		return fmt.Errorf("market %s: neither closedTime nor endDate is set", r.ID)
	}
	return nil
}

// ReferenceDate returns the earlier of closedTime and endDate, or whichever
// is present. Price windows anchor on this date.
func (r *MarketRecord) ReferenceDate() *time.Time {
	switch {
	case r.EndDate == nil:
		return r.ClosedTime
	case r.ClosedTime == nil:
		return r.EndDate
	case r.ClosedTime.Before(*r.EndDate):
		return r.ClosedTime
	default:
		return r.EndDate
	}
}

// PrimaryToken returns the first CLOB token id (the "Yes" outcome token),
// or "" when none is known.
func (r *MarketRecord) PrimaryToken() string {
	if len(r.ClobTokenIDs) == 0 {
		return ""
	}
	return r.ClobTokenIDs[0]
}

// YesWon reports whether the "Yes" outcome resolved as the winner, judged
// from the settled outcome prices. Nil when the market is not definitively
// resolved.
func (r *MarketRecord) YesWon() *bool {
	if len(r.OutcomePrices) < 2 {
		return nil
	}
	var won bool
	switch {
	case r.OutcomePrices[0] >= 0.99:
		won = true
	case r.OutcomePrices[1] >= 0.99:
		won = false
	default:
		return nil
	}
	return &won
}

// ParseTokenIDs decodes a clobTokenIds cell, which the Gamma API encodes as
// a JSON string array inside the JSON payload.
func ParseTokenIDs(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to parse token ids: %w", err)
	}
	return ids, nil
}

// ParseOutcomePrices decodes an outcomePrices cell. The API stores the
// prices as a JSON array of strings, e.g. "[\"0.998\", \"0.002\"]".
func ParseOutcomePrices(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		// Some dumps carry plain numeric arrays instead.
		var nums []float64
		if err2 := json.Unmarshal([]byte(raw), &nums); err2 == nil {
			return nums, nil
		}
		return nil, fmt.Errorf("failed to parse outcome prices: %w", err)
	}
	prices := make([]float64, 0, len(strs))
	for _, s := range strs {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse outcome price %q: %w", s, err)
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// timeLayouts covers the datetime formats seen in Gamma payloads and CSV
// dumps, including the truncated "+00" offset form.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a market timestamp cell into UTC. Empty cells yield nil
// without error.
func ParseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", s)
}
