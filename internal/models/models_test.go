package models

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestParseSide(t *testing.T) {
	tests := []struct {
		input   string
		want    Side
		wantErr bool
	}{
		{"D", SideDemocrat, false},
		{"R", SideRepublican, false},
		{" d ", SideDemocrat, false},
		{"r", SideRepublican, false},
		{"", "", true},
		{"X", "", true},
		{"Democrat", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSide(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSide(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSide(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSideOpponent(t *testing.T) {
	if SideDemocrat.Opponent() != SideRepublican {
		t.Error("D opponent should be R")
	}
	if SideRepublican.Opponent() != SideDemocrat {
		t.Error("R opponent should be D")
	}
}

func TestMarketRecordValidate(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		record  MarketRecord
		wantErr bool
	}{
		{
			name: "valid record",
			record: MarketRecord{
				ID:      "501234",
				Side:    SideDemocrat,
				EndDate: timePtr(now),
			},
			wantErr: false,
		},
		{
			name:    "empty id",
			record:  MarketRecord{Side: SideDemocrat, EndDate: timePtr(now)},
			wantErr: true,
		},
		{
			name:    "missing side",
			record:  MarketRecord{ID: "501234", EndDate: timePtr(now)},
			wantErr: true,
		},
		{
			name:    "no close date at all",
			record:  MarketRecord{ID: "501234", Side: SideRepublican},
			wantErr: true,
		},
		{
			name: "negative volume",
			record: MarketRecord{
				ID:      "501234",
				Side:    SideDemocrat,
				EndDate: timePtr(now),
				Volume:  -1,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReferenceDate(t *testing.T) {
	early := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 11, 6, 15, 17, 41, 0, time.UTC)

	tests := []struct {
		name   string
		record MarketRecord
		want   *time.Time
	}{
		{"both set, closedTime earlier", MarketRecord{EndDate: &late, ClosedTime: &early}, &early},
		{"both set, endDate earlier", MarketRecord{EndDate: &early, ClosedTime: &late}, &early},
		{"only endDate", MarketRecord{EndDate: &late}, &late},
		{"only closedTime", MarketRecord{ClosedTime: &early}, &early},
		{"neither", MarketRecord{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.record.ReferenceDate()
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ReferenceDate() = %v, want %v", got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("ReferenceDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYesWon(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   *bool
	}{
		{"yes won", []float64{0.998, 0.002}, boolPtr(true)},
		{"no won", []float64{0.002, 0.998}, boolPtr(false)},
		{"exactly at threshold", []float64{0.99, 0.01}, boolPtr(true)},
		{"unresolved", []float64{0.6, 0.4}, nil},
		{"too few prices", []float64{1.0}, nil},
		{"no prices", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MarketRecord{OutcomePrices: tt.prices}
			got := r.YesWon()
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("YesWon() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("YesWon() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestParseTokenIDs(t *testing.T) {
	ids, err := ParseTokenIDs(`["7160622", "7160623"]`)
	if err != nil {
		t.Fatalf("ParseTokenIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "7160622" {
		t.Errorf("unexpected ids: %v", ids)
	}

	for _, empty := range []string{"", "[]", "  "} {
		ids, err := ParseTokenIDs(empty)
		if err != nil || ids != nil {
			t.Errorf("ParseTokenIDs(%q) = %v, %v; want nil, nil", empty, ids, err)
		}
	}

	if _, err := ParseTokenIDs("{not json"); err == nil {
		t.Error("expected error for malformed token ids")
	}
}

func TestParseOutcomePrices(t *testing.T) {
	prices, err := ParseOutcomePrices(`["0.998", "0.002"]`)
	if err != nil {
		t.Fatalf("ParseOutcomePrices: %v", err)
	}
	if len(prices) != 2 || prices[0] != 0.998 {
		t.Errorf("unexpected prices: %v", prices)
	}

	// Some dumps carry numeric arrays.
	prices, err = ParseOutcomePrices(`[0.25, 0.75]`)
	if err != nil {
		t.Fatalf("ParseOutcomePrices numeric: %v", err)
	}
	if len(prices) != 2 || prices[1] != 0.75 {
		t.Errorf("unexpected numeric prices: %v", prices)
	}

	if _, err := ParseOutcomePrices(`["abc"]`); err == nil {
		t.Error("expected error for non-numeric price")
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantNil bool
		wantErr bool
	}{
		{input: "2024-11-05T12:00:00Z", want: "2024-11-05T12:00:00Z"},
		{input: "2024-11-06 15:17:41+00", want: "2024-11-06T15:17:41Z"},
		{input: "2024-11-06 15:17:41+00:00", want: "2024-11-06T15:17:41Z"},
		{input: "2024-11-05", want: "2024-11-05T00:00:00Z"},
		{input: "", wantNil: true},
		{input: "  ", wantNil: true},
		{input: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseTime(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseTime(%q) = nil, want %s", tt.input, tt.want)
			}
			if got.Format(time.RFC3339) != tt.want {
				t.Errorf("ParseTime(%q) = %s, want %s", tt.input, got.Format(time.RFC3339), tt.want)
			}
		})
	}
}

func TestEnrichedRecordCorrectAt(t *testing.T) {
	yesWonPrices := []float64{0.998, 0.002}
	noWonPrices := []float64{0.002, 0.998}

	tests := []struct {
		name   string
		prices []float64
		probs  map[int]float64
		day    int
		want   *bool
	}{
		{"confident and right", yesWonPrices, map[int]float64{7: 0.62}, 7, boolPtr(true)},
		{"confident and wrong", noWonPrices, map[int]float64{7: 0.62}, 7, boolPtr(false)},
		{"doubtful and right", noWonPrices, map[int]float64{1: 0.31}, 1, boolPtr(true)},
		{"missing probability", yesWonPrices, nil, 7, nil},
		{"unresolved market", []float64{0.5, 0.5}, map[int]float64{7: 0.62}, 7, nil},
		{"exactly half is not a prediction of yes", yesWonPrices, map[int]float64{7: 0.5}, 7, boolPtr(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := EnrichedRecord{
				MarketRecord:  MarketRecord{OutcomePrices: tt.prices},
				Probabilities: tt.probs,
			}
			got := e.CorrectAt(tt.day)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("CorrectAt(%d) = %v, want %v", tt.day, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("CorrectAt(%d) = %v, want %v", tt.day, *got, *tt.want)
			}
		})
	}
}

func TestRunReportObserve(t *testing.T) {
	r := &RunReport{}

	correct := true
	rec := EnrichedRecord{
		MarketRecord:  MarketRecord{ID: "1", Side: SideDemocrat},
		Probabilities: map[int]float64{7: 0.62, 1: 0.9},
		CorrectAt7d:   &correct,
		CorrectAt1d:   &correct,
	}
	r.Observe(&rec)

	failed := EnrichedRecord{
		MarketRecord: MarketRecord{ID: "2", Side: SideRepublican},
		FetchErr:     errFake,
	}
	r.Observe(&failed)

	if r.With7d != 1 || r.With1d != 1 {
		t.Errorf("coverage: with7d=%d with1d=%d, want 1/1", r.With7d, r.With1d)
	}
	if r.Correct7d != 1 || r.Total7d != 1 {
		t.Errorf("correct7d=%d/%d, want 1/1", r.Correct7d, r.Total7d)
	}
	if r.FetchFails != 1 {
		t.Errorf("fetchFails=%d, want 1", r.FetchFails)
	}
	if r.BySide[SideDemocrat].Markets != 1 || r.BySide[SideRepublican].Markets != 1 {
		t.Error("per-side market counts wrong")
	}
}

var errFake = &fakeError{}

type fakeError struct{}

func (*fakeError) Error() string { return "fake" }

func boolPtr(b bool) *bool { return &b }
