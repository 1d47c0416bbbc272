package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/rcline/electioncal/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "hello world", "hello world"},
		{"underscores", "market_id", "market\\_id"},
		{"dots and dashes", "2024-11-05 p=0.62", "2024\\-11\\-05 p\\=0\\.62"},
		{"parens", "34/40 (85.0%)", "34/40 \\(85\\.0%\\)"},
		{"all specials", "_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeMarkdownV2(tt.input); got != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	if got := ratio(34, 40); got != "34/40 (85.0%)" {
		t.Errorf("ratio = %q", got)
	}
	if got := ratio(0, 5); got != "0/5 (0.0%)" {
		t.Errorf("ratio = %q", got)
	}
}

func TestFormatReport(t *testing.T) {
	report := &models.RunReport{
		Command:    "enrich",
		StartedAt:  time.Date(2024, 11, 6, 9, 0, 0, 0, time.UTC),
		Duration:   95 * time.Second,
		Markets:    117,
		Duplicates: 3,
		FetchFails: 2,
		With7d:     110,
		With1d:     115,
		Correct7d:  88,
		Total7d:    110,
		Correct1d:  101,
		Total1d:    115,
		BySide: map[models.Side]*models.SideStats{
			models.SideDemocrat: {Markets: 60, Correct7d: 45, Total7d: 56},
		},
	}

	text := formatReport(report)

	for _, want := range []string{
		"*Run enrich complete*",
		"117 markets",
		"3 duplicate rows dropped",
		"fetch failures: 2",
		"88/110",
		"101/115",
		"*Side D*",
		"45/56",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report should contain %q:\n%s", want, text)
		}
	}

	// Unescaped MarkdownV2 specials break delivery; the only bare specials
	// allowed are the formatting asterisks and backslash escapes themselves.
	stripped := strings.NewReplacer("\\(", "", "\\)", "", "\\.", "", "\\-", "", "*", "").Replace(text)
	for _, ch := range []string{"(", ")"} {
		if strings.Contains(stripped, ch) {
			t.Errorf("unescaped %q in report:\n%s", ch, text)
		}
	}
}

func TestFormatReportSkipsEmptyTallies(t *testing.T) {
	report := &models.RunReport{
		Command:   "collate",
		StartedAt: time.Now(),
		Markets:   5,
	}

	text := formatReport(report)
	if strings.Contains(text, "Correct at") {
		t.Errorf("report without tallies should omit correctness lines:\n%s", text)
	}
	if strings.Contains(text, "Side") {
		t.Errorf("report without side stats should omit side sections:\n%s", text)
	}
}
