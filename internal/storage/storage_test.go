package storage

import (
	"testing"
	"time"

	"github.com/rcline/electioncal/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testWindow() (time.Time, time.Time) {
	start := time.Date(2024, 10, 28, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 11, 4, 23, 59, 59, 0, time.UTC)
	return start, end
}

func TestLoadSeriesMiss(t *testing.T) {
	s := newTestStorage(t)
	start, end := testWindow()

	points, hit, err := s.LoadSeries("tok", start, end)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if hit {
		t.Error("unfetched window should miss")
	}
	if points != nil {
		t.Errorf("miss should return nil points, got %v", points)
	}
}

func TestSaveAndLoadSeries(t *testing.T) {
	s := newTestStorage(t)
	start, end := testWindow()

	in := []models.PricePoint{
		{Timestamp: start.Add(12 * time.Hour), Price: 0.41},
		{Timestamp: start.Add(36 * time.Hour), Price: 0.44},
		{Timestamp: start.Add(60 * time.Hour), Price: 0.52},
	}
	if err := s.SaveSeries("tok", start, end, in); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}

	out, hit, err := s.LoadSeries("tok", start, end)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if !hit {
		t.Fatal("saved window should hit")
	}
	if len(out) != len(in) {
		t.Fatalf("got %d points, want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Timestamp.Equal(in[i].Timestamp) || out[i].Price != in[i].Price {
			t.Errorf("point %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestSaveSeriesEmptyStillHits(t *testing.T) {
	s := newTestStorage(t)
	start, end := testWindow()

	if err := s.SaveSeries("tok", start, end, nil); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}

	points, hit, err := s.LoadSeries("tok", start, end)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if !hit {
		t.Error("fetched-but-empty window should still hit")
	}
	if len(points) != 0 {
		t.Errorf("got %d points, want 0", len(points))
	}
}

func TestSaveSeriesReplacesStalePoints(t *testing.T) {
	s := newTestStorage(t)
	start, end := testWindow()

	first := []models.PricePoint{
		{Timestamp: start.Add(time.Hour), Price: 0.3},
		{Timestamp: start.Add(2 * time.Hour), Price: 0.35},
	}
	if err := s.SaveSeries("tok", start, end, first); err != nil {
		t.Fatal(err)
	}

	second := []models.PricePoint{
		{Timestamp: start.Add(3 * time.Hour), Price: 0.6},
	}
	if err := s.SaveSeries("tok", start, end, second); err != nil {
		t.Fatal(err)
	}

	out, _, err := s.LoadSeries("tok", start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Price != 0.6 {
		t.Errorf("resave should replace the series, got %+v", out)
	}
}

func TestLoadSeriesWindowsAreDistinct(t *testing.T) {
	s := newTestStorage(t)
	start, end := testWindow()

	if err := s.SaveSeries("tok", start, end, nil); err != nil {
		t.Fatal(err)
	}

	other := start.AddDate(0, 0, -1)
	if _, hit, err := s.LoadSeries("tok", other, end); err != nil {
		t.Fatal(err)
	} else if hit {
		t.Error("different window bounds must not hit")
	}
	if _, hit, err := s.LoadSeries("other-tok", start, end); err != nil {
		t.Fatal(err)
	} else if hit {
		t.Error("different token must not hit")
	}
}

func TestRecordRunRequiresID(t *testing.T) {
	s := newTestStorage(t)
	if err := s.RecordRun(&models.RunReport{Command: "enrich"}); err == nil {
		t.Fatal("expected error for report without run id")
	}
}

func TestRecordRunAndRecentRuns(t *testing.T) {
	s := newTestStorage(t)

	base := time.Date(2024, 11, 6, 9, 0, 0, 0, time.UTC)
	reports := []models.RunReport{
		{
			RunID: "run-1", Command: "enrich", StartedAt: base,
			Duration: 90 * time.Second, InputRows: 120, Duplicates: 3,
			Markets: 117, FetchFails: 2,
			With7d: 110, With1d: 115,
			Correct7d: 88, Total7d: 110, Correct1d: 101, Total1d: 115,
		},
		{
			RunID: "run-2", Command: "collate", StartedAt: base.Add(time.Hour),
			Duration: 30 * time.Second, Markets: 34,
		},
	}
	for i := range reports {
		if err := s.RecordRun(&reports[i]); err != nil {
			t.Fatalf("RecordRun %s: %v", reports[i].RunID, err)
		}
	}

	runs, err := s.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run-2" {
		t.Errorf("newest run first, got %s", runs[0].RunID)
	}

	got := runs[1]
	if got.Command != "enrich" || !got.StartedAt.Equal(base) || got.Duration != 90*time.Second {
		t.Errorf("run-1 header = %s/%v/%v", got.Command, got.StartedAt, got.Duration)
	}
	if got.InputRows != 120 || got.Duplicates != 3 || got.FetchFails != 2 {
		t.Errorf("run-1 counts = %d/%d/%d", got.InputRows, got.Duplicates, got.FetchFails)
	}
	if got.Correct7d != 88 || got.Total7d != 110 || got.Correct1d != 101 || got.Total1d != 115 {
		t.Errorf("run-1 tallies = %d/%d %d/%d", got.Correct7d, got.Total7d, got.Correct1d, got.Total1d)
	}
}

func TestRecentRunsLimit(t *testing.T) {
	s := newTestStorage(t)
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		err := s.RecordRun(&models.RunReport{
			RunID:     string(rune('a' + i)),
			Command:   "enrich",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.RecentRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "e" || runs[1].RunID != "d" {
		t.Errorf("got %s,%s, want e,d", runs[0].RunID, runs[1].RunID)
	}
}
