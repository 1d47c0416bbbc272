package enrich

import (
	"time"

	"github.com/rcline/electioncal/internal/models"
)

// midnightUTC truncates t to 00:00:00 UTC on its calendar day.
func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WindowBounds returns the fetch window for a daily series covering `days`
// days before the reference date: from (ref - days - 1) at 00:00 UTC
// through (ref - 1) at 23:59:59 UTC. The extra leading day gives the
// nearest-prior fallback a sample to land on when the series is sparse.
func WindowBounds(ref time.Time, days int) (start, end time.Time) {
	start = midnightUTC(ref.AddDate(0, 0, -(days + 1)))
	end = midnightUTC(ref.AddDate(0, 0, -1)).Add(24*time.Hour - time.Second)
	return start, end
}

// AlignDaily maps a price series onto the target days. For each day N in
// [1, days] the target instant is (ref - N days) at 00:00 UTC; the matched
// price is the sample nearest the target within tolerance, else the latest
// sample at or before the target. Days with no usable sample, and days
// before the market existed, are absent from the result.
func AlignDaily(history []models.PricePoint, ref time.Time, days int, tolerance time.Duration, startDate *time.Time) map[int]float64 {
	if len(history) == 0 {
		return nil
	}

	out := make(map[int]float64, days)
	for daysBefore := days; daysBefore >= 1; daysBefore-- {
		target := midnightUTC(ref.AddDate(0, 0, -daysBefore))
		if startDate != nil && target.Before(*startDate) {
			continue
		}

		var best *models.PricePoint
		bestDiff := tolerance
		for i := range history {
			diff := absDuration(history[i].Timestamp.Sub(target))
			if diff < bestDiff {
				bestDiff = diff
				best = &history[i]
			}
		}

		// Sparse series: fall back to the most recent price before the
		// target rather than leaving the day empty.
		if best == nil {
			for i := range history {
				p := &history[i]
				if p.Timestamp.After(target) {
					continue
				}
				if best == nil || p.Timestamp.After(best.Timestamp) {
					best = p
				}
			}
		}

		if best != nil {
			out[daysBefore] = best.Price
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
