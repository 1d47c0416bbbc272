package fetch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rcline/electioncal/internal/logger"
	"github.com/rcline/electioncal/internal/polymarket"
)

// EventGetter is the slice of the Polymarket client the event resolver
// needs.
type EventGetter interface {
	EventBySlug(ctx context.Context, slug string) (*polymarket.GammaEvent, error)
}

// ReadSlugList reads the hand-curated event list, one URL or slug per line.
// Blank lines and #-comments are ignored.
func ReadSlugList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open slug list: %w", err)
	}
	defer f.Close()

	var slugs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		slugs = append(slugs, polymarket.SlugFromURL(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read slug list: %w", err)
	}
	if len(slugs) == 0 {
		return nil, fmt.Errorf("%s: no event slugs found", path)
	}
	return slugs, nil
}

// ResolveEvents looks up each event and identifies its D and R markets. A
// failed or empty lookup skips that event with a diagnostic; the remaining
// events still resolve.
func ResolveEvents(ctx context.Context, client EventGetter, slugs []string) ([]polymarket.EventPair, error) {
	pairs := make([]polymarket.EventPair, 0, len(slugs))

	for _, slug := range slugs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev, err := client.EventBySlug(ctx, slug)
		if err != nil {
			logger.Warn("Failed to fetch event %s: %v", slug, err)
			continue
		}
		if ev == nil {
			logger.Warn("Event %s not found", slug)
			continue
		}

		d, r := polymarket.SelectSides(ev)
		pair := polymarket.EventPair{
			Name:       polymarket.EventName(slug),
			EventSlug:  slug,
			EventTitle: ev.Title,
			DMarket:    d,
			RMarket:    r,
		}
		if d == nil {
			logger.Warn("%s: no Democrat market found", pair.Name)
		}
		if r == nil {
			logger.Warn("%s: no Republican market found", pair.Name)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// WritePairs writes the resolved pairs as indented JSON, replacing any
// existing file.
func WritePairs(path string, pairs []polymarket.EventPair) error {
	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pairs: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
