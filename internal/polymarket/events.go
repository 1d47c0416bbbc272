package polymarket

import (
	"strings"
)

// EventPair is one event with its two complementary party markets, as
// written by the events step and consumed by collate. Pairing is curated by
// hand upstream (the slug list); this struct only records the result.
type EventPair struct {
	Name       string       `json:"name"`
	EventSlug  string       `json:"event_slug"`
	EventTitle string       `json:"event_title"`
	DMarket    *GammaMarket `json:"d_market"`
	RMarket    *GammaMarket `json:"r_market"`
}

// Complete reports whether both sides of the pair were found.
func (p *EventPair) Complete() bool {
	return p.DMarket != nil && p.RMarket != nil
}

// SelectSides picks the Democrat and Republican markets of an event by slug
// substring. Either result may be nil when the event lacks that market.
func SelectSides(ev *GammaEvent) (d, r *GammaMarket) {
	for i := range ev.Markets {
		m := &ev.Markets[i]
		slug := strings.ToLower(m.Slug)
		switch {
		case strings.Contains(slug, "democrat"):
			d = m
		case strings.Contains(slug, "republican"):
			r = m
		}
	}
	return d, r
}

// EventName derives a human-readable event name from its slug, e.g.
// "new-mexico-us-senate-election-winner" becomes "New Mexico".
func EventName(slug string) string {
	name := strings.TrimSuffix(slug, "-us-senate-election-winner")
	words := strings.Split(name, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SlugFromURL extracts an event slug from a full Polymarket event URL. A
// bare slug passes through unchanged.
func SlugFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "/event/"); i >= 0 {
		raw = raw[i+len("/event/"):]
	}
	return strings.TrimSuffix(raw, "/")
}
