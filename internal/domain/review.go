package domain

import "time"

type Review struct {
	ID      string    `json:"id"`
	VenueID string    `json:"venue"`
	Author  string    `json:"author"`
	Rating  int       `json:"rating" validate:"min=1,max=5"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
}

// GroupReviews indexes reviews by venue id, preserving input order.
func GroupReviews(rs []Review) map[string][]Review {
	out := make(map[string][]Review)
	for _, r := range rs {
		out[r.VenueID] = append(out[r.VenueID], r)
	}
	return out
}
