package app

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"venue_finder/internal/domain"
)

// Seed fixture records. Locations follow GeoJSON: coordinates are [lng, lat].

type SeedFile struct {
	Users  []SeedUser  `json:"users"`
	Venues []SeedVenue `json:"venues"`
}

type SeedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type SeedVenue struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Tags        []string     `json:"tags"`
	Location    SeedLocation `json:"location"`
	Photo       string       `json:"photo"`
	Author      string       `json:"author"`
	Reviews     []SeedReview `json:"reviews"`
}

type SeedLocation struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address"`
}

type SeedReview struct {
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

func mapUser(u SeedUser) domain.User {
	return domain.User{
		ID:        strings.TrimSpace(u.ID),
		Email:     strings.ToLower(strings.TrimSpace(u.Email)),
		Favorites: []string{},
	}
}

// mapVenueInput leaves coordinates nil when the fixture does not carry a full
// pair, so validation reports them as missing.
func mapVenueInput(sv SeedVenue) domain.VenueInput {
	in := domain.VenueInput{
		Name:        sv.Name,
		Description: sv.Description,
		Tags:        sv.Tags,
		Location:    domain.LocationInput{Address: sv.Location.Address},
	}
	if len(sv.Location.Coordinates) == 2 {
		lng, lat := sv.Location.Coordinates[0], sv.Location.Coordinates[1]
		in.Location.Longitude = &lng
		in.Location.Latitude = &lat
	}
	if p := strings.TrimSpace(sv.Photo); p != "" {
		in.Photo = &p
	}
	return in
}

func mapReview(venueID string, r SeedReview, created time.Time) domain.Review {
	return domain.Review{
		ID:      uuid.NewString(),
		VenueID: venueID,
		Author:  strings.TrimSpace(r.Author),
		Rating:  r.Rating,
		Text:    strings.TrimSpace(r.Text),
		Created: created.UTC(),
	}
}
