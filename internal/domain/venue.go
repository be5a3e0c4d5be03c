package domain

import (
	"sort"
	"strings"
	"time"
)

type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Address   string  `json:"address"`
}

type Venue struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Created     time.Time `json:"created"`
	Location    Location  `json:"location"`
	Photo       *string   `json:"photo,omitempty"`
	Author      string    `json:"author"`
}

// VenueInput is the writable part of a Venue as supplied by a caller.
// Coordinates are pointers so that a missing value is distinguishable from 0.
type VenueInput struct {
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags"`
	Location    LocationInput `json:"location"`
	Photo       *string       `json:"photo,omitempty"`
}

type LocationInput struct {
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Address   string   `json:"address" validate:"required"`
}

// Normalize trims free text and turns Tags into a set.
func (in VenueInput) Normalize() VenueInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Location.Address = strings.TrimSpace(in.Location.Address)
	in.Tags = NormalizeTags(in.Tags)
	if in.Photo != nil && strings.TrimSpace(*in.Photo) == "" {
		in.Photo = nil
	}
	return in
}

func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (v Venue) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Read models

// VenueDetail is a venue with its reviews joined at read time.
type VenueDetail struct {
	Venue
	Reviews []Review `json:"reviews"`
}

type VenuePage struct {
	Items []Venue `json:"items"`
	Page  int     `json:"page"`
	Pages int     `json:"pages"`
	Count int     `json:"count"`
	// RedirectTo is set when the requested page lies past the last one.
	RedirectTo int `json:"redirect_to,omitempty"`
}

func (p VenuePage) Redirected() bool { return p.RedirectTo > 0 }

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type TagListing struct {
	Tag    string     `json:"tag,omitempty"`
	Tags   []TagCount `json:"tags"`
	Venues []Venue    `json:"venues"`
}

type NearQuery struct {
	Longitude   float64
	Latitude    float64
	MaxDistance float64 // meters
}

// NearbyVenue is the projection returned by proximity search.
type NearbyVenue struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
	Photo       *string  `json:"photo,omitempty"`
	Slug        string   `json:"slug"`
	Distance    float64  `json:"distance"`
}

type SearchHit struct {
	Venue
	Score float64 `json:"score"`
}

type TopRatedQuery struct {
	MinReviews int
	Limit      int
}

type RatedVenue struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Photo         *string  `json:"photo,omitempty"`
	ReviewCount   int      `json:"review_count"`
	AverageRating float64  `json:"averageRating"`
	Reviews       []Review `json:"reviews"`
}
