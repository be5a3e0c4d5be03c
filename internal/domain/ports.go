package domain

import "context"

type VenueRepository interface {
	// Write paths
	InsertVenue(ctx context.Context, v Venue) error // ErrDuplicateSlug on slug collision
	UpdateVenue(ctx context.Context, v Venue) error // ErrDuplicateSlug on slug collision
	InsertReview(ctx context.Context, r Review) error
	UpsertUser(ctx context.Context, u User) error
	// ToggleFavorite pulls venueID from the user's favorites when present and adds
	// it otherwise, in one atomic step. It returns the favorites after the change.
	ToggleFavorite(ctx context.Context, userID, venueID string) ([]string, error)

	// Read paths
	GetVenue(ctx context.Context, id string) (Venue, error)
	GetVenueBySlug(ctx context.Context, slug string) (Venue, error)
	CountSlugs(ctx context.Context, base, excludeID string) (int, error)
	CountVenues(ctx context.Context) (int, error)
	ListVenues(ctx context.Context, skip, limit int) ([]Venue, error)
	ListVenuesByIDs(ctx context.Context, ids []string) ([]Venue, error)
	ListVenuesByTag(ctx context.Context, tag string) ([]Venue, error)
	TagCounts(ctx context.Context) ([]TagCount, error)
	Near(ctx context.Context, q NearQuery) ([]NearbyVenue, error)
	Search(ctx context.Context, text string) ([]SearchHit, error)
	TopRated(ctx context.Context, q TopRatedQuery) ([]RatedVenue, error)
	ReviewsFor(ctx context.Context, venueIDs ...string) ([]Review, error)
	GetUser(ctx context.Context, id string) (User, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, keys ...string) error
}
