package app_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"venue_finder/internal/app"
	"venue_finder/internal/domain"
	"venue_finder/internal/storage/memory"
)

// ---- fakes ----

// fakeCache keeps JSON like the real cache, so cached values never alias store data.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.store, k)
	}
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

// dupRepo rejects every venue write as a slug collision.
type dupRepo struct {
	*memory.Store
	writes int
}

func (r *dupRepo) InsertVenue(ctx context.Context, v domain.Venue) error {
	r.writes++
	return domain.ErrDuplicateSlug
}

// slowRepo blocks reads until the caller's deadline passes.
type slowRepo struct{ *memory.Store }

func (r slowRepo) CountVenues(ctx context.Context) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (r slowRepo) TagCounts(ctx context.Context) ([]domain.TagCount, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// gateRepo holds the first two slug counts until both have arrived, so two
// creators see the same count and race for the same candidate.
type gateRepo struct {
	*memory.Store
	mu    sync.Mutex
	calls int
	gate  sync.WaitGroup
}

func newGateRepo() *gateRepo {
	r := &gateRepo{Store: memory.New()}
	r.gate.Add(2)
	return r
}

func (r *gateRepo) CountSlugs(ctx context.Context, base, excludeID string) (int, error) {
	r.mu.Lock()
	n := r.calls
	r.calls++
	r.mu.Unlock()
	if n < 2 {
		r.gate.Done()
		r.gate.Wait()
	}
	return r.Store.CountSlugs(ctx, base, excludeID)
}

// foldRepo looks slugs up case-insensitively, like the MySQL collation.
type foldRepo struct{ *memory.Store }

func (r foldRepo) GetVenueBySlug(ctx context.Context, slug string) (domain.Venue, error) {
	return r.Store.GetVenueBySlug(ctx, strings.ToLower(slug))
}

// stuckReviews blocks review writes until the caller's deadline passes.
type stuckReviews struct{ *memory.Store }

func (r stuckReviews) InsertReview(ctx context.Context, rv domain.Review) error {
	<-ctx.Done()
	return ctx.Err()
}

// brokenRepo fails with an opaque driver error.
type brokenRepo struct{ *memory.Store }

func (r brokenRepo) Search(ctx context.Context, text string) ([]domain.SearchHit, error) {
	return nil, errBroken
}

type brokenErr struct{}

func (brokenErr) Error() string { return "connection reset" }

var errBroken = brokenErr{}

// ---- helpers ----

func ptr[T any](v T) *T { return &v }

func testOptions() app.Options {
	o := app.DefaultOptions()
	o.OpTimeout = 2 * time.Second
	return o
}

func input(name string, lng, lat float64, tags ...string) domain.VenueInput {
	return domain.VenueInput{
		Name:        name,
		Description: "A place called " + name,
		Tags:        tags,
		Location: domain.LocationInput{
			Longitude: ptr(lng),
			Latitude:  ptr(lat),
			Address:   "1 Main St",
		},
	}
}

// putVenue writes straight into the store with a fixed creation time.
func putVenue(s *memory.Store, id, name string, created time.Time, lng, lat float64, tags ...string) domain.Venue {
	v := domain.Venue{
		ID:       id,
		Name:     name,
		Slug:     domain.Slugify(name) + "-" + id,
		Tags:     domain.NormalizeTags(tags),
		Created:  created,
		Location: domain.Location{Longitude: lng, Latitude: lat, Address: "somewhere"},
		Author:   "author-1",
	}
	if err := s.InsertVenue(context.Background(), v); err != nil {
		panic(err)
	}
	return v
}

func putReviews(s *memory.Store, venueID string, ratings ...int) {
	for i, r := range ratings {
		err := s.InsertReview(context.Background(), domain.Review{
			ID:      venueID + "-r" + string(rune('a'+i)),
			VenueID: venueID,
			Author:  "reviewer",
			Rating:  r,
			Created: time.Now().UTC(),
		})
		if err != nil {
			panic(err)
		}
	}
}
