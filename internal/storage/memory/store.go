// Package memory is an in-process document store with the same contract as the
// MySQL store: a unique slug index and atomic favorite toggling.
package memory

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"

	"venue_finder/internal/domain"
)

var _ domain.VenueRepository = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	venues  map[string]domain.Venue
	slugs   map[string]string // slug -> venue id
	reviews []domain.Review
	users   map[string]domain.User
}

func New() *Store {
	return &Store{
		venues: map[string]domain.Venue{},
		slugs:  map[string]string{},
		users:  map[string]domain.User{},
	}
}

// ---- write paths ----

func (s *Store) InsertVenue(ctx context.Context, v domain.Venue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slugs[v.Slug]; ok {
		return domain.ErrDuplicateSlug
	}
	if _, ok := s.venues[v.ID]; ok {
		return domain.ErrConflict
	}
	s.venues[v.ID] = cloneVenue(v)
	s.slugs[v.Slug] = v.ID
	return nil
}

func (s *Store) UpdateVenue(ctx context.Context, v domain.Venue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.venues[v.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if owner, taken := s.slugs[v.Slug]; taken && owner != v.ID {
		return domain.ErrDuplicateSlug
	}
	delete(s.slugs, cur.Slug)
	s.slugs[v.Slug] = v.ID
	s.venues[v.ID] = cloneVenue(v)
	return nil
}

func (s *Store) InsertReview(ctx context.Context, r domain.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venues[r.VenueID]; !ok {
		return domain.ErrNotFound
	}
	s.reviews = append(s.reviews, r)
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Favorites = slices.Compact(slices.Sorted(slices.Values(u.Favorites)))
	if u.Favorites == nil {
		u.Favorites = []string{}
	}
	s.users[u.ID] = u
	return nil
}

// ToggleFavorite decides and mutates under one write lock, so concurrent toggles
// for the same user serialize and each observes the previous post-state.
func (s *Store) ToggleFavorite(ctx context.Context, userID, venueID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if i := slices.Index(u.Favorites, venueID); i >= 0 {
		u.Favorites = slices.Delete(slices.Clone(u.Favorites), i, i+1)
	} else {
		u.Favorites = append(slices.Clone(u.Favorites), venueID)
	}
	s.users[userID] = u
	return slices.Clone(u.Favorites), nil
}

// ---- read paths ----

func (s *Store) GetVenue(ctx context.Context, id string) (domain.Venue, error) {
	if err := ctx.Err(); err != nil {
		return domain.Venue{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	if !ok {
		return domain.Venue{}, domain.ErrNotFound
	}
	return cloneVenue(v), nil
}

func (s *Store) GetVenueBySlug(ctx context.Context, slug string) (domain.Venue, error) {
	if err := ctx.Err(); err != nil {
		return domain.Venue{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.slugs[slug]
	if !ok {
		return domain.Venue{}, domain.ErrNotFound
	}
	return cloneVenue(s.venues[id]), nil
}

func (s *Store) CountSlugs(ctx context.Context, base, excludeID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	re, err := regexp.Compile("(?i)" + domain.SlugPattern(base))
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for slug, id := range s.slugs {
		if id != excludeID && re.MatchString(slug) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountVenues(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.venues), nil
}

func (s *Store) ListVenues(ctx context.Context, skip, limit int) ([]domain.Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if skip < 0 || limit < 0 {
		return nil, &domain.ValidationError{Fields: map[string]string{"skip": "min"}}
	}
	all := s.sortedVenues(func(domain.Venue) bool { return true })
	if skip >= len(all) {
		return []domain.Venue{}, nil
	}
	end := len(all)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return all[skip:end], nil
}

func (s *Store) ListVenuesByIDs(ctx context.Context, ids []string) ([]domain.Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return s.sortedVenues(func(v domain.Venue) bool {
		_, ok := want[v.ID]
		return ok
	}), nil
}

func (s *Store) ListVenuesByTag(ctx context.Context, tag string) ([]domain.Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.sortedVenues(func(v domain.Venue) bool {
		if tag == "" {
			return len(v.Tags) > 0
		}
		return v.HasTag(tag)
	}), nil
}

func (s *Store) TagCounts(ctx context.Context) ([]domain.TagCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	counts := map[string]int{}
	for _, v := range s.venues {
		for _, t := range v.Tags {
			counts[t]++
		}
	}
	s.mu.RUnlock()

	out := make([]domain.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, domain.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

func (s *Store) Near(ctx context.Context, q domain.NearQuery) ([]domain.NearbyVenue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type hit struct {
		id string
		nv domain.NearbyVenue
	}
	var hits []hit
	s.mu.RLock()
	for _, v := range s.venues {
		d := domain.Haversine(q.Longitude, q.Latitude, v.Location.Longitude, v.Location.Latitude)
		if d > q.MaxDistance {
			continue
		}
		hits = append(hits, hit{id: v.ID, nv: domain.NearbyVenue{
			Name:        v.Name,
			Description: v.Description,
			Location:    v.Location,
			Photo:       v.Photo,
			Slug:        v.Slug,
			Distance:    d,
		}})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].nv.Distance != hits[j].nv.Distance {
			return hits[i].nv.Distance < hits[j].nv.Distance
		}
		return hits[i].id < hits[j].id
	})
	out := make([]domain.NearbyVenue, len(hits))
	for i, h := range hits {
		out[i] = h.nv
	}
	return out, nil
}

// Search scores a venue by how often the query terms occur in its name and
// description.
func (s *Store) Search(ctx context.Context, text string) ([]domain.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := slices.Compact(slices.Sorted(slices.Values(tokenize(text))))
	out := []domain.SearchHit{}
	if len(terms) == 0 {
		return out, nil
	}
	s.mu.RLock()
	for _, v := range s.venues {
		words := append(tokenize(v.Name), tokenize(v.Description)...)
		score := 0.0
		for _, w := range words {
			if _, ok := slices.BinarySearch(terms, w); ok {
				score++
			}
		}
		if score > 0 {
			out = append(out, domain.SearchHit{Venue: cloneVenue(v), Score: score})
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// TopRated joins reviews onto venues, drops venues under the review threshold,
// averages, ranks and limits.
func (s *Store) TopRated(ctx context.Context, q domain.TopRatedQuery) ([]domain.RatedVenue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	byVenue := domain.GroupReviews(s.reviews)
	out := []domain.RatedVenue{}
	for _, v := range s.venues {
		rs := byVenue[v.ID]
		if len(rs) == 0 || len(rs) < q.MinReviews {
			continue
		}
		sum := 0
		for _, r := range rs {
			sum += r.Rating
		}
		out = append(out, domain.RatedVenue{
			ID:            v.ID,
			Name:          v.Name,
			Slug:          v.Slug,
			Photo:         v.Photo,
			ReviewCount:   len(rs),
			AverageRating: float64(sum) / float64(len(rs)),
			Reviews:       slices.Clone(rs),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageRating != out[j].AverageRating {
			return out[i].AverageRating > out[j].AverageRating
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) ReviewsFor(ctx context.Context, venueIDs ...string) ([]domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Review{}
	for _, r := range s.reviews {
		if slices.Contains(venueIDs, r.VenueID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.Favorites = slices.Clone(u.Favorites)
	return u, nil
}

// ---- helpers ----

// sortedVenues returns matching venues newest first.
func (s *Store) sortedVenues(keep func(domain.Venue) bool) []domain.Venue {
	s.mu.RLock()
	out := make([]domain.Venue, 0, len(s.venues))
	for _, v := range s.venues {
		if keep(v) {
			out = append(out, cloneVenue(v))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func cloneVenue(v domain.Venue) domain.Venue {
	v.Tags = slices.Clone(v.Tags)
	if v.Photo != nil {
		p := *v.Photo
		v.Photo = &p
	}
	return v
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
