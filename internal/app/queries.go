package app

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"venue_finder/internal/domain"
)

const (
	keyTags     = "tags:facets"
	keyTopRated = "venues:top"
)

// slugKey is case-folded because slug lookups in the store ignore case.
func slugKey(slug string) string { return "venue:slug:" + strings.ToLower(slug) }

type QueryService struct {
	repo  domain.VenueRepository
	cache domain.Cache
	opts  Options
}

func NewQueryService(r domain.VenueRepository, c domain.Cache, opts Options) *QueryService {
	return &QueryService{repo: r, cache: c, opts: opts}
}

// ListVenues returns one page of venues, newest first. A page past the end
// comes back with RedirectTo set instead of items.
func (s *QueryService) ListVenues(ctx context.Context, page int) (domain.VenuePage, error) {
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()

	if page < 1 {
		page = 1
	}
	limit := s.opts.PageSize
	var (
		items []domain.Venue
		count int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = s.repo.ListVenues(gctx, domain.Skip(page, limit), limit)
		return err
	})
	g.Go(func() (err error) {
		count, err = s.repo.CountVenues(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.VenuePage{}, classify("list_venues", err)
	}
	return domain.NewPage(items, page, limit, count), nil
}

// GetBySlug returns a venue with its reviews.
func (s *QueryService) GetBySlug(ctx context.Context, slug string) (domain.VenueDetail, error) {
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()

	var out domain.VenueDetail
	if s.cacheGet(ctx, slugKey(slug), &out) {
		return out, nil
	}
	v, err := s.repo.GetVenueBySlug(ctx, slug)
	if err != nil {
		return domain.VenueDetail{}, classify("get_venue_by_slug", err)
	}
	rs, err := s.repo.ReviewsFor(ctx, v.ID)
	if err != nil {
		return domain.VenueDetail{}, classify("reviews_for", err)
	}
	if rs == nil {
		rs = []domain.Review{}
	}
	out = domain.VenueDetail{Venue: v, Reviews: rs}
	s.cacheSet(ctx, slugKey(slug), out)
	return out, nil
}

// Tags returns every tag with the number of venues carrying it, most used first.
func (s *QueryService) Tags(ctx context.Context) ([]domain.TagCount, error) {
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()
	return s.tags(ctx)
}

func (s *QueryService) tags(ctx context.Context) ([]domain.TagCount, error) {
	var out []domain.TagCount
	if s.cacheGet(ctx, keyTags, &out) {
		return out, nil
	}
	out, err := s.repo.TagCounts(ctx)
	if err != nil {
		return nil, classify("tag_counts", err)
	}
	if out == nil {
		out = []domain.TagCount{}
	}
	s.cacheSet(ctx, keyTags, out)
	return out, nil
}

// VenuesByTag loads the facet list and the venues for tag concurrently.
// An empty tag selects every venue with at least one tag.
func (s *QueryService) VenuesByTag(ctx context.Context, tag string) (domain.TagListing, error) {
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()

	tag = strings.TrimSpace(tag)
	out := domain.TagListing{Tag: tag}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Tags, err = s.tags(gctx)
		return err
	})
	g.Go(func() error {
		vs, err := s.repo.ListVenuesByTag(gctx, tag)
		if err != nil {
			return classify("list_venues_by_tag", err)
		}
		out.Venues = vs
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.TagListing{}, err
	}
	if out.Venues == nil {
		out.Venues = []domain.Venue{}
	}
	return out, nil
}

// Near lists venues within the configured radius of (lng, lat), nearest first.
func (s *QueryService) Near(ctx context.Context, lng, lat float64) ([]domain.NearbyVenue, error) {
	fields := map[string]string{}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		fields["lng"] = "longitude"
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		fields["lat"] = "latitude"
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()
	out, err := s.repo.Near(ctx, domain.NearQuery{Longitude: lng, Latitude: lat, MaxDistance: s.opts.MaxDistanceM})
	if err != nil {
		return nil, classify("near", err)
	}
	if out == nil {
		out = []domain.NearbyVenue{}
	}
	return out, nil
}

// Search ranks venues by text relevance over name and description.
func (s *QueryService) Search(ctx context.Context, q string) ([]domain.SearchHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.SearchHit{}, nil
	}
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()
	out, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, classify("search", err)
	}
	if out == nil {
		out = []domain.SearchHit{}
	}
	return out, nil
}

// TopRated returns the best average ratings among venues with enough reviews.
func (s *QueryService) TopRated(ctx context.Context) ([]domain.RatedVenue, error) {
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()

	var out []domain.RatedVenue
	if s.cacheGet(ctx, keyTopRated, &out) {
		return out, nil
	}
	out, err := s.repo.TopRated(ctx, domain.TopRatedQuery{MinReviews: s.opts.TopMinReviews, Limit: s.opts.TopLimit})
	if err != nil {
		return nil, classify("top_rated", err)
	}
	if out == nil {
		out = []domain.RatedVenue{}
	}
	s.cacheSet(ctx, keyTopRated, out)
	return out, nil
}

// cache helpers: a nil or failing cache only costs a store round trip.

func (s *QueryService) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	return ok
}

func (s *QueryService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v, s.opts.ttlSeconds()); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}
