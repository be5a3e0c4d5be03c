package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"venue_finder/internal/adapters/observability"
	"venue_finder/internal/domain"
)

type VenueService struct {
	repo  domain.VenueRepository
	cache domain.Cache
	opts  Options
	now   func() time.Time
}

func NewVenueService(r domain.VenueRepository, c domain.Cache, opts Options) *VenueService {
	return &VenueService{repo: r, cache: c, opts: opts, now: time.Now}
}

// Create stores a new venue owned by author under a freshly allocated slug.
func (s *VenueService) Create(ctx context.Context, author string, in domain.VenueInput) (domain.Venue, error) {
	in = in.Normalize()
	if err := domain.ValidateVenue(in, author); err != nil {
		return domain.Venue{}, err
	}

	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()

	v := domain.Venue{
		ID:      uuid.NewString(),
		Created: s.now().UTC(),
		Author:  author,
	}
	apply(&v, in)
	if err := s.writeWithSlug(ctx, &v, "", s.repo.InsertVenue); err != nil {
		return domain.Venue{}, err
	}
	s.invalidate(ctx, v.Slug)
	log.Info().Str("id", v.ID).Str("slug", v.Slug).Msg("venue created")
	return v, nil
}

// Update rewrites the editable fields of venue id. Only its author may do so.
// The slug is recomputed only when the new name folds to a different base; a
// change in case or punctuation keeps the current slug.
func (s *VenueService) Update(ctx context.Context, actor, id string, in domain.VenueInput) (domain.Venue, error) {
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()

	cur, err := s.owned(ctx, actor, id)
	if err != nil {
		return domain.Venue{}, err
	}
	in = in.Normalize()
	if err := domain.ValidateVenue(in, cur.Author); err != nil {
		return domain.Venue{}, err
	}

	next := cur
	apply(&next, in)
	if domain.Slugify(next.Name) != domain.Slugify(cur.Name) {
		err = s.writeWithSlug(ctx, &next, cur.ID, s.repo.UpdateVenue)
	} else {
		err = classify("update_venue", s.repo.UpdateVenue(ctx, next))
	}
	if err != nil {
		return domain.Venue{}, err
	}
	s.invalidate(ctx, cur.Slug, next.Slug)
	return next, nil
}

// GetForEdit returns venue id if actor is its author.
func (s *VenueService) GetForEdit(ctx context.Context, actor, id string) (domain.Venue, error) {
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()
	return s.owned(ctx, actor, id)
}

func (s *VenueService) owned(ctx context.Context, actor, id string) (domain.Venue, error) {
	v, err := s.repo.GetVenue(ctx, id)
	if err != nil {
		return domain.Venue{}, classify("get_venue", err)
	}
	if actor == "" || v.Author != actor {
		return domain.Venue{}, domain.ErrForbidden
	}
	return v, nil
}

// writeWithSlug derives the slug from v.Name, then writes. The unique index is
// the arbiter: when a concurrent writer takes the candidate first, the count is
// redone. A recount that did not move past the rejected candidate is bumped by one.
func (s *VenueService) writeWithSlug(ctx context.Context, v *domain.Venue, excludeID string,
	write func(context.Context, domain.Venue) error) error {
	base := domain.Slugify(v.Name)
	attempts := max(s.opts.SlugMaxRetries, 1)
	last := -1
	for attempt := 0; attempt < attempts; attempt++ {
		n, err := s.repo.CountSlugs(ctx, base, excludeID)
		if err != nil {
			return classify("count_slugs", err)
		}
		last = max(n, last+1)
		v.Slug = domain.NextSlug(base, last)
		err = write(ctx, *v)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateSlug) {
			return classify("write_venue", err)
		}
		observability.SlugRetries.Inc()
		log.Debug().Str("slug", v.Slug).Int("attempt", attempt+1).Msg("slug taken, retrying")
	}
	return fmt.Errorf("%w: no free slug for %q after %d attempts", domain.ErrConflict, base, attempts)
}

func (s *VenueService) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	keys := []string{keyTags, keyTopRated}
	for _, sl := range slugs {
		keys = append(keys, slugKey(sl))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

func apply(v *domain.Venue, in domain.VenueInput) {
	v.Name = in.Name
	v.Description = in.Description
	v.Tags = in.Tags
	v.Photo = in.Photo
	v.Location = domain.Location{
		Longitude: *in.Location.Longitude,
		Latitude:  *in.Location.Latitude,
		Address:   in.Location.Address,
	}
}
