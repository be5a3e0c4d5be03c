package app

import (
	"context"
	"fmt"
	"time"

	"venue_finder/internal/domain"
)

// SeedService bulk-loads fixture records through the same validation and slug
// allocation as interactive writes.
type SeedService struct {
	repo   domain.VenueRepository
	venues *VenueService
	now    func() time.Time
}

func NewSeedService(r domain.VenueRepository, venues *VenueService) *SeedService {
	return &SeedService{repo: r, venues: venues, now: time.Now}
}

func (s *SeedService) SeedUser(ctx context.Context, su SeedUser) error {
	u := mapUser(su)
	if u.ID == "" {
		return &domain.ValidationError{Fields: map[string]string{"id": "required"}}
	}
	if err := domain.ValidateUser(u); err != nil {
		return err
	}
	return classify("upsert_user", s.repo.UpsertUser(ctx, u))
}

// SeedVenue creates the venue, then attaches its reviews. Invalid reviews are
// skipped and counted; the venue itself is kept.
func (s *SeedService) SeedVenue(ctx context.Context, sv SeedVenue) (domain.Venue, int, error) {
	v, err := s.venues.Create(ctx, sv.Author, mapVenueInput(sv))
	if err != nil {
		return domain.Venue{}, 0, fmt.Errorf("venue %q: %w", sv.Name, err)
	}
	ctx, cancel := s.venues.opts.withDeadline(ctx)
	defer cancel()

	skipped := 0
	for _, sr := range sv.Reviews {
		r := mapReview(v.ID, sr, s.now())
		if r.Author == "" || domain.ValidateReview(r) != nil {
			skipped++
			continue
		}
		if err := s.repo.InsertReview(ctx, r); err != nil {
			return v, skipped, fmt.Errorf("review for %q: %w", v.Slug, classify("insert_review", err))
		}
	}
	if len(sv.Reviews) > 0 {
		s.venues.invalidate(ctx, v.Slug)
	}
	return v, skipped, nil
}
