package app

import (
	"context"
	"slices"

	"venue_finder/internal/domain"
)

type FavoriteService struct {
	repo domain.VenueRepository
	opts Options
}

func NewFavoriteService(r domain.VenueRepository, opts Options) *FavoriteService {
	return &FavoriteService{repo: r, opts: opts}
}

// Toggle flips venueID in the user's favorites. The decision and the write
// happen in the store as one step, so concurrent toggles never duplicate ids.
func (s *FavoriteService) Toggle(ctx context.Context, userID, venueID string) (domain.ToggleResult, error) {
	if userID == "" {
		return domain.ToggleResult{}, &domain.ValidationError{Fields: map[string]string{"user": "required"}}
	}
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()

	if _, err := s.repo.GetVenue(ctx, venueID); err != nil {
		return domain.ToggleResult{}, classify("get_venue", err)
	}
	favs, err := s.repo.ToggleFavorite(ctx, userID, venueID)
	if err != nil {
		return domain.ToggleResult{}, classify("toggle_favorite", err)
	}
	if favs == nil {
		favs = []string{}
	}
	return domain.ToggleResult{
		UserID:    userID,
		VenueID:   venueID,
		Favorited: slices.Contains(favs, venueID),
		Favorites: favs,
	}, nil
}

// Favorites lists the venues the user has hearted.
func (s *FavoriteService) Favorites(ctx context.Context, userID string) ([]domain.Venue, error) {
	ctx, cancel := s.opts.withDeadline(ctx)
	defer cancel()

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, classify("get_user", err)
	}
	if len(u.Favorites) == 0 {
		return []domain.Venue{}, nil
	}
	vs, err := s.repo.ListVenuesByIDs(ctx, u.Favorites)
	if err != nil {
		return nil, classify("list_venues_by_ids", err)
	}
	return vs, nil
}
