package domain

type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email" validate:"required,email"`
	Favorites []string `json:"favorites"`
}

func (u User) HasFavorite(venueID string) bool {
	for _, id := range u.Favorites {
		if id == venueID {
			return true
		}
	}
	return false
}

// ToggleResult is what a caller gets back after flipping a favorite.
type ToggleResult struct {
	UserID    string   `json:"user_id"`
	VenueID   string   `json:"venue_id"`
	Favorited bool     `json:"favorited"`
	Favorites []string `json:"favorites"`
}
