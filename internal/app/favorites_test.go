package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"venue_finder/internal/app"
	"venue_finder/internal/domain"
	"venue_finder/internal/storage/memory"
)

func favStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	putVenue(s, "v1", "One", t0, 0, 0)
	putVenue(s, "v2", "Two", t0, 0, 0)
	if err := s.UpsertUser(context.Background(), domain.User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return s
}

func TestToggle_IsAnInvolution(t *testing.T) {
	ctx := context.Background()
	f := app.NewFavoriteService(favStore(t), testOptions())

	on, err := f.Toggle(ctx, "u1", "v1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !on.Favorited || len(on.Favorites) != 1 || on.Favorites[0] != "v1" {
		t.Fatalf("after first toggle: %+v", on)
	}

	off, err := f.Toggle(ctx, "u1", "v1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if off.Favorited || len(off.Favorites) != 0 {
		t.Fatalf("after second toggle: %+v", off)
	}
}

func TestToggle_ConcurrentNeverDuplicates(t *testing.T) {
	ctx := context.Background()
	s := favStore(t)
	f := app.NewFavoriteService(s, testOptions())

	const n = 21
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Toggle(ctx, "u1", "v2"); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	u, _ := s.GetUser(ctx, "u1")
	if len(u.Favorites) != 1 || u.Favorites[0] != "v2" {
		t.Fatalf("odd number of toggles should leave exactly one entry: %v", u.Favorites)
	}
}

func TestToggle_UnknownVenueOrUser(t *testing.T) {
	ctx := context.Background()
	s := favStore(t)
	f := app.NewFavoriteService(s, testOptions())

	if _, err := f.Toggle(ctx, "u1", "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown venue: %v", err)
	}
	if _, err := f.Toggle(ctx, "nobody", "v1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: %v", err)
	}
	if _, err := f.Toggle(ctx, "", "v1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty user: %v", err)
	}
	u, _ := s.GetUser(ctx, "u1")
	if len(u.Favorites) != 0 {
		t.Fatalf("favorites changed: %v", u.Favorites)
	}
}

func TestFavorites_ListsHeartedVenues(t *testing.T) {
	ctx := context.Background()
	f := app.NewFavoriteService(favStore(t), testOptions())

	empty, err := f.Favorites(ctx, "u1")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected none: %v %v", empty, err)
	}
	_, _ = f.Toggle(ctx, "u1", "v2")
	got, err := f.Favorites(ctx, "u1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 1 || got[0].ID != "v2" {
		t.Fatalf("favorites: %+v", got)
	}
}
