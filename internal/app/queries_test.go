package app_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"venue_finder/internal/app"
	"venue_finder/internal/domain"
	"venue_finder/internal/storage/memory"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func seeded(n int) *memory.Store {
	s := memory.New()
	for i := 0; i < n; i++ {
		putVenue(s, fmt.Sprintf("v%02d", i), fmt.Sprintf("Venue %d", i), t0.Add(time.Duration(i)*time.Hour), 0, 0)
	}
	return s
}

func TestListVenues_Pages(t *testing.T) {
	q := app.NewQueryService(seeded(13), nil, testOptions())
	ctx := context.Background()

	p1, err := q.ListVenues(ctx, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p1.Count != 13 || p1.Pages != 3 || p1.Page != 1 || len(p1.Items) != 6 {
		t.Fatalf("page 1: %+v", p1)
	}
	if p1.Items[0].ID != "v12" {
		t.Fatalf("expected newest first, got %s", p1.Items[0].ID)
	}

	p3, _ := q.ListVenues(ctx, 3)
	if len(p3.Items) != 1 || p3.Items[0].ID != "v00" || p3.Redirected() {
		t.Fatalf("page 3: %+v", p3)
	}
}

func TestListVenues_PastLastPageRedirects(t *testing.T) {
	q := app.NewQueryService(seeded(13), nil, testOptions())
	p, err := q.ListVenues(context.Background(), 5)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p.RedirectTo != 3 || len(p.Items) != 0 {
		t.Fatalf("expected redirect to 3, got %+v", p)
	}
}

func TestListVenues_HugePageRedirectsToLast(t *testing.T) {
	q := app.NewQueryService(seeded(13), nil, testOptions())
	p, err := q.ListVenues(context.Background(), math.MaxInt)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p.RedirectTo != 3 || len(p.Items) != 0 {
		t.Fatalf("expected redirect to 3, got %+v", p)
	}
}

func TestListVenues_EmptyCollection(t *testing.T) {
	q := app.NewQueryService(memory.New(), nil, testOptions())
	ctx := context.Background()

	p, err := q.ListVenues(ctx, 0)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p.Page != 1 || p.Pages != 0 || p.Count != 0 || p.Redirected() {
		t.Fatalf("page 1 of nothing: %+v", p)
	}
	p2, _ := q.ListVenues(ctx, 2)
	if p2.RedirectTo != 1 {
		t.Fatalf("page 2 of nothing should redirect to 1: %+v", p2)
	}
}

func TestListVenues_Timeout(t *testing.T) {
	opts := testOptions()
	opts.OpTimeout = 20 * time.Millisecond
	q := app.NewQueryService(slowRepo{seeded(2)}, nil, opts)

	_, err := q.ListVenues(context.Background(), 1)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		t.Fatalf("timeout must stay distinct: %v", err)
	}
}

func TestTags_CountsAndOrder(t *testing.T) {
	s := memory.New()
	putVenue(s, "a", "A", t0, 0, 0, "wifi", "beer")
	putVenue(s, "b", "B", t0, 0, 0, "wifi", "coffee")
	putVenue(s, "c", "C", t0, 0, 0, "wifi", "beer", "dogs")
	putVenue(s, "d", "D", t0, 0, 0)
	cache := &fakeCache{}
	q := app.NewQueryService(s, cache, testOptions())

	tags, err := q.Tags(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := "[{wifi 3} {beer 2} {coffee 1} {dogs 1}]"
	if fmt.Sprint(tags) != want {
		t.Fatalf("tags = %v, want %s", tags, want)
	}
	sum := 0
	for _, tc := range tags {
		sum += tc.Count
	}
	if sum != 7 {
		t.Fatalf("sum = %d, want 7 (venue, tag) pairs", sum)
	}
	if !cache.has("tags:facets") {
		t.Fatalf("facets not cached")
	}
}

func TestVenuesByTag(t *testing.T) {
	s := memory.New()
	putVenue(s, "a", "A", t0, 0, 0, "wifi")
	putVenue(s, "b", "B", t0.Add(time.Hour), 0, 0, "beer")
	putVenue(s, "c", "C", t0, 0, 0)
	q := app.NewQueryService(s, nil, testOptions())
	ctx := context.Background()

	l, err := q.VenuesByTag(ctx, "wifi")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(l.Venues) != 1 || l.Venues[0].ID != "a" || len(l.Tags) != 2 || l.Tag != "wifi" {
		t.Fatalf("listing: %+v", l)
	}

	all, _ := q.VenuesByTag(ctx, "")
	if len(all.Venues) != 2 || all.Venues[0].ID != "b" {
		t.Fatalf("untagged filter: %+v", all.Venues)
	}
}

func TestVenuesByTag_Timeout(t *testing.T) {
	opts := testOptions()
	opts.OpTimeout = 20 * time.Millisecond
	q := app.NewQueryService(slowRepo{memory.New()}, nil, opts)
	if _, err := q.VenuesByTag(context.Background(), "x"); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestNear_BoundAndOrder(t *testing.T) {
	s := memory.New()
	// ~1.1 km per 0.01 degree of latitude
	putVenue(s, "far", "Far", t0, 0, 0.2, "x")
	putVenue(s, "mid", "Mid", t0, 0, 0.05)
	putVenue(s, "close", "Close", t0, 0, 0.01)
	putVenue(s, "here", "Here", t0, 0, 0)
	q := app.NewQueryService(s, nil, testOptions())

	got, err := q.Near(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 within 10km, got %d: %+v", len(got), got)
	}
	for i, name := range []string{"Here", "Close", "Mid"} {
		if got[i].Name != name {
			t.Fatalf("pos %d = %s, want %s", i, got[i].Name, name)
		}
		if got[i].Distance > 10000 {
			t.Fatalf("%s beyond max distance: %f", name, got[i].Distance)
		}
	}
	if got[0].Distance > got[1].Distance || got[1].Distance > got[2].Distance {
		t.Fatalf("not sorted by distance: %+v", got)
	}
}

func TestNear_EmptyAndInvalid(t *testing.T) {
	q := app.NewQueryService(memory.New(), nil, testOptions())
	ctx := context.Background()

	got, err := q.Near(ctx, 10, 10)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}

	_, err = q.Near(ctx, 200, -95)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !ve.Has("lng") || !ve.Has("lat") {
		t.Fatalf("expected lng/lat validation error, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	s := memory.New()
	putVenue(s, "a", "Green Tea House", t0, 0, 0)
	putVenue(s, "b", "Coffee Corner", t0, 0, 0)
	putVenue(s, "c", "Tea and Coffee and Tea", t0, 0, 0)
	q := app.NewQueryService(s, nil, testOptions())
	ctx := context.Background()

	blank, err := q.Search(ctx, "   ")
	if err != nil || len(blank) != 0 {
		t.Fatalf("blank query: %v %v", blank, err)
	}

	hits, err := q.Search(ctx, "tea")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "c" || hits[0].Score <= hits[1].Score {
		t.Fatalf("hits: %+v", hits)
	}
}

func TestSearch_StorageFailure(t *testing.T) {
	q := app.NewQueryService(brokenRepo{memory.New()}, nil, testOptions())
	_, err := q.Search(context.Background(), "tea")
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Op != "search" || !errors.Is(err, errBroken) {
		t.Fatalf("expected StorageError wrapping driver error, got %v", err)
	}
}

func TestTopRated_ThresholdAverageOrder(t *testing.T) {
	s := memory.New()
	putVenue(s, "single", "Single", t0, 0, 0)
	putVenue(s, "good", "Good", t0, 0, 0)
	putVenue(s, "best", "Best", t0, 0, 0)
	putVenue(s, "none", "None", t0, 0, 0)
	putReviews(s, "single", 5)
	putReviews(s, "good", 4, 5)
	putReviews(s, "best", 5, 5, 5)
	q := app.NewQueryService(s, nil, testOptions())

	top, err := q.TopRated(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 rows, got %+v", top)
	}
	if top[0].ID != "best" || top[0].AverageRating != 5 || top[0].ReviewCount != 3 {
		t.Fatalf("row 0: %+v", top[0])
	}
	if top[1].ID != "good" || top[1].AverageRating != 4.5 || len(top[1].Reviews) != 2 {
		t.Fatalf("row 1: %+v", top[1])
	}
}

func TestTopRated_Limit(t *testing.T) {
	s := memory.New()
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("v%02d", i)
		putVenue(s, id, id, t0, 0, 0)
		putReviews(s, id, 1+i%5, 3)
	}
	q := app.NewQueryService(s, nil, testOptions())
	top, err := q.TopRated(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(top) != 10 {
		t.Fatalf("len = %d, want 10", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i-1].AverageRating < top[i].AverageRating {
			t.Fatalf("not sorted desc at %d: %+v", i, top)
		}
	}
}

func TestGetBySlug_CacheMissThenHit(t *testing.T) {
	s := memory.New()
	v := putVenue(s, "a", "Night Owl", t0, 0, 0)
	putReviews(s, "a", 4)
	cache := &fakeCache{}
	q := app.NewQueryService(s, cache, testOptions())
	ctx := context.Background()

	d, err := q.GetBySlug(ctx, v.Slug)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if d.ID != "a" || len(d.Reviews) != 1 {
		t.Fatalf("detail: %+v", d)
	}

	putReviews(s, "a", 1)
	d2, _ := q.GetBySlug(ctx, v.Slug)
	if len(d2.Reviews) != 1 || cache.hits != 1 {
		t.Fatalf("second read should come from cache: %+v hits=%d", d2, cache.hits)
	}

	if _, err := q.GetBySlug(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetBySlug_MixedCaseSharesCanonicalCacheEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cache := &fakeCache{}
	repo := foldRepo{store}
	opts := testOptions()
	q := app.NewQueryService(repo, cache, opts)
	svc := app.NewVenueService(repo, cache, opts)

	v, err := svc.Create(ctx, "u1", input("Old Name", 0, 0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := q.GetBySlug(ctx, "Old-NAME"); err != nil {
		t.Fatalf("mixed-case lookup: %v", err)
	}
	if !cache.has("venue:slug:old-name") {
		t.Fatalf("detail not cached under the canonical slug")
	}

	if _, err := svc.Update(ctx, "u1", v.ID, input("New Name", 0, 0)); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if cache.has("venue:slug:old-name") {
		t.Fatalf("stale detail survived the rename")
	}
}
