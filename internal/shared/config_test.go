package shared_test

import (
	"testing"
	"time"

	"venue_finder/internal/shared"
)

func TestLoad_Defaults(t *testing.T) {
	c := shared.Load()
	if c.PageSize != 6 || c.TopMinReviews != 2 || c.TopLimit != 10 {
		t.Fatalf("unexpected query defaults: %+v", c)
	}
	if c.MaxDistanceM != 10000 {
		t.Fatalf("max distance: got %v", c.MaxDistanceM)
	}
	if c.OpTimeout != 5*time.Second {
		t.Fatalf("op timeout: got %v", c.OpTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAGE_SIZE", "12")
	t.Setenv("TOP_LIMIT", "3")
	t.Setenv("GEO_MAX_DISTANCE_METERS", "2500")
	t.Setenv("TOP_MIN_REVIEWS", "not-a-number")

	c := shared.Load()
	if c.PageSize != 12 || c.TopLimit != 3 || c.MaxDistanceM != 2500 {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.TopMinReviews != 2 {
		t.Fatalf("bad integer should fall back to default, got %d", c.TopMinReviews)
	}
}

func TestLoad_NonPositivePageSize(t *testing.T) {
	t.Setenv("PAGE_SIZE", "0")
	if c := shared.Load(); c.PageSize != 6 {
		t.Fatalf("page size: got %d", c.PageSize)
	}
}

func TestAppOptions(t *testing.T) {
	t.Setenv("SLUG_MAX_RETRIES", "9")
	t.Setenv("CACHE_TTL_SECONDS", "30")
	o := shared.Load().AppOptions()
	if o.SlugMaxRetries != 9 || o.CacheTTL != 30*time.Second || o.PageSize != 6 {
		t.Fatalf("unexpected options: %+v", o)
	}
}
