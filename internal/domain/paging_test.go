package domain_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"venue_finder/internal/domain"
)

func TestPageCount(t *testing.T) {
	assert.Equal(t, 3, domain.PageCount(13, 6))
	assert.Equal(t, 2, domain.PageCount(12, 6))
	assert.Equal(t, 0, domain.PageCount(0, 6))
}

func TestNewPage_RedirectPastLastPage(t *testing.T) {
	p := domain.NewPage(nil, 5, 6, 13)
	assert.True(t, p.Redirected())
	assert.Equal(t, 3, p.RedirectTo)
	assert.Empty(t, p.Items)
}

func TestNewPage_EmptyCollection(t *testing.T) {
	first := domain.NewPage(nil, 1, 6, 0)
	assert.False(t, first.Redirected(), "page 1 of an empty collection must not redirect")
	assert.Equal(t, 0, first.Pages)
	assert.NotNil(t, first.Items)

	far := domain.NewPage(nil, 4, 6, 0)
	assert.Equal(t, 1, far.RedirectTo)
}

func TestNewPage_Window(t *testing.T) {
	items := []domain.Venue{{ID: "a"}, {ID: "b"}}
	p := domain.NewPage(items, 3, 6, 14)
	assert.False(t, p.Redirected())
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 3, p.Pages)
	assert.Equal(t, 14, p.Count)
	assert.Len(t, p.Items, 2)
}

func TestSkip_SaturatesHugePages(t *testing.T) {
	assert.Equal(t, 12, domain.Skip(3, 6))
	assert.Equal(t, 0, domain.Skip(-4, 6))

	skip := domain.Skip(math.MaxInt, 6)
	assert.Positive(t, skip)
	assert.GreaterOrEqual(t, math.MaxInt-skip, 6, "skip+limit must not overflow")
}
