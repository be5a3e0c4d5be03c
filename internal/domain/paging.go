package domain

import "math"

// Skip returns the number of records before page (1-based). Pages too large to
// address saturate so that skip+limit still fits in an int.
func Skip(page, limit int) int {
	if page < 1 {
		page = 1
	}
	if limit > 0 && page-1 > (math.MaxInt-limit)/limit {
		return math.MaxInt - limit
	}
	return (page - 1) * limit
}

// PageCount is ceil(count/limit); 0 when there is nothing to show.
func PageCount(count, limit int) int {
	if limit <= 0 || count <= 0 {
		return 0
	}
	return (count + limit - 1) / limit
}

// NewPage assembles a listing page, or a redirect when the window is empty
// because the requested page lies past the end.
func NewPage(items []Venue, page, limit, count int) VenuePage {
	if page < 1 {
		page = 1
	}
	pages := PageCount(count, limit)
	if len(items) == 0 && Skip(page, limit) > 0 {
		return VenuePage{Page: page, Pages: pages, Count: count, RedirectTo: max(pages, 1)}
	}
	if items == nil {
		items = []Venue{}
	}
	return VenuePage{Items: items, Page: page, Pages: pages, Count: count}
}
