// Package views slices appointment lists the way the list page and the
// signage screen show them.
package views

const (
	DefaultPerPage      = 6
	DefaultVisibleCount = 6
)

type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages"`
	TotalItems int `json:"totalItems"`
}

// Paginate returns the 1-based page of items. page is clamped into range and
// perPage falls back to DefaultPerPage when not positive.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	total := len(items)
	pages := (total + perPage - 1) / perPage

	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * perPage
	end := min(start+perPage, total)

	out := make([]T, 0, end-start)
	if start < total {
		out = append(out, items[start:end]...)
	}

	return Page[T]{
		Items:      out,
		Page:       page,
		PerPage:    perPage,
		TotalPages: pages,
		TotalItems: total,
	}
}

// Rotation pages through items VisibleCount at a time, wrapping to the start.
type Rotation struct {
	VisibleCount int
}

func (r Rotation) visible() int {
	if r.VisibleCount <= 0 {
		return DefaultVisibleCount
	}
	return r.VisibleCount
}

// Window returns items[start:start+VisibleCount], clipped to the slice.
func Window[T any](r Rotation, items []T, start int) []T {
	if start < 0 || start >= len(items) {
		start = 0
	}
	end := min(start+r.visible(), len(items))

	out := make([]T, 0, end-start)
	return append(out, items[start:end]...)
}

// Next returns the start index of the following window. Lists that fit on
// one screen never rotate.
func (r Rotation) Next(start, total int) int {
	n := r.visible()
	if total <= n {
		return 0
	}
	next := start + n
	if next >= total || next < 0 {
		return 0
	}
	return next
}
