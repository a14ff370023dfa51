package shared

const (
	// DefaultPageSize is used when a listing does not ask for a limit.
	DefaultPageSize = 20
	// MaxPageSize caps a single listing page.
	MaxPageSize = 100
)

// Pagination describes one window of a document register listing.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// ClampWindow normalises a requested offset/limit pair.
func ClampWindow(offset, limit int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// PaginationFromOffset reports which page an offset falls on. An offset that
// is not a multiple of limit lands on the page holding its first row.
func PaginationFromOffset(offset, limit, total int) Pagination {
	offset, limit = ClampWindow(offset, limit)
	if total < 0 {
		total = 0
	}
	return Pagination{
		Page:       offset/limit + 1,
		PerPage:    limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

// Offset returns the first row index of the page.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// HasNext reports whether rows remain after this page.
func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}
