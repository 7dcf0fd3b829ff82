package shared

import "math"

const (
	defaultPageLimit = 20
	maxPageLimit     = 200
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NormalizePage clamps an offset/limit pair to sane bounds.
func NormalizePage(offset, limit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// NewPagination computes pagination metadata.
func NewPagination(offset, limit, total int) Pagination {
	offset, limit = NormalizePage(offset, limit)
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{Offset: offset, Limit: limit, Total: total, TotalPages: totalPages}
}
