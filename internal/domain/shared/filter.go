package shared

// MaxPageSize bounds a single list page
const MaxPageSize = 100

// Filter holds paging and ordering for list queries. Page is 1-based.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter returns the first page of 20, newest first
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: 20, OrderBy: "created_at", OrderDir: "desc"}
}

// Offset is the number of rows before the current page
func (f Filter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Limit is the page size clamped to MaxPageSize; 0 means unbounded
func (f Filter) Limit() int {
	return min(f.PageSize, MaxPageSize)
}
