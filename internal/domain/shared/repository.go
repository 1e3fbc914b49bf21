package shared

// Page describes offset pagination. Zero values mean "first page, default size".
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the page into valid bounds
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

// SortDirection is ascending or descending
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page Page) Paginated[T] {
	page = page.Normalize()
	totalPages := int(total) / page.Size
	if int(total)%page.Size > 0 {
		totalPages++
	}
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: totalPages,
	}
}
