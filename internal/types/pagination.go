package types

// Page holds normalized pagination inputs.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Pagination is the listing metadata returned under meta.pagination.
type Pagination struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

func NewPagination(total int64, page Page) Pagination {
	pages := int((total + int64(page.Limit) - 1) / int64(page.Limit))
	return Pagination{
		Total:   total,
		Page:    page.Number,
		Limit:   page.Limit,
		Pages:   pages,
		HasNext: page.Number < pages,
		HasPrev: page.Number > 1,
	}
}
