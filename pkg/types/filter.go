package types

// Filter - параметры фильтрации, сортировки и пагинации списков.
type Filter struct {
	Search         string                 `json:"search,omitempty"`
	Sort           map[string]string      `json:"sort,omitempty"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
	Limit          int                    `json:"limit"`
	Offset         int                    `json:"offset"`
	Page           int                    `json:"page"`
	WithPagination bool                   `json:"with_pagination"`
}

// Pagination - метаданные пагинации в ответе.
type Pagination struct {
	TotalCount uint64 `json:"total_count"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"total_pages"`
}

// NewPagination считает количество страниц для ответа списка.
func NewPagination(total uint64, f Filter) Pagination {
	p := Pagination{TotalCount: total, Page: f.Page, Limit: f.Limit}
	if f.Limit > 0 {
		p.TotalPages = int((total + uint64(f.Limit) - 1) / uint64(f.Limit))
	}
	return p
}

// http://localhost:8080/api/equipment?search=JBL&sort[name]=asc&filter[status]=AVAILABLE,RESERVED&limit=10&page=1&withPagination=true
