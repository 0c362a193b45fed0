package pagination

const (
	defaultPerPage = 50
	maxPerPage     = 250
)

type Pagination struct {
	Page    int `form:"page,default=1" validate:"gte=1"`
	PerPage int `form:"per_page,default=50" validate:"gte=1,lte=250"` // Min 1, Max 250
}

type PageInfo struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
}

// Normalize clamps page and per_page to their allowed ranges.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func BuildPageInfo(p Pagination, total int64) PageInfo {
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}

	return PageInfo{
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   total,
		Pages:   pages,
	}
}
