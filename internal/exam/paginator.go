package exam

const DefaultPageSize = 10

// Paginator splits an ordered question list into fixed-size pages and keeps
// track of the selected page. Navigation clamps at both ends.
type Paginator struct {
	count int
	size  int
	page  int
}

func NewPaginator(count, size int) *Paginator {
	if size <= 0 {
		size = DefaultPageSize
	}
	if count < 0 {
		count = 0
	}
	return &Paginator{count: count, size: size}
}

func (p *Paginator) Size() int {
	return p.size
}

func (p *Paginator) Page() int {
	return p.page
}

func (p *Paginator) TotalPages() int {
	return (p.count + p.size - 1) / p.size
}

func (p *Paginator) PageOf(questionIndex int) int {
	return questionIndex / p.size
}

// Bounds returns the half-open question index range shown on page. A page
// outside the list yields an empty range.
func (p *Paginator) Bounds(page int) (int, int) {
	if page < 0 {
		return 0, 0
	}
	start := page * p.size
	if start > p.count {
		start = p.count
	}
	end := start + p.size
	if end > p.count {
		end = p.count
	}
	return start, end
}

func (p *Paginator) HasNext() bool {
	return p.page+1 < p.TotalPages()
}

func (p *Paginator) HasPrev() bool {
	return p.page > 0
}

func (p *Paginator) Next() bool {
	if !p.HasNext() {
		return false
	}
	p.page++
	return true
}

func (p *Paginator) Prev() bool {
	if !p.HasPrev() {
		return false
	}
	p.page--
	return true
}

// JumpTo selects the page containing questionIndex.
func (p *Paginator) JumpTo(questionIndex int) bool {
	if questionIndex < 0 || questionIndex >= p.count {
		return false
	}
	p.page = p.PageOf(questionIndex)
	return true
}

// PageItems returns the slice of items shown on page for the given size.
func PageItems[T any](items []T, page, size int) []T {
	pager := NewPaginator(len(items), size)
	start, end := pager.Bounds(page)
	return items[start:end]
}
