package search

// Paginate returns the 1-based page of records. Out of range pages and
// non-positive sizes yield an empty slice.
func Paginate[T any](records []T, pageSize, page int) []T {
	if pageSize <= 0 || page < 1 {
		return []T{}
	}
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []T{}
	}
	end := min(start+pageSize, len(records))
	return records[start:end]
}

// PageCount is ceil(len(records)/pageSize).
func PageCount[T any](records []T, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (len(records) + pageSize - 1) / pageSize
}

// Pager tracks the current page over a record list. Replacing the records
// always goes back to page 1.
type Pager[T any] struct {
	pageSize int
	page     int
	records  []T
}

// NewPager returns an empty Pager on page 1.
func NewPager[T any](pageSize int) *Pager[T] {
	return &Pager[T]{pageSize: pageSize, page: 1}
}

// SetRecords replaces the records and resets to page 1.
func (p *Pager[T]) SetRecords(records []T) {
	p.records = records
	p.page = 1
}

// SetPage moves to page, clamped to the available pages.
func (p *Pager[T]) SetPage(page int) {
	p.page = max(1, min(page, p.PageCount()))
}

// Page is the current 1-based page.
func (p *Pager[T]) Page() int {
	return p.page
}

// PageCount is the number of pages for the current records.
func (p *Pager[T]) PageCount() int {
	return PageCount(p.records, p.pageSize)
}

// Len is the number of records.
func (p *Pager[T]) Len() int {
	return len(p.records)
}

// Items returns the records of the current page.
func (p *Pager[T]) Items() []T {
	return Paginate(p.records, p.pageSize, p.page)
}
