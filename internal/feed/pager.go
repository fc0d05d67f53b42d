package feed

// Pager windows over the tree's root list. The window is the first
// pages*size roots; pages only grows within a session.
type Pager struct {
	size  int
	pages int

	gen      uint64
	inflight *pageRequest
	lastErr  error
}

type pageRequest struct {
	gen    uint64
	page   int
	reveal bool
}

func newPager(size int) *Pager {
	return &Pager{size: size}
}

func (p *Pager) PageSize() int { return p.size }

// Page is the current page index N. It is -1 before the first page has been
// revealed.
func (p *Pager) Page() int { return p.pages - 1 }

// Pending reports whether a page fetch is in flight.
func (p *Pager) Pending() bool { return p.inflight != nil }

// LastErr is the error of the most recent failed page fetch, cleared by the
// next successful one.
func (p *Pager) LastErr() error { return p.lastErr }

func (p *Pager) windowLen(total int) int {
	return min(p.pages*p.size, total)
}

func (p *Pager) issue(reveal bool) *pageRequest {
	p.gen++
	// both kinds of fetch target the page after the current window
	p.inflight = &pageRequest{gen: p.gen, page: p.pages, reveal: reveal}
	return p.inflight
}
