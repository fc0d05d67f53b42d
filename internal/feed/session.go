package feed

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/types"
)

// Options configures a Session
type Options struct {
	PageSize         int
	PlaceholderCount int
	// BiasTopics caps how many recent interests steer later page fetches and
	// child fetches.
	BiasTopics    int
	DefaultTopics []string

	Store    InterestStore
	Logger   *zap.Logger
	Observer Observer
}

// Session is the single-owner context for one feed: the node arena, the
// focus depth, the pager and the interest set. It is not safe for concurrent
// use; tasks it returns are run elsewhere and their completions applied back
// through Apply on the owning goroutine.
type Session struct {
	tree      *Tree
	pager     *Pager
	interests *Interests
	focus     int
	started   bool

	opts Options
	log  *zap.Logger
	obs  Observer
}

// NewSession creates a session and loads persisted interests from the store.
func NewSession(opts Options) (*Session, error) {
	if opts.PageSize <= 0 {
		return nil, ErrInvalidPageSize
	}
	opts.PlaceholderCount = max(opts.PlaceholderCount, 0)
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	s := &Session{
		tree:      NewTree(),
		pager:     newPager(opts.PageSize),
		interests: NewInterests(log),
		opts:      opts,
		log:       log,
		obs:       obs,
	}
	s.interests.Load(opts.Store)
	return s, nil
}

func (s *Session) Tree() *Tree { return s.tree }
func (s *Session) Pager() *Pager { return s.pager }
func (s *Session) Interests() *Interests { return s.interests }

// Focus is the depth currently in focus for render weighting.
func (s *Session) Focus() int { return s.focus }

// Node looks up a node by ID
func (s *Session) Node(id NodeID) (*Node, bool) { return s.tree.Node(id) }

// Visible returns the roots inside the pagination window.
func (s *Session) Visible() []*Node {
	n := s.pager.windowLen(len(s.tree.roots))
	out := make([]*Node, 0, n)
	for _, id := range s.tree.roots[:n] {
		out = append(out, s.tree.nodes[id])
	}
	return out
}

// Flatten returns the visible roots with their expanded subtrees, in display
// order.
func (s *Session) Flatten() []*Node {
	var out []*Node
	for _, r := range s.Visible() {
		out = s.tree.appendVisible(out, r)
	}
	return out
}

// FlushInterests persists the interest set if it changed.
func (s *Session) FlushInterests() error {
	return s.interests.Flush(s.opts.Store)
}

// Start issues the initial page fetch over every known interest, or the
// default topics when there are none. Its completion reveals page 0.
func (s *Session) Start() (*PageFetch, error) {
	if s.started || s.pager.pages > 0 || s.pager.inflight != nil {
		return nil, ErrAlreadyStarted
	}
	s.started = true
	return s.issuePage(true, s.pageTopics(0)), nil
}

// Advance grows the window by one page. When the window already shows every
// buffered root, a fetch is issued and the page is revealed once its
// completion is applied. Otherwise the page is revealed now and, if less than
// a full page remains buffered beyond the window, a background top-up fetch
// is returned.
func (s *Session) Advance() (*PageFetch, error) {
	p := s.pager
	total := len(s.tree.roots)

	if p.pages*p.size < total {
		p.pages++
		s.log.Debug("page revealed", zap.Int("page", p.Page()), zap.Int("visible", p.windowLen(total)))
		s.changed()
		if p.inflight == nil && total-p.pages*p.size < p.size {
			return s.issuePage(false, s.pageTopics(s.opts.BiasTopics)), nil
		}
		return nil, nil
	}

	if p.inflight != nil {
		// the window is exhausted; reveal when the fetch already in flight lands
		p.inflight.reveal = true
		return nil, ErrPageFetchInFlight
	}
	return s.issuePage(true, s.pageTopics(s.opts.BiasTopics)), nil
}

func (s *Session) pageTopics(limit int) []string {
	topics := s.interests.Recent(limit)
	if len(topics) == 0 {
		topics = slices.Clone(s.opts.DefaultTopics)
	}
	return topics
}

func (s *Session) issuePage(reveal bool, topics []string) *PageFetch {
	req := s.pager.issue(reveal)
	s.obs.FetchIssued(TaskPage)
	s.log.Debug("page fetch issued",
		zap.Int("page", req.page),
		zap.Bool("reveal", reveal),
		zap.Strings("topics", topics),
	)
	return &PageFetch{Page: req.page, Gen: req.gen, Topics: topics}
}

// Toggle expands a collapsed node or collapses an expanded one. Expanding a
// node whose children were never fetched, or whose last fetch failed,
// inserts placeholders and returns the fetch to run.
func (s *Session) Toggle(id NodeID) (*ChildFetch, error) {
	n, ok := s.tree.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.placeholder {
		return nil, ErrPlaceholder
	}
	n.interactions++

	if n.expanded {
		s.collapse(n)
		s.changed()
		return nil, nil
	}

	n.expanded = true
	task := s.materialize(n)
	s.interests.Record(n.topic, n.tags...)
	s.focus = n.depth + 1
	s.changed()
	return task, nil
}

// collapse folds n and every descendant. Children are kept.
func (s *Session) collapse(n *Node) {
	s.tree.walkFrom(n, func(d *Node) {
		d.expanded = false
	})
	s.focus = n.depth
}

func (s *Session) materialize(n *Node) *ChildFetch {
	switch n.childState {
	case ChildrenReady:
		return nil
	case ChildrenPending:
		if n.stash == nil {
			return nil
		}
		c := *n.stash
		n.stash = nil
		if c.Err == nil {
			s.resolveChildren(n, c)
			return nil
		}
	}
	return s.issueChildren(n)
}

// Retry re-issues the child fetch of an expanded node whose last fetch failed.
func (s *Session) Retry(id NodeID) (*ChildFetch, error) {
	n, ok := s.tree.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if !n.expanded || n.childState != ChildrenFailed {
		return nil, ErrNotRetryable
	}
	task := s.issueChildren(n)
	s.changed()
	return task, nil
}

func (s *Session) issueChildren(n *Node) *ChildFetch {
	s.tree.dropPlaceholders(n)
	for range s.opts.PlaceholderCount {
		ph := s.tree.appendChild(n, placeholderDraft(n))
		ph.placeholder = true
	}
	n.childState = ChildrenPending
	n.fetchErr = nil
	n.stash = nil
	n.fetchGen++

	s.obs.FetchIssued(TaskChildren)
	s.log.Debug("child fetch issued", zap.Stringer("node", n.id), zap.String("topic", n.topic))
	return &ChildFetch{
		Node:  n.id,
		Gen:   n.fetchGen,
		Topic: n.topic,
		Tags:  dedupe(append(slices.Clone(n.tags), s.interests.Recent(s.opts.BiasTopics)...)),
	}
}

func placeholderDraft(n *Node) types.Draft {
	return types.Draft{
		Content: fmt.Sprintf("Loading more details about %s...", n.topic),
		Topic:   n.topic,
		Tags:    n.tags,
		Source:  types.Synthetic(),
	}
}

// Apply folds a task completion into the session. Completions whose target
// is gone or has moved on since the request are ignored. Failures become
// local state and are also returned, wrapped in ErrFetchFailed.
func (s *Session) Apply(c Completion) (Outcome, error) {
	var (
		out Outcome
		err error
	)
	switch c.Key.Kind {
	case TaskChildren:
		out, err = s.applyChildren(c)
	case TaskPage:
		out, err = s.applyPage(c)
	default:
		return OutcomeStale, fmt.Errorf("unknown task kind %d", c.Key.Kind)
	}
	s.obs.FetchCompleted(c.Key.Kind, out)
	s.changed()
	return out, err
}

func (s *Session) applyChildren(c Completion) (Outcome, error) {
	n, ok := s.tree.nodes[c.Key.Node]
	if !ok || n.fetchGen != c.Gen || n.childState != ChildrenPending {
		s.log.Debug("ignoring stale completion", zap.Stringer("key", c.Key), zap.Uint64("gen", c.Gen))
		return OutcomeStale, nil
	}
	if !n.expanded {
		// collapsed while in flight; keep the result for the next expansion
		n.stash = &c
		s.log.Debug("stashed completion for collapsed node", zap.Stringer("node", n.id))
		return OutcomeStashed, nil
	}
	return s.resolveChildren(n, c)
}

func (s *Session) resolveChildren(n *Node, c Completion) (Outcome, error) {
	if c.Err != nil {
		n.childState = ChildrenFailed
		n.fetchErr = c.Err
		for _, cid := range n.children {
			if ch := s.tree.nodes[cid]; ch != nil && ch.placeholder {
				ch.err = c.Err
			}
		}
		s.log.Warn("child fetch failed", zap.Stringer("node", n.id), zap.String("topic", n.topic), zap.Error(c.Err))
		return OutcomeFailed, fmt.Errorf("%w: children of %s: %w", ErrFetchFailed, n.id, c.Err)
	}

	s.tree.dropPlaceholders(n)
	for _, d := range c.Drafts {
		s.tree.appendChild(n, d)
	}
	n.childState = ChildrenReady
	n.fetchErr = nil
	s.log.Debug("children materialized", zap.Stringer("node", n.id), zap.Int("count", len(c.Drafts)))
	return OutcomeApplied, nil
}

func (s *Session) applyPage(c Completion) (Outcome, error) {
	p := s.pager
	if p.inflight == nil || p.inflight.gen != c.Gen {
		s.log.Debug("ignoring stale completion", zap.Stringer("key", c.Key), zap.Uint64("gen", c.Gen))
		return OutcomeStale, nil
	}
	req := p.inflight
	p.inflight = nil

	if c.Err != nil {
		p.lastErr = c.Err
		s.log.Warn("page fetch failed", zap.Int("page", req.page), zap.Error(c.Err))
		return OutcomeFailed, fmt.Errorf("%w: page %d: %w", ErrFetchFailed, req.page, c.Err)
	}
	p.lastErr = nil

	for _, d := range c.Drafts {
		s.tree.appendRoot(d)
	}
	if !req.reveal {
		return OutcomeApplied, nil
	}
	if len(c.Drafts) == 0 {
		return OutcomeApplied, ErrNoContent
	}
	p.pages++
	s.log.Debug("page revealed", zap.Int("page", p.Page()), zap.Int("visible", p.windowLen(len(s.tree.roots))))
	return OutcomeApplied, nil
}

func (s *Session) changed() {
	s.obs.TreeChanged(s.tree.Len(), len(s.tree.roots), s.focus)
}
