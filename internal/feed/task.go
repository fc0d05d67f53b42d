package feed

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/deepfeed/internal/types"
)

// ContentProvider produces posts. Calls block; asynchrony comes from whoever
// runs the Task.
type ContentProvider interface {
	GenerateChildren(ctx context.Context, topic string, tags []string) ([]types.Draft, error)
	GenerateBatch(ctx context.Context, topics []string) ([]types.Draft, error)
}

// TaskKind distinguishes child fetches from page fetches.
type TaskKind int

const (
	TaskChildren TaskKind = iota
	TaskPage
)

func (k TaskKind) String() string {
	if k == TaskPage {
		return "page"
	}
	return "children"
}

// TaskKey names the target of a fetch: a node for child fetches, a page
// index for page fetches.
type TaskKey struct {
	Kind TaskKind
	Node NodeID
	Page int
}

func (k TaskKey) String() string {
	if k.Kind == TaskPage {
		return fmt.Sprintf("page/%d", k.Page)
	}
	return "children/" + k.Node.String()
}

// Task is a fetch issued by the session. Run touches no session state and is
// safe on any goroutine; its Completion must be handed back to Session.Apply
// on the owning goroutine.
type Task interface {
	Key() TaskKey
	Generation() uint64
	Run(ctx context.Context, p ContentProvider) Completion
}

// Completion is the outcome of a Task. Gen lets Apply recognise results of
// requests that were superseded.
type Completion struct {
	Key    TaskKey
	Gen    uint64
	Drafts []types.Draft
	Err    error
}

// ChildFetch requests the children of one node.
type ChildFetch struct {
	Node  NodeID
	Gen   uint64
	Topic string
	Tags  []string
}

func (f *ChildFetch) Key() TaskKey { return TaskKey{Kind: TaskChildren, Node: f.Node} }
func (f *ChildFetch) Generation() uint64 { return f.Gen }

func (f *ChildFetch) Run(ctx context.Context, p ContentProvider) Completion {
	drafts, err := p.GenerateChildren(ctx, f.Topic, f.Tags)
	return Completion{Key: f.Key(), Gen: f.Gen, Drafts: drafts, Err: err}
}

// PageFetch requests more top-level posts.
type PageFetch struct {
	Page   int
	Gen    uint64
	Topics []string
}

func (f *PageFetch) Key() TaskKey { return TaskKey{Kind: TaskPage, Page: f.Page} }
func (f *PageFetch) Generation() uint64 { return f.Gen }

func (f *PageFetch) Run(ctx context.Context, p ContentProvider) Completion {
	drafts, err := p.GenerateBatch(ctx, f.Topics)
	return Completion{Key: f.Key(), Gen: f.Gen, Drafts: drafts, Err: err}
}

// Outcome is what Apply did with a completion.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeFailed
	OutcomeStale
	OutcomeStashed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeFailed:
		return "failed"
	case OutcomeStale:
		return "stale"
	case OutcomeStashed:
		return "stashed"
	default:
		return "unknown"
	}
}

// Observer receives session events, typically for metrics.
type Observer interface {
	FetchIssued(kind TaskKind)
	FetchCompleted(kind TaskKind, outcome Outcome)
	TreeChanged(nodes, roots, focus int)
}

type nopObserver struct{}

func (nopObserver) FetchIssued(TaskKind) {}
func (nopObserver) FetchCompleted(TaskKind, Outcome) {}
func (nopObserver) TreeChanged(nodes, roots, focus int) {}
