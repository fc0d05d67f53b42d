package feed

import (
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/deepfeed/internal/types"
)

// NodeID identifies a node for its whole lifetime. IDs are never reused.
type NodeID uuid.UUID

func newNodeID() NodeID { return NodeID(uuid.New()) }

func (id NodeID) String() string { return uuid.UUID(id).String() }

// ParseNodeID parses the String form of a NodeID
func ParseNodeID(s string) (NodeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NodeID{}, err
	}
	return NodeID(u), nil
}

// ChildState tracks lazy materialization of a node's children.
type ChildState int

const (
	// ChildrenNone means no fetch has been issued yet.
	ChildrenNone ChildState = iota
	// ChildrenPending means a fetch is in flight and the children are placeholders.
	ChildrenPending
	// ChildrenReady means the children are real. Zero children is a valid ready state.
	ChildrenReady
	// ChildrenFailed means the last fetch failed; placeholders carry the error.
	ChildrenFailed
)

func (s ChildState) String() string {
	switch s {
	case ChildrenNone:
		return "none"
	case ChildrenPending:
		return "pending"
	case ChildrenReady:
		return "ready"
	case ChildrenFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Node is one post in the feed tree. Nodes live in a Tree arena and reference
// their children by ID. All mutation goes through Session.
type Node struct {
	id     NodeID
	parent *NodeID
	depth  int

	content       string
	topic         string
	tags          []string
	source        types.Source
	publishedAt   *time.Time
	expiresAt     *time.Time
	confidence    *float64
	links         []types.Link
	relatedTopics []string

	children     []NodeID
	expanded     bool
	interactions int

	placeholder bool
	err         error

	childState ChildState
	fetchGen   uint64
	fetchErr   error
	stash      *Completion
}

func newNode(d types.Draft, depth int, parent *NodeID) *Node {
	n := &Node{
		id:            newNodeID(),
		parent:        parent,
		depth:         depth,
		content:       d.Content,
		topic:         d.Topic,
		tags:          dedupe(d.Tags),
		source:        d.Source,
		publishedAt:   d.PublishedAt,
		expiresAt:     d.ExpiresAt,
		links:         slices.Clone(d.Links),
		relatedTopics: slices.Clone(d.RelatedTopics),
	}
	if d.Confidence != nil && !math.IsNaN(*d.Confidence) && d.Source.Is(types.SourceAIGenerated) {
		c := min(max(*d.Confidence, 0), 1)
		n.confidence = &c
	}
	return n
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (n *Node) ID() NodeID { return n.id }
func (n *Node) Depth() int { return n.depth }
func (n *Node) Content() string { return n.content }
func (n *Node) Topic() string { return n.topic }
func (n *Node) Tags() []string { return slices.Clone(n.tags) }
func (n *Node) Source() types.Source { return n.source }
func (n *Node) Expanded() bool { return n.expanded }
func (n *Node) Interactions() int { return n.interactions }
func (n *Node) Placeholder() bool { return n.placeholder }
func (n *Node) ChildState() ChildState { return n.childState }
func (n *Node) ChildIDs() []NodeID { return slices.Clone(n.children) }
func (n *Node) NumChildren() int { return len(n.children) }
func (n *Node) PublishedAt() *time.Time { return n.publishedAt }
func (n *Node) ExpiresAt() *time.Time { return n.expiresAt }
func (n *Node) Links() []types.Link { return slices.Clone(n.links) }
func (n *Node) RelatedTopics() []string { return slices.Clone(n.relatedTopics) }

// Parent returns the parent ID, or false for a root.
func (n *Node) Parent() (NodeID, bool) {
	if n.parent == nil {
		return NodeID{}, false
	}
	return *n.parent, true
}

// Confidence is only defined for AI generated content.
func (n *Node) Confidence() (float64, bool) {
	if n.confidence == nil {
		return 0, false
	}
	return *n.confidence, true
}

// Err is the error marker on a placeholder whose fetch failed.
func (n *Node) Err() error { return n.err }

// FetchErr is the error of the last failed child fetch, if the node is in
// ChildrenFailed.
func (n *Node) FetchErr() error { return n.fetchErr }

// Expired reports whether time-sensitive content is past its expiry.
func (n *Node) Expired(now time.Time) bool {
	return n.expiresAt != nil && now.After(*n.expiresAt)
}
