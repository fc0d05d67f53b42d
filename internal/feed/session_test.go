package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/deepfeed/internal/types"
)

func newTestSession(t *testing.T, pageSize int) *Session {
	t.Helper()
	s, err := NewSession(Options{
		PageSize:         pageSize,
		PlaceholderCount: 1,
		BiasTopics:       3,
		DefaultTopics:    []string{"Technology", "Science", "History", "Nature", "Art"},
	})
	require.NoError(t, err)
	return s
}

func drafts(n int, topic string) []types.Draft {
	out := make([]types.Draft, n)
	for i := range out {
		out[i] = types.Draft{
			Content: fmt.Sprintf("%s fact %d", topic, i),
			Topic:   topic,
			Tags:    []string{topic + "-tag"},
			Source:  types.AIGenerated(),
		}
	}
	return out
}

// seedRoots appends roots to the backing sequence without revealing a page.
func seedRoots(s *Session, ds []types.Draft) []*Node {
	out := make([]*Node, len(ds))
	for i, d := range ds {
		out[i] = s.tree.appendRoot(d)
	}
	return out
}

func complete(task Task, ds []types.Draft, err error) Completion {
	return Completion{Key: task.Key(), Gen: task.Generation(), Drafts: ds, Err: err}
}

// expandReady expands n and resolves its fetch with ds.
func expandReady(t *testing.T, s *Session, n *Node, ds []types.Draft) []*Node {
	t.Helper()
	task, err := s.Toggle(n.ID())
	require.NoError(t, err)
	require.NotNil(t, task)
	out, err := s.Apply(complete(task, ds, nil))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, out)
	return s.tree.Children(n.ID())
}

func TestNewSession_RejectsBadPageSize(t *testing.T) {
	_, err := NewSession(Options{PageSize: 0})
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestToggle_ExpandInsertsPlaceholder(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, []types.Draft{{Content: "Rome", Topic: "History", Tags: []string{"rome"}}})[0]

	task, err := s.Toggle(root.ID())
	require.NoError(t, err)
	require.NotNil(t, task)

	assert.True(t, root.Expanded())
	assert.Equal(t, ChildrenPending, root.ChildState())
	assert.Equal(t, "History", task.Topic)
	assert.Contains(t, task.Tags, "rome")

	children := s.tree.Children(root.ID())
	require.Len(t, children, 1)
	ph := children[0]
	assert.True(t, ph.Placeholder())
	assert.Equal(t, 1, ph.Depth())
	assert.Equal(t, types.SourceSynthetic, ph.Source().Kind)
	assert.Equal(t, "Loading more details about History...", ph.Content())
	assert.NoError(t, s.tree.Validate())
}

func TestApply_ReplacesPlaceholdersInOrder(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "History"))[0]
	task, err := s.Toggle(root.ID())
	require.NoError(t, err)
	placeholder := s.tree.Children(root.ID())[0].ID()

	out, err := s.Apply(complete(task, drafts(3, "Rome"), nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, ChildrenReady, root.ChildState())

	_, stillThere := s.Node(placeholder)
	assert.False(t, stillThere)

	children := s.tree.Children(root.ID())
	require.Len(t, children, 3)
	seen := map[NodeID]bool{root.ID(): true}
	for i, c := range children {
		assert.Equal(t, fmt.Sprintf("Rome fact %d", i), c.Content())
		assert.Equal(t, 1, c.Depth())
		assert.False(t, c.Placeholder())
		assert.False(t, seen[c.ID()], "ids must be unique")
		seen[c.ID()] = true
	}
	assert.NoError(t, s.tree.Validate())
}

func TestApply_ZeroChildrenIsReady(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "Art"))[0]
	children := expandReady(t, s, root, nil)

	assert.Empty(t, children)
	assert.True(t, root.Expanded())
	assert.Equal(t, ChildrenReady, root.ChildState())
	assert.NoError(t, root.FetchErr())
}

func TestToggle_TwiceRestoresStateAndCountsTwice(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "Science"))[0]

	_, err := s.Toggle(root.ID())
	require.NoError(t, err)
	_, err = s.Toggle(root.ID())
	require.NoError(t, err)

	assert.False(t, root.Expanded())
	assert.Equal(t, 2, root.Interactions())
}

func TestToggle_ReexpandReadyDoesNotFetch(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "Science"))[0]
	expandReady(t, s, root, drafts(2, "Physics"))

	_, err := s.Toggle(root.ID())
	require.NoError(t, err)
	task, err := s.Toggle(root.ID())
	require.NoError(t, err)

	assert.Nil(t, task)
	assert.Len(t, s.tree.Children(root.ID()), 2)
}

func TestCollapse_ResetsEveryDescendant(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "Nature"))[0]
	child := expandReady(t, s, root, drafts(2, "Forests"))[0]
	grandchild := expandReady(t, s, child, drafts(2, "Fungi"))[1]
	greatGrandchild := expandReady(t, s, grandchild, drafts(1, "Spores"))[0]
	require.Equal(t, 3, greatGrandchild.Depth())

	_, err := s.Toggle(root.ID())
	require.NoError(t, err)

	s.tree.walkFrom(root, func(n *Node) {
		assert.False(t, n.Expanded(), "node at depth %d still expanded", n.Depth())
	})
	assert.Len(t, s.tree.Children(root.ID()), 2, "collapse keeps children")
	assert.Len(t, s.tree.Children(grandchild.ID()), 1)
	assert.NoError(t, s.tree.Validate())
}

func TestFocus_FollowsToggles(t *testing.T) {
	s := newTestSession(t, 20)
	assert.Equal(t, 0, s.Focus())

	root := seedRoots(s, drafts(1, "Nature"))[0]
	child := expandReady(t, s, root, drafts(1, "Rivers"))[0]
	assert.Equal(t, 1, s.Focus())

	expandReady(t, s, child, drafts(1, "Deltas"))
	assert.Equal(t, 2, s.Focus())

	_, err := s.Toggle(child.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Focus())

	_, err = s.Toggle(root.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Focus())
}

func TestToggle_RecordsInterests(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, []types.Draft{{Content: "x", Topic: "Science", Tags: []string{"brain", "neurons"}}})[0]

	_, err := s.Toggle(root.ID())
	require.NoError(t, err)

	assert.Equal(t, []string{"Science", "brain", "neurons"}, s.Interests().Snapshot())
}

func TestToggle_Errors(t *testing.T) {
	s := newTestSession(t, 20)
	_, err := s.Toggle(newNodeID())
	assert.ErrorIs(t, err, ErrNodeNotFound)

	root := seedRoots(s, drafts(1, "Art"))[0]
	_, err = s.Toggle(root.ID())
	require.NoError(t, err)
	ph := s.tree.Children(root.ID())[0]
	_, err = s.Toggle(ph.ID())
	assert.ErrorIs(t, err, ErrPlaceholder)
}

func TestApply_FailureKeepsMarkedPlaceholders(t *testing.T) {
	s := newTestSession(t, 20)
	roots := seedRoots(s, drafts(2, "History"))
	sibling := roots[1]
	expandReady(t, s, sibling, drafts(2, "Egypt"))

	task, err := s.Toggle(roots[0].ID())
	require.NoError(t, err)
	boom := errors.New("provider down")

	out, err := s.Apply(complete(task, nil, boom))
	assert.Equal(t, OutcomeFailed, out)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, boom)

	n := roots[0]
	assert.True(t, n.Expanded())
	assert.Equal(t, ChildrenFailed, n.ChildState())
	assert.ErrorIs(t, n.FetchErr(), boom)
	children := s.tree.Children(n.ID())
	require.Len(t, children, 1)
	assert.True(t, children[0].Placeholder())
	assert.ErrorIs(t, children[0].Err(), boom)

	assert.Equal(t, ChildrenReady, sibling.ChildState())
	assert.Len(t, s.tree.Children(sibling.ID()), 2)
	assert.NoError(t, s.tree.Validate())
}

func TestToggle_OffOnRetriesFailedFetch(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "History"))[0]
	first, err := s.Toggle(root.ID())
	require.NoError(t, err)
	_, err = s.Apply(complete(first, nil, errors.New("timeout")))
	require.Error(t, err)

	_, err = s.Toggle(root.ID())
	require.NoError(t, err)
	second, err := s.Toggle(root.ID())
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Greater(t, second.Gen, first.Gen)
	assert.Equal(t, ChildrenPending, root.ChildState())
	assert.Len(t, s.tree.Children(root.ID()), 1, "old placeholders are replaced, not accumulated")

	out, err := s.Apply(complete(second, drafts(2, "Rome"), nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Len(t, s.tree.Children(root.ID()), 2)
}

func TestRetry(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "Art"))[0]

	_, err := s.Retry(root.ID())
	assert.ErrorIs(t, err, ErrNotRetryable)

	task, err := s.Toggle(root.ID())
	require.NoError(t, err)
	_, _ = s.Apply(complete(task, nil, errors.New("nope")))

	again, err := s.Retry(root.ID())
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.True(t, root.Expanded())
	assert.Equal(t, ChildrenPending, root.ChildState())
}

func TestApply_StaleGenerationIgnored(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "History"))[0]
	first, err := s.Toggle(root.ID())
	require.NoError(t, err)
	_, _ = s.Apply(complete(first, nil, errors.New("fail")))
	_, _ = s.Toggle(root.ID())
	second, err := s.Toggle(root.ID())
	require.NoError(t, err)

	// a late duplicate of the first request must not land
	out, err := s.Apply(complete(first, drafts(5, "Late"), nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, out)
	assert.Equal(t, ChildrenPending, root.ChildState())

	out, err = s.Apply(complete(second, drafts(1, "Fresh"), nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, "Fresh fact 0", s.tree.Children(root.ID())[0].Content())
}

func TestApply_UnknownNodeIsStale(t *testing.T) {
	s := newTestSession(t, 20)
	out, err := s.Apply(Completion{Key: TaskKey{Kind: TaskChildren, Node: newNodeID()}, Gen: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, out)
}

func TestApply_CollapsedWhilePendingStashes(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "Science"))[0]
	task, err := s.Toggle(root.ID())
	require.NoError(t, err)
	_, err = s.Toggle(root.ID())
	require.NoError(t, err)

	out, err := s.Apply(complete(task, drafts(2, "Cells"), nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStashed, out)
	assert.False(t, root.Expanded())
	assert.Equal(t, ChildrenPending, root.ChildState())
	assert.True(t, s.tree.Children(root.ID())[0].Placeholder(), "collapsed node is not mutated")

	again, err := s.Toggle(root.ID())
	require.NoError(t, err)
	assert.Nil(t, again, "stashed result is reused instead of refetching")
	assert.Equal(t, ChildrenReady, root.ChildState())
	assert.Len(t, s.tree.Children(root.ID()), 2)
	assert.NoError(t, s.tree.Validate())
}

func TestApply_CollapsedWhilePendingFailureRefetches(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "Science"))[0]
	task, err := s.Toggle(root.ID())
	require.NoError(t, err)
	_, _ = s.Toggle(root.ID())

	out, err := s.Apply(complete(task, nil, errors.New("fail")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStashed, out)

	again, err := s.Toggle(root.ID())
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Greater(t, again.Gen, task.Gen)
}

func TestChildFetch_RunsAgainstProvider(t *testing.T) {
	s := newTestSession(t, 20)
	root := seedRoots(s, drafts(1, "History"))[0]
	task, err := s.Toggle(root.ID())
	require.NoError(t, err)

	p := &stubProvider{children: drafts(2, "Rome")}
	c := task.Run(context.Background(), p)
	assert.Equal(t, []string{"History"}, p.childTopics)

	out, err := s.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Len(t, s.tree.Children(root.ID()), 2)
}

func TestNode_ConfidenceOnlyForAIGenerated(t *testing.T) {
	s := newTestSession(t, 20)
	high := 1.7
	roots := seedRoots(s, []types.Draft{
		{Content: "a", Topic: "t", Source: types.AIGenerated(), Confidence: &high},
		{Content: "b", Topic: "t", Source: types.News("wire"), Confidence: &high},
	})

	c, ok := roots[0].Confidence()
	assert.True(t, ok)
	assert.Equal(t, 1.0, c)
	_, ok = roots[1].Confidence()
	assert.False(t, ok)
	assert.NoError(t, s.tree.Validate())
}

func TestNode_NaNConfidenceDropped(t *testing.T) {
	s := newTestSession(t, 20)
	nan := math.NaN()
	n := seedRoots(s, []types.Draft{{Content: "a", Topic: "t", Source: types.AIGenerated(), Confidence: &nan}})[0]

	_, ok := n.Confidence()
	assert.False(t, ok)
	assert.NoError(t, s.tree.Validate())
}

func TestValidate_ConfidenceRange(t *testing.T) {
	s := newTestSession(t, 20)
	n := seedRoots(s, []types.Draft{{Content: "a", Topic: "t", Source: types.AIGenerated()}})[0]

	for _, bad := range []float64{math.NaN(), -0.1, 1.5} {
		n.confidence = &bad
		assert.ErrorContains(t, s.tree.Validate(), "confidence outside [0,1]")
	}
	ok := 0.5
	n.confidence = &ok
	assert.NoError(t, s.tree.Validate())
}

func TestNode_TagsDeduplicated(t *testing.T) {
	s := newTestSession(t, 20)
	n := seedRoots(s, []types.Draft{{Content: "x", Topic: "t", Tags: []string{"a", "b", "a", "c", "b"}}})[0]
	assert.Equal(t, []string{"a", "b", "c"}, n.Tags())
}

func TestNode_Expired(t *testing.T) {
	s := newTestSession(t, 20)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	roots := seedRoots(s, []types.Draft{
		{Content: "a", Topic: "t", ExpiresAt: &at},
		{Content: "b", Topic: "t"},
	})

	assert.False(t, roots[0].Expired(at.Add(-time.Minute)))
	assert.True(t, roots[0].Expired(at.Add(time.Minute)))
	assert.False(t, roots[1].Expired(at.Add(time.Minute)))
}

func TestParseNodeID(t *testing.T) {
	s := newTestSession(t, 20)
	n := seedRoots(s, []types.Draft{{Content: "x", Topic: "t"}})[0]

	id, err := ParseNodeID(n.ID().String())
	require.NoError(t, err)
	got, ok := s.Node(id)
	require.True(t, ok)
	assert.Same(t, n, got)

	_, err = ParseNodeID("not-an-id")
	assert.Error(t, err)
}

type stubProvider struct {
	children    []types.Draft
	batch       []types.Draft
	err         error
	childTopics []string
	batchTopics [][]string
}

func (p *stubProvider) GenerateChildren(_ context.Context, topic string, _ []string) ([]types.Draft, error) {
	p.childTopics = append(p.childTopics, topic)
	return p.children, p.err
}

func (p *stubProvider) GenerateBatch(_ context.Context, topics []string) ([]types.Draft, error) {
	p.batchTopics = append(p.batchTopics, topics)
	return p.batch, p.err
}
