package feed

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ibeckermayer/deepfeed/internal/types"
)

// TestSession_InvariantsHold drives a session with random interleavings of
// toggles, retries, page advances and out-of-order completions and checks the
// structural invariants after every step.
func TestSession_InvariantsHold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, err := NewSession(Options{
			PageSize:         rapid.IntRange(1, 6).Draw(rt, "pageSize"),
			PlaceholderCount: rapid.IntRange(0, 3).Draw(rt, "placeholders"),
			BiasTopics:       3,
			DefaultTopics:    []string{"Technology", "Science"},
		})
		require.NoError(rt, err)

		var pending []Task
		seq := 0
		batch := func(n int) []types.Draft {
			out := make([]types.Draft, n)
			for i := range out {
				seq++
				out[i] = types.Draft{Content: fmt.Sprintf("post %d", seq), Topic: fmt.Sprintf("t%d", seq%4)}
			}
			return out
		}

		start, err := s.Start()
		require.NoError(rt, err)
		pending = append(pending, start)

		lastWindow := 0
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for range steps {
			flat := s.Flatten()
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				if len(flat) == 0 {
					continue
				}
				n := flat[rapid.IntRange(0, len(flat)-1).Draw(rt, "toggle")]
				task, err := s.Toggle(n.ID())
				if n.Placeholder() {
					require.ErrorIs(rt, err, ErrPlaceholder)
					continue
				}
				require.NoError(rt, err)
				if task != nil {
					pending = append(pending, task)
				}
			case 1:
				task, err := s.Advance()
				if err != nil {
					require.ErrorIs(rt, err, ErrPageFetchInFlight)
				}
				if task != nil {
					pending = append(pending, task)
				}
			case 2:
				if len(pending) == 0 {
					continue
				}
				i := rapid.IntRange(0, len(pending)-1).Draw(rt, "complete")
				task := pending[i]
				pending = append(pending[:i], pending[i+1:]...)
				var c Completion
				if rapid.Bool().Draw(rt, "fail") {
					c = Completion{Key: task.Key(), Gen: task.Generation(), Err: errors.New("boom")}
				} else {
					c = Completion{Key: task.Key(), Gen: task.Generation(), Drafts: batch(rapid.IntRange(0, 4).Draw(rt, "n"))}
				}
				out, err := s.Apply(c)
				if err != nil {
					require.True(rt, errors.Is(err, ErrFetchFailed) || errors.Is(err, ErrNoContent), "unexpected error %v", err)
				}
				if out == OutcomeFailed {
					require.Error(rt, err)
				}
			case 3:
				if len(flat) == 0 {
					continue
				}
				n := flat[rapid.IntRange(0, len(flat)-1).Draw(rt, "retry")]
				task, err := s.Retry(n.ID())
				if err == nil {
					pending = append(pending, task)
				}
			}

			require.NoError(rt, s.Tree().Validate())
			w := len(s.Visible())
			require.GreaterOrEqual(rt, w, lastWindow, "window shrank")
			lastWindow = w
			for _, n := range s.Flatten() {
				if p, ok := n.Parent(); ok {
					parent, found := s.Node(p)
					require.True(rt, found)
					require.True(rt, parent.Expanded(), "visible node under collapsed parent")
				}
			}
		}
	})
}

func TestToggle_TwiceIsIdentityOnExpandedFlag(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, err := NewSession(Options{PageSize: 10, PlaceholderCount: 1})
		require.NoError(rt, err)
		n := seedRoots(s, drafts(1, rapid.StringMatching(`[A-Z][a-z]{1,8}`).Draw(rt, "topic")))[0]
		times := rapid.IntRange(1, 5).Draw(rt, "times")
		for range times {
			before := n.Expanded()
			_, err := s.Toggle(n.ID())
			require.NoError(rt, err)
			_, err = s.Toggle(n.ID())
			require.NoError(rt, err)
			require.Equal(rt, before, n.Expanded())
		}
		require.Equal(rt, 2*times, n.Interactions())
	})
}
