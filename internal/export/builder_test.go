package export

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/deepfeed/internal/feed"
	"github.com/ibeckermayer/deepfeed/internal/types"
)

func sessionWithChildren(t *testing.T) *feed.Session {
	t.Helper()
	s, err := feed.NewSession(feed.Options{PageSize: 10, PlaceholderCount: 1})
	require.NoError(t, err)

	start, err := s.Start()
	require.NoError(t, err)
	_, err = s.Apply(feed.Completion{Key: start.Key(), Gen: start.Gen, Drafts: []types.Draft{
		{Content: "Rome had <b>aqueducts</b>.", Topic: "History", Tags: []string{"rome"}, Source: types.AIGenerated()},
		{Content: "Trees talk.", Topic: "Nature", Source: types.News("Wire")},
	}})
	require.NoError(t, err)

	root := s.Visible()[0]
	task, err := s.Toggle(root.ID())
	require.NoError(t, err)
	_, err = s.Apply(feed.Completion{Key: task.Key(), Gen: task.Gen, Drafts: []types.Draft{
		{Content: "Some were 90km long.", Topic: "History", Links: []types.Link{{Title: "Aqua", URL: "https://example.org/aqua", Type: types.LinkDeepDive}}},
	}})
	require.NoError(t, err)

	other := s.Visible()[1]
	task, err = s.Toggle(other.ID())
	require.NoError(t, err)
	_, err = s.Apply(feed.Completion{Key: task.Key(), Gen: task.Gen, Err: errors.New("provider down")})
	require.Error(t, err)
	return s
}

func TestBuild(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	snap, err := b.Build(sessionWithChildren(t))
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Roots)
	assert.Equal(t, 4, snap.Nodes)
	assert.Equal(t, 1, snap.Focus)

	html := snap.HTML
	assert.Contains(t, html, "Rome had &lt;b&gt;aqueducts&lt;/b&gt;.")
	assert.NotContains(t, html, "<b>aqueducts")
	// roots sit one level from focus, children are in focus
	assert.Contains(t, html, "opacity: 0.75")
	assert.Contains(t, html, "opacity: 1.00")
	assert.Contains(t, html, "blur(0.5px)")
	assert.Contains(t, html, "background-color: #003380")
	assert.Contains(t, html, `href="https://example.org/aqua"`)
	assert.Contains(t, html, "provider down")
	assert.Contains(t, html, "news(Wire)")

	assert.Contains(t, snap.PlainText, "▾ [History] Rome had <b>aqueducts</b>.")
	assert.Contains(t, snap.PlainText, "  - [History] Some were 90km long.")
	assert.Contains(t, snap.PlainText, "  … [Nature] Loading more details about Nature...")
}

func TestBuild_Empty(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	s, err := feed.NewSession(feed.Options{PageSize: 10})
	require.NoError(t, err)
	_, err = b.Build(s)
	assert.Error(t, err)
}

func TestBuild_MarksExpired(t *testing.T) {
	s, err := feed.NewSession(feed.Options{PageSize: 10})
	require.NoError(t, err)
	start, err := s.Start()
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	_, err = s.Apply(feed.Completion{Key: start.Key(), Gen: start.Gen, Drafts: []types.Draft{
		{Content: "Polls close at noon.", Topic: "News", ExpiresAt: &past},
		{Content: "Launch window opens.", Topic: "Space", ExpiresAt: &future},
	}})
	require.NoError(t, err)

	b, err := New()
	require.NoError(t, err)
	snap, err := b.Build(s)
	require.NoError(t, err)
	assert.Contains(t, snap.HTML, `class="post expired"`)
	assert.Contains(t, snap.HTML, "1 expired")
	assert.Contains(t, snap.PlainText, "- [News, expired] Polls close at noon.")
	assert.Contains(t, snap.PlainText, "- [Space] Launch window opens.")
}
