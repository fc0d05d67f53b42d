package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/deepfeed/internal/types"
)

func TestFixtureProvider_SampleContent(t *testing.T) {
	p := NewFixtureProvider(Corpus{}, 0)
	drafts, err := p.Generate(context.Background(), Request{Topic: "Technology", Count: 1})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Sample content about Technology", drafts[0].Content)
	assert.Equal(t, []string{"Technology"}, drafts[0].Tags)
	assert.Equal(t, types.SourceSynthetic, drafts[0].Source.Kind)

	drafts, err = p.Generate(context.Background(), Request{Topic: "Technology", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, "Sample content about Technology (2)", drafts[0].Content)
	assert.Equal(t, "Sample content about Technology (3)", drafts[1].Content)
}

func TestFixtureProvider_Corpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
topics:
  History:
    - content: The Great Wall was built over two millennia.
      tags: [china]
    - content: Cleopatra lived closer to the Moon landing than to the pyramids.
      source:
        kind: news
        origin: Almanac
`), 0600))

	corpus, err := LoadCorpus(path)
	require.NoError(t, err)
	p := NewFixtureProvider(corpus, 0)

	drafts, err := p.Generate(context.Background(), Request{Topic: "history", Tags: []string{"ancient"}, Count: 3})
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, "history", drafts[0].Topic)
	assert.Equal(t, []string{"ancient", "china"}, drafts[0].Tags)
	assert.Equal(t, types.SourceSynthetic, drafts[0].Source.Kind)
	assert.Equal(t, types.News("Almanac"), drafts[1].Source)
	assert.Equal(t, drafts[0].Content, drafts[2].Content, "corpus cycles")
}

func TestFixtureProvider_ExplicitAISourceKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
topics:
  Science:
    - content: Bananas are slightly radioactive.
      source:
        kind: ai_generated
      confidence: 0.8
    - content: Honey never spoils.
      confidence: 0.8
`), 0600))

	corpus, err := LoadCorpus(path)
	require.NoError(t, err)
	drafts, err := NewFixtureProvider(corpus, 0).Generate(context.Background(), Request{Topic: "Science", Count: 2})
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, types.AIGenerated(), drafts[0].Source)
	require.NotNil(t, drafts[0].Confidence)
	assert.Equal(t, 0.8, *drafts[0].Confidence)
	assert.Equal(t, types.Synthetic(), drafts[1].Source)
}

func TestFixtureProvider_DelayHonoursContext(t *testing.T) {
	p := NewFixtureProvider(Corpus{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Generate(ctx, Request{Topic: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDraftsFromArticle(t *testing.T) {
	art := Article{
		Title:      "Roman aqueduct",
		URL:        "https://en.wikipedia.org/wiki/Roman_aqueduct",
		Paragraphs: []string{"first paragraph", "second paragraph"},
		Related:    []string{"Pont du Gard"},
	}
	drafts := draftsFromArticle(art, Request{Topic: "Rome", Tags: []string{"engineering"}, Count: 3}, 1)
	require.Len(t, drafts, 2, "never more than the article has")
	assert.Equal(t, "second paragraph", drafts[0].Content)
	assert.Equal(t, "first paragraph", drafts[1].Content)
	assert.Equal(t, []string{"engineering", "Roman aqueduct"}, drafts[0].Tags)
	assert.Equal(t, types.SourceReference, drafts[0].Source.Kind)
	assert.Equal(t, types.LinkSource, drafts[0].Links[0].Type)
	assert.Equal(t, []string{"Pont du Gard"}, drafts[0].RelatedTopics)

	assert.Nil(t, draftsFromArticle(Article{}, Request{Topic: "x"}, 0))
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "https://de.wikipedia.org/wiki/Special:Search?go=Go&search=Roman+Empire", searchURL("de", "Roman Empire"))
}
