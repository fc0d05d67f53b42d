package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/types"
)

// Corpus is the YAML fixture format: posts keyed by topic.
//
//	topics:
//	  History:
//	    - content: The Library of Alexandria ...
//	      tags: [libraries]
type Corpus struct {
	Topics map[string][]Entry `yaml:"topics"`
}

// Entry is one corpus post. Entries without a source are served as synthetic.
type Entry struct {
	types.Draft
	hasSource bool
}

func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&e.Draft); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "source" {
			e.hasSource = true
		}
	}
	return nil
}

// FixtureProvider serves canned posts without any network access. Topics
// missing from the corpus get generated sample text.
type FixtureProvider struct {
	corpus Corpus
	delay  time.Duration

	mu   sync.Mutex
	next map[string]int
}

// NewFixtureProvider creates a provider over corpus. delay simulates latency.
func NewFixtureProvider(corpus Corpus, delay time.Duration) *FixtureProvider {
	return &FixtureProvider{corpus: corpus, delay: delay, next: make(map[string]int)}
}

// LoadCorpus reads a YAML corpus file.
func LoadCorpus(path string) (Corpus, error) {
	var c Corpus
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read fixture corpus: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse fixture corpus %s: %w", path, err)
	}
	return c, nil
}

func (f *FixtureProvider) Name() string { return config.ProviderFixture }

// Generate returns the next req.Count posts for the topic, cycling through
// the corpus.
func (f *FixtureProvider) Generate(ctx context.Context, req Request) ([]types.Draft, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	n := max(req.Count, 1)
	entries := f.lookup(req.Topic)

	f.mu.Lock()
	start := f.next[req.Topic]
	f.next[req.Topic] = start + n
	f.mu.Unlock()

	out := make([]types.Draft, n)
	for i := range out {
		idx := start + i
		if len(entries) == 0 {
			out[i] = sampleDraft(req, idx)
			continue
		}
		e := entries[idx%len(entries)]
		d := e.Draft
		if d.Topic == "" {
			d.Topic = req.Topic
		}
		d.Tags = mergeTags(req.Tags, d.Tags)
		if !e.hasSource {
			d.Source = types.Synthetic()
		}
		out[i] = d
	}
	return out, nil
}

func (f *FixtureProvider) lookup(topic string) []Entry {
	if d, ok := f.corpus.Topics[topic]; ok {
		return d
	}
	for k, d := range f.corpus.Topics {
		if strings.EqualFold(k, topic) {
			return d
		}
	}
	return nil
}

func sampleDraft(req Request, idx int) types.Draft {
	content := "Sample content about " + req.Topic
	if idx > 0 {
		content = fmt.Sprintf("%s (%d)", content, idx+1)
	}
	return types.Draft{
		Content: content,
		Topic:   req.Topic,
		Tags:    mergeTags([]string{req.Topic}, req.Tags),
		Source:  types.Synthetic(),
	}
}
