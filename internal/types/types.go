package types

import (
	"fmt"
	"time"
)

// SourceKind identifies where a post's content came from
type SourceKind int

const (
	SourceAIGenerated SourceKind = iota
	SourceNews
	SourceSocial
	SourceReference
	SourceUserContributed
	SourceSynthetic
)

func (k SourceKind) String() string {
	switch k {
	case SourceAIGenerated:
		return "ai_generated"
	case SourceNews:
		return "news"
	case SourceSocial:
		return "social"
	case SourceReference:
		return "reference"
	case SourceUserContributed:
		return "user_contributed"
	case SourceSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// ParseSourceKind is the inverse of SourceKind.String
func ParseSourceKind(s string) (SourceKind, error) {
	for k := SourceAIGenerated; k <= SourceSynthetic; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown source kind: %q", s)
}

func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SourceKind) UnmarshalText(text []byte) error {
	parsed, err := ParseSourceKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Source is a tagged variant. Origin holds the news outlet for SourceNews and
// the account handle for SourceSocial; it is empty otherwise.
type Source struct {
	Kind   SourceKind `json:"kind" yaml:"kind"`
	Origin string     `json:"origin,omitempty" yaml:"origin,omitempty"`
}

func AIGenerated() Source { return Source{Kind: SourceAIGenerated} }
func News(origin string) Source { return Source{Kind: SourceNews, Origin: origin} }
func Social(handle string) Source { return Source{Kind: SourceSocial, Origin: handle} }
func Reference() Source { return Source{Kind: SourceReference} }
func UserContributed() Source { return Source{Kind: SourceUserContributed} }
func Synthetic() Source { return Source{Kind: SourceSynthetic} }
func (s Source) Is(k SourceKind) bool { return s.Kind == k }

func (s Source) String() string {
	if s.Origin == "" {
		return s.Kind.String()
	}
	return s.Kind.String() + "(" + s.Origin + ")"
}

// LinkType classifies an external citation
type LinkType string

const (
	LinkSource         LinkType = "source"
	LinkRelatedArticle LinkType = "related_article"
	LinkDeepDive       LinkType = "deep_dive"
	LinkOriginalPost   LinkType = "original_post"
)

// Link is an external citation attached to a post
type Link struct {
	Title string   `json:"title" yaml:"title"`
	URL   string   `json:"url" yaml:"url"`
	Type  LinkType `json:"type" yaml:"type"`
}

// Draft is a post as produced by a content provider, before the feed assigns
// it an identity and a place in the tree.
type Draft struct {
	Content       string     `json:"content" yaml:"content"`
	Topic         string     `json:"topic" yaml:"topic"`
	Tags          []string   `json:"tags" yaml:"tags"`
	Source        Source     `json:"source" yaml:"source"`
	PublishedAt   *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Confidence    *float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Links         []Link     `json:"links,omitempty" yaml:"links,omitempty"`
	RelatedTopics []string   `json:"related_topics,omitempty" yaml:"related_topics,omitempty"`
}
