package providers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/ibeckermayer/deepfeed/internal/types"
)

var (
	// ErrInvalidResponse means the provider answered with nothing usable.
	ErrInvalidResponse = errors.New("invalid provider response")
	// ErrEncodingFailed means the request could not be encoded as UTF-8 text.
	ErrEncodingFailed = errors.New("request encoding failed")
)

// SystemPrompt frames every hosted-model request.
const SystemPrompt = "You are a concise knowledge assistant. Provide interesting facts in 1-3 sentences."

// defaultConfidence is attached to model output that does not report its own.
const defaultConfidence = 0.9

// Request asks a provider for Count posts about Topic.
type Request struct {
	Topic string
	Tags  []string
	Count int
}

// DraftResult represents the expected JSON structure from any LLM provider
type DraftResult struct {
	Content       string       `json:"content"`
	Tags          []string     `json:"tags"`
	RelatedTopics []string     `json:"related_topics"`
	Confidence    *float64     `json:"confidence"`
	Links         []types.Link `json:"links"`
}

// buildPrompt constructs the user prompt for one request
func buildPrompt(req Request) (string, error) {
	if !utf8.ValidString(req.Topic) {
		return "", fmt.Errorf("%w: topic %q", ErrEncodingFailed, req.Topic)
	}
	for _, tag := range req.Tags {
		if !utf8.ValidString(tag) {
			return "", fmt.Errorf("%w: tag %q", ErrEncodingFailed, tag)
		}
	}

	var sb strings.Builder

	tagString := ""
	if len(req.Tags) > 0 {
		tagString = " focusing on aspects related to: " + strings.Join(req.Tags, ", ")
	}
	n := max(req.Count, 1)
	if n == 1 {
		sb.WriteString(fmt.Sprintf("Share an interesting fact or insight about %q%s.\n", req.Topic, tagString))
	} else {
		sb.WriteString(fmt.Sprintf("Share %d different interesting facts or insights about %q%s.\n", n, req.Topic, tagString))
	}
	sb.WriteString("Keep each one concise (1-3 sentences), engaging, and suitable for a general audience.\n")
	sb.WriteString("Focus on providing uncommon knowledge that would make someone say \"I didn't know that!\"\n")
	sb.WriteString("Don't use introductory phrases like \"Did you know\" or concluding remarks.\n\n")

	sb.WriteString("For each fact, provide:\n")
	sb.WriteString("1. content (string): the fact itself\n")
	sb.WriteString("2. tags (array, max 3): short keywords for the fact\n")
	sb.WriteString("3. related_topics (array, max 3): topics a curious reader might explore next\n\n")

	sb.WriteString("IMPORTANT: Respond with ONLY a valid JSON array. No markdown, no code blocks, no explanation - just the raw JSON starting with [ and ending with ].\n\n")
	sb.WriteString("Example structure:\n")
	sb.WriteString(`[{"content": "...", "tags": ["..."], "related_topics": ["..."]}]`)
	sb.WriteString("\n")

	return sb.String(), nil
}

// ParseDraftResponse turns raw model output into drafts for req. A JSON array
// is preferred; plain prose is accepted as a single post when only one was
// asked for.
func ParseDraftResponse(text string, req Request, source types.Source) ([]types.Draft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	var results []DraftResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &results); err != nil {
		if max(req.Count, 1) == 1 && !strings.HasPrefix(text, "[") {
			results = []DraftResult{{Content: text}}
		} else {
			return nil, fmt.Errorf("%w: failed to parse draft JSON: %w (response was: %.500s)", ErrInvalidResponse, err, text)
		}
	}

	now := time.Now()
	drafts := make([]types.Draft, 0, len(results))
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		conf := r.Confidence
		if conf == nil {
			c := defaultConfidence
			conf = &c
		}
		drafts = append(drafts, types.Draft{
			Content:       content,
			Topic:         req.Topic,
			Tags:          mergeTags(req.Tags, r.Tags),
			Source:        source,
			PublishedAt:   &now,
			Confidence:    conf,
			Links:         r.Links,
			RelatedTopics: r.RelatedTopics,
		})
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no usable posts in response", ErrInvalidResponse)
	}
	if req.Count > 0 && len(drafts) > req.Count {
		drafts = drafts[:req.Count]
	}
	return drafts, nil
}

// mergeTags keeps the requested tags first so children stay anchored to
// their parent.
func mergeTags(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	var out []string
	for _, t := range append(append([]string(nil), base...), extra...) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var (
	fencedJSON = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(\[.*?\])\s*\n?` + "```")
	rawJSON    = regexp.MustCompile(`(?s)(\[.*\])`)
)

// extractJSON pulls a JSON array out of a markdown code block or surrounding
// prose.
func extractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	if m := rawJSON.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return text
}
