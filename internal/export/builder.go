// Package export renders the visible feed as a standalone HTML page styled by
// the render weights of each post.
package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ibeckermayer/deepfeed/internal/feed"
	"github.com/ibeckermayer/deepfeed/internal/render"
)

// Builder creates snapshots from a session
type Builder struct {
	template *template.Template
	// indentPx is the left margin added per depth level
	indentPx int
}

// New creates a new snapshot builder
func New() (*Builder, error) {
	tmpl, err := template.New("snapshot").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		template: tmpl,
		indentPx: 24,
	}, nil
}

// Snapshot represents a rendered page
type Snapshot struct {
	HTML      string
	PlainText string
	Roots     int
	Nodes     int
	Focus     int
	CreatedAt time.Time
}

// PageData is the template data structure
type PageData struct {
	Title string
	Date  string
	Focus int
	Posts []PostData
	Stats StatsData
}

// PostData represents a post in the snapshot template
type PostData struct {
	Depth       int
	Indent      int
	Content     string
	Topic       string
	Tags        []string
	Source      string
	Confidence  string
	Links       []LinkData
	Related     []string
	Placeholder bool
	Error       string
	Expanded    bool
	HasChildren bool
	Expired     bool

	Opacity string
	Blur    string
	Tint    string
}

type LinkData struct {
	Title string
	URL   string
	Type  string
}

// StatsData contains snapshot statistics
type StatsData struct {
	Visible  int
	Buffered int
	Pages    int
	Expired  int
}

// Build renders every visible post of s. It must run on the goroutine that
// owns s.
func (b *Builder) Build(s *feed.Session) (*Snapshot, error) {
	nodes := s.Flatten()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no posts to export")
	}

	now := time.Now()
	focus := s.Focus()
	data := PageData{
		Title: "deepfeed",
		Date:  now.Format("Monday, January 2 15:04"),
		Focus: focus,
		Posts: make([]PostData, len(nodes)),
		Stats: StatsData{
			Visible:  len(s.Visible()),
			Buffered: s.Tree().RootCount(),
			Pages:    s.Pager().Page() + 1,
		},
	}

	for i, n := range nodes {
		w := render.For(focus, n.Depth())
		tint := render.Tint(n.Depth())
		p := PostData{
			Depth:       n.Depth(),
			Indent:      n.Depth() * b.indentPx,
			Content:     n.Content(),
			Topic:       n.Topic(),
			Tags:        n.Tags(),
			Source:      n.Source().String(),
			Related:     n.RelatedTopics(),
			Placeholder: n.Placeholder(),
			Expanded:    n.Expanded(),
			HasChildren: n.NumChildren() > 0,
			Expired:     n.Expired(now),
			Opacity:     fmt.Sprintf("%.2f", w.Opacity),
			Blur:        fmt.Sprintf("%.1f", w.Blur),
			Tint:        strings.TrimPrefix(tint.Hex(), "#"),
		}
		if c, ok := n.Confidence(); ok {
			p.Confidence = fmt.Sprintf("%.0f%%", c*100)
		}
		if err := n.Err(); err != nil {
			p.Error = err.Error()
		} else if err := n.FetchErr(); err != nil {
			p.Error = err.Error()
		}
		for _, l := range n.Links() {
			p.Links = append(p.Links, LinkData{Title: l.Title, URL: l.URL, Type: string(l.Type)})
		}
		data.Posts[i] = p
	}
	s.Tree().Walk(func(n *feed.Node) {
		if n.Expired(now) {
			data.Stats.Expired++
		}
	})

	// Render HTML
	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Snapshot{
		HTML:      htmlBuf.String(),
		PlainText: buildPlainText(data),
		Roots:     len(s.Visible()),
		Nodes:     len(nodes),
		Focus:     focus,
		CreatedAt: now,
	}, nil
}

func buildPlainText(data PageData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%s\n%s\n\n", data.Title, data.Date))

	for _, p := range data.Posts {
		indent := strings.Repeat("  ", p.Depth)
		marker := "-"
		switch {
		case p.Placeholder:
			marker = "…"
		case p.Expanded:
			marker = "▾"
		case p.HasChildren:
			marker = "▸"
		}
		topic := p.Topic
		if p.Expired {
			topic += ", expired"
		}
		buf.WriteString(fmt.Sprintf("%s%s [%s] %s\n", indent, marker, topic, p.Content))
		if p.Error != "" {
			buf.WriteString(fmt.Sprintf("%s  ! %s\n", indent, p.Error))
		}
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 720px; margin: 0 auto; padding: 20px; background: #0b1020; color: #f0f4ff; }
        h1 { margin-bottom: 5px; }
        .date { color: #9aa4c0; margin-bottom: 20px; }
        .post { border-radius: 8px; padding: 12px 14px; margin: 8px 0; line-height: 1.4; transition: opacity .2s, filter .2s; }
        .post.placeholder { font-style: italic; }
        .post.expired .content { text-decoration: line-through; }
        .meta { font-size: 12px; color: #c8d0ea; margin-bottom: 6px; }
        .tag { background: rgba(255,255,255,.12); padding: 2px 8px; border-radius: 12px; font-size: 12px; margin-right: 5px; }
        .error { color: #ff9b9b; font-size: 13px; margin-top: 6px; }
        .link { color: #9cd0ff; text-decoration: none; font-size: 13px; margin-right: 10px; }
        .related { font-size: 12px; color: #9aa4c0; margin-top: 6px; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #223; color: #777; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <div class="date">{{.Date}} · focus depth {{.Focus}}</div>

    {{range .Posts}}
    <div class="post{{if .Placeholder}} placeholder{{end}}{{if .Expired}} expired{{end}}" data-depth="{{.Depth}}" style="margin-left: {{.Indent}}px; opacity: {{.Opacity}}; filter: blur({{.Blur}}px); background-color: #{{.Tint}}">
        <div class="meta">{{.Topic}} · {{.Source}}{{if .Confidence}} · {{.Confidence}}{{end}}{{if .Expired}} · expired{{end}}</div>
        <div class="content">{{.Content}}</div>
        {{if .Tags}}<div class="tags">{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</div>{{end}}
        {{range .Links}}<a href="{{.URL}}" class="link">{{.Title}} ({{.Type}}) →</a>{{end}}
        {{if .Related}}<div class="related">Related: {{range $i, $r := .Related}}{{if $i}}, {{end}}{{$r}}{{end}}</div>{{end}}
        {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
    </div>
    {{end}}

    <div class="footer">
        Showing {{.Stats.Visible}} of {{.Stats.Buffered}} posts over {{.Stats.Pages}} pages{{if .Stats.Expired}} · {{.Stats.Expired}} expired{{end}} · Generated by deepfeed
    </div>
</body>
</html>`
