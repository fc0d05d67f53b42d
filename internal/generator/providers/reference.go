package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/browser"
	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/types"
)

const (
	// WaitForArticle is present on every rendered article page
	WaitForArticle = `#mw-content-text`
	pageTimeout    = 30 * time.Second
)

// ErrClosed is returned by a ReferenceProvider used after Close.
var ErrClosed = errors.New("reference provider closed")

// ReferenceProvider reads encyclopedia articles in a headless browser and
// turns their lead paragraphs into posts.
type ReferenceProvider struct {
	headless   bool
	language   string
	paragraphs int
	log        *zap.Logger

	startOnce  sync.Once
	startErr   error
	browserCtx context.Context

	// mu guards stop, closed and cursor
	mu     sync.Mutex
	stop   context.CancelFunc
	closed bool
	cursor map[string]int
}

// NewReferenceProvider creates a provider. The browser starts on first use.
func NewReferenceProvider(cfg config.ReferenceConfig, log *zap.Logger) *ReferenceProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReferenceProvider{
		headless:   cfg.Headless,
		language:   cfg.Language,
		paragraphs: max(cfg.Paragraphs, 1),
		log:        log.With(zap.String("provider", config.ProviderReference)),
		cursor:     make(map[string]int),
	}
}

func (r *ReferenceProvider) Name() string { return config.ProviderReference }

// Close shuts the browser down. A browser that has not started yet never
// will.
func (r *ReferenceProvider) Close() {
	r.mu.Lock()
	stop := r.stop
	r.stop = nil
	r.closed = true
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Article is the raw data extracted from the DOM via JavaScript
type Article struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Paragraphs []string `json:"paragraphs"`
	Related    []string `json:"related"`
}

// extractJS collects the title, canonical URL, lead paragraphs and the
// articles they link to.
const extractJS = `
	(function() {
		const root = document.querySelector('#mw-content-text .mw-parser-output');
		const title = document.querySelector('#firstHeading')?.textContent?.trim() || document.title;
		const canonical = document.querySelector('link[rel="canonical"]')?.href || location.href;
		const paragraphs = [];
		const related = [];
		if (root) {
			for (const p of root.querySelectorAll(':scope > p')) {
				if (p.classList.contains('mw-empty-elt')) continue;
				p.querySelectorAll('sup.reference').forEach(s => s.remove());
				const text = p.textContent.trim();
				if (text.length < 40) continue;
				paragraphs.push(text);
				p.querySelectorAll('a[href^="/wiki/"]').forEach(a => {
					const name = a.getAttribute('title');
					if (name && !name.includes(':') && !related.includes(name)) related.push(name);
				});
				if (paragraphs.length >= %d) break;
			}
		}
		return {title, url: canonical, paragraphs, related: related.slice(0, 5)};
	})()
`

// Generate looks the topic up and returns the next req.Count lead paragraphs.
func (r *ReferenceProvider) Generate(ctx context.Context, req Request) ([]types.Draft, error) {
	if err := r.start(); err != nil {
		return nil, err
	}

	art, err := r.Lookup(ctx, req.Topic)
	if err != nil {
		return nil, err
	}

	n := max(req.Count, 1)
	r.mu.Lock()
	offset := r.cursor[req.Topic]
	r.cursor[req.Topic] = offset + n
	r.mu.Unlock()

	return draftsFromArticle(art, req, offset), nil
}

func (r *ReferenceProvider) start() error {
	r.startOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			r.startErr = ErrClosed
			return
		}
		ctx, stop, err := browser.Start(context.Background(), r.headless)
		if err != nil {
			r.startErr = fmt.Errorf("failed to start browser: %w", err)
			return
		}
		r.browserCtx, r.stop = ctx, stop
	})
	if r.startErr != nil {
		return r.startErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return nil
}

// Lookup opens the article for topic in a new tab and extracts it.
func (r *ReferenceProvider) Lookup(ctx context.Context, topic string) (Article, error) {
	var art Article
	if err := r.start(); err != nil {
		return art, err
	}

	tabCtx, cancel := chromedp.NewContext(r.browserCtx)
	defer cancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, pageTimeout)
	defer timeoutCancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetExtraHTTPHeaders(network.Headers{
				"Accept-Language": r.language,
			}).Do(ctx)
		}),
		chromedp.Navigate(searchURL(r.language, topic)),
		chromedp.WaitReady(WaitForArticle, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(extractJS, r.paragraphs), &art),
	)
	if err != nil {
		return art, fmt.Errorf("failed to load article for %q: %w", topic, err)
	}
	if len(art.Paragraphs) == 0 {
		return art, fmt.Errorf("%w: no article text for %q", ErrInvalidResponse, topic)
	}
	r.log.Debug("article extracted",
		zap.String("topic", topic),
		zap.String("title", art.Title),
		zap.Int("paragraphs", len(art.Paragraphs)),
	)
	return art, nil
}

func searchURL(lang, topic string) string {
	q := url.Values{"search": {topic}, "go": {"Go"}}
	return fmt.Sprintf("https://%s.wikipedia.org/wiki/Special:Search?%s", lang, q.Encode())
}

// draftsFromArticle takes req.Count paragraphs starting at offset, wrapping
// around the article.
func draftsFromArticle(art Article, req Request, offset int) []types.Draft {
	if len(art.Paragraphs) == 0 {
		return nil
	}
	n := min(max(req.Count, 1), len(art.Paragraphs))
	tags := mergeTags(req.Tags, []string{art.Title})
	out := make([]types.Draft, 0, n)
	for i := range n {
		text := art.Paragraphs[(offset+i)%len(art.Paragraphs)]
		out = append(out, types.Draft{
			Content: strings.TrimSpace(text),
			Topic:   req.Topic,
			Tags:    tags,
			Source:  types.Reference(),
			Links: []types.Link{{
				Title: art.Title,
				URL:   art.URL,
				Type:  types.LinkSource,
			}},
			RelatedTopics: art.Related,
		})
	}
	return out
}
