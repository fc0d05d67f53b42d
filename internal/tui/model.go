// Package tui is the terminal front end. The bubbletea update loop owns the
// feed session: fetches run as commands and their completions come back as
// messages.
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/feed"
)

// Backend runs fetches and the side effects the UI triggers.
type Backend interface {
	RunTask(ctx context.Context, t feed.Task) feed.Completion
	FlushInterests(s *feed.Session) error
	Export(s *feed.Session) (string, error)
	OpenLink(url string) error
}

// FlushMsg asks the model to persist interests. The scheduler sends it with
// Program.Send.
type FlushMsg struct{}

type startMsg struct{}

type completionMsg struct {
	c feed.Completion
}

type statusMsg struct {
	text string
	err  error
}

// Model is the feed view.
type Model struct {
	ctx     context.Context
	session *feed.Session
	backend Backend
	log     *zap.Logger

	rows     []*feed.Node
	cursor   int
	selected feed.NodeID
	offset   int

	width   int
	height  int
	pending int
	status  string
	err     error
	spinner spinner.Model
}

// New creates a model over a session that has not been started.
func New(ctx context.Context, s *feed.Session, b Backend, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}
	return Model{
		ctx:     ctx,
		session: s,
		backend: b,
		log:     log.Named("tui"),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return startMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scroll()
		return m, nil

	case startMsg:
		t, err := m.session.Start()
		if err != nil {
			m.setErr(err)
			return m, nil
		}
		m.status = "loading feed"
		return m, m.runPage(t)

	case completionMsg:
		m.pending--
		_, err := m.session.Apply(msg.c)
		switch {
		case errors.Is(err, feed.ErrNoContent):
			m.status = "no more posts"
			m.err = nil
		case err != nil:
			m.setErr(err)
		case m.pending == 0:
			m.status = ""
			m.err = nil
		}
		m.sync()
		return m, nil

	case FlushMsg:
		if err := m.backend.FlushInterests(m.session); err != nil {
			m.setErr(err)
		}
		return m, nil

	case statusMsg:
		m.status = msg.text
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if err := m.backend.FlushInterests(m.session); err != nil {
			m.log.Warn("failed to flush interests on exit", zap.Error(err))
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		m.move(m.cursor - 1)
		return m, nil

	case key.Matches(msg, keys.Top):
		m.move(0)
		return m, nil

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.move(m.cursor + 1)
			return m, nil
		}
		// at the bottom, moving on asks for the next page
		cmd := m.advance()
		m.move(m.cursor + 1)
		return m, cmd

	case key.Matches(msg, keys.More):
		return m, m.advance()

	case key.Matches(msg, keys.Toggle):
		n := m.current()
		if n == nil {
			return m, nil
		}
		t, err := m.session.Toggle(n.ID())
		if err != nil {
			m.setErr(err)
			return m, nil
		}
		m.sync()
		return m, m.runChildren(t)

	case key.Matches(msg, keys.Retry):
		n := m.current()
		if n == nil {
			return m, nil
		}
		id := n.ID()
		if parent, ok := n.Parent(); ok && n.Placeholder() {
			id = parent
		}
		t, err := m.session.Retry(id)
		if err != nil {
			m.setErr(err)
			return m, nil
		}
		m.sync()
		return m, m.runChildren(t)

	case key.Matches(msg, keys.Open):
		n := m.current()
		if n == nil {
			return m, nil
		}
		links := n.Links()
		if len(links) == 0 {
			m.status = "no link on this post"
			return m, nil
		}
		url, b := links[0].URL, m.backend
		return m, func() tea.Msg {
			if err := b.OpenLink(url); err != nil {
				return statusMsg{err: err}
			}
			return statusMsg{text: "opened " + url}
		}

	case key.Matches(msg, keys.Export):
		path, err := m.backend.Export(m.session)
		if err != nil {
			m.setErr(err)
			return m, nil
		}
		m.status = "exported to " + path
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) advance() tea.Cmd {
	t, err := m.session.Advance()
	switch {
	case errors.Is(err, feed.ErrPageFetchInFlight):
		m.status = "loading more posts"
		return nil
	case err != nil:
		m.setErr(err)
		return nil
	}
	m.sync()
	return m.runPage(t)
}

func (m *Model) runChildren(t *feed.ChildFetch) tea.Cmd {
	if t == nil {
		return nil
	}
	return m.run(t)
}

func (m *Model) runPage(t *feed.PageFetch) tea.Cmd {
	if t == nil {
		return nil
	}
	return m.run(t)
}

// run hands t to the backend off the update loop.
func (m *Model) run(t feed.Task) tea.Cmd {
	m.pending++
	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		return completionMsg{c: b.RunTask(ctx, t)}
	}
}

func (m *Model) setErr(err error) {
	m.log.Debug("operation failed", zap.Error(err))
	m.err = err
	m.status = ""
}

func (m *Model) current() *feed.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor]
}

func (m *Model) move(i int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(i, 0), len(m.rows)-1)
	m.selected = m.rows[m.cursor].ID()
	m.scroll()
}

// sync refreshes rows after the session changed, keeping the cursor on the
// selected node or, if it was collapsed away, on its nearest visible
// ancestor.
func (m *Model) sync() {
	m.rows = m.session.Flatten()
	if len(m.rows) == 0 {
		m.cursor = 0
		return
	}
	id, ok := m.selected, true
	for ok {
		if i := m.indexOf(id); i >= 0 {
			m.move(i)
			return
		}
		n, found := m.session.Node(id)
		if !found {
			break
		}
		id, ok = n.Parent()
	}
	m.move(m.cursor)
}

func (m *Model) indexOf(id feed.NodeID) int {
	for i, n := range m.rows {
		if n.ID() == id {
			return i
		}
	}
	return -1
}

func (m *Model) scroll() {
	h := m.bodyHeight()
	if h <= 0 {
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

// bodyHeight is the number of post rows that fit; zero means unknown.
func (m *Model) bodyHeight() int {
	if m.height == 0 {
		return 0
	}
	return max(m.height-3, 1)
}
