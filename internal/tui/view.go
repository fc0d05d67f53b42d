package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ibeckermayer/deepfeed/internal/feed"
	"github.com/ibeckermayer/deepfeed/internal/render"
)

// terminal is the background posts are faded towards.
var terminal = render.RGB{R: 0.04, G: 0.06, B: 0.13}

var text = render.RGB{R: 0.94, G: 0.96, B: 1.0}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9cd0ff"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7891"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#c8d0ea"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff9b9b"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff"))
)

// rowStyle colours a post by its distance from the focus depth. Terminals
// have no blur, so posts more than a level away are drawn faint instead.
func rowStyle(focus, depth int, selected bool) lipgloss.Style {
	w := render.For(focus, depth)
	bg := render.Tint(depth).Fade(terminal, w.Opacity)
	fg := text.Fade(terminal, w.Opacity)
	return lipgloss.NewStyle().
		Background(lipgloss.Color(bg.Hex())).
		Foreground(lipgloss.Color(fg.Hex())).
		Faint(w.Blur >= 1).
		Bold(selected)
}

func (m Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("deepfeed · focus depth %d · page %d", m.session.Focus(), m.session.Pager().Page()+1)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(fmt.Sprintf("  %s loading posts...\n", m.spinner.View()))
	}

	start, end := 0, len(m.rows)
	if h := m.bodyHeight(); h > 0 {
		start = min(m.offset, len(m.rows))
		end = min(start+h, len(m.rows))
	}
	focus := m.session.Focus()
	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], focus, i == m.cursor))
		b.WriteString("\n")
	}

	b.WriteString(m.footer())
	return b.String()
}

func (m Model) renderRow(n *feed.Node, focus int, selected bool) string {
	cursor := "  "
	if selected {
		cursor = "› "
	}
	line := fmt.Sprintf("%s%s [%s] %s", strings.Repeat("  ", n.Depth()), m.marker(n), n.Topic(), n.Content())
	if m.width > 0 {
		line = truncate(line, m.width-len([]rune(cursor)))
	}

	row := cursor + rowStyle(focus, n.Depth(), selected).Render(line)
	if err := n.Err(); err != nil {
		row += " " + errorStyle.Render("! "+err.Error())
	}
	return row
}

func (m Model) marker(n *feed.Node) string {
	switch {
	case n.Placeholder() && n.Err() != nil:
		return "!"
	case n.Placeholder():
		return m.spinner.View()
	case n.Expanded():
		return "▾"
	case n.ChildState() == feed.ChildrenReady && n.NumChildren() == 0:
		return "·"
	default:
		return "▸"
	}
}

func (m Model) footer() string {
	switch {
	case m.err != nil:
		return errorStyle.Render(m.err.Error())
	case m.status != "":
		s := m.status
		if m.pending > 0 {
			s = m.spinner.View() + " " + s
		}
		return statusStyle.Render(s)
	}
	parts := make([]string, 0, len(keys.help()))
	for _, k := range keys.help() {
		parts = append(parts, k.Help().Key+" "+k.Help().Desc)
	}
	return helpStyle.Render(strings.Join(parts, " · "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
