package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
)

const helpText = "g: go to | t: translation | m: mode | v: verse numbers | T: theme | +/-: spacing | r: retry | q: quit"

func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	title := "Library"
	if cur, ok := m.eng.reporter.Current(); ok {
		title = cur.Book + " " + cur.Chapter
	} else if chs := m.win.Chapters(); len(chs) > 0 {
		title = chs[0].Display()
	}
	title = fmt.Sprintf("%s · %s · %s", title, displayOr(m.win.Translation(), "default"), m.settings.DisplayMode)
	header := m.styles.Header.Render(title)

	var status string
	switch {
	case m.err != nil:
		status = m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	case m.retranslating:
		status = m.spinner.View() + m.styles.Status.Render(" Switching translation...")
	case m.win.LoadingPrev() || m.win.LoadingNext():
		status = m.spinner.View() + m.styles.Status.Render(" Loading...")
	case !m.win.HasMore():
		status = m.styles.Help.Render("End of text")
	}

	help := m.styles.Help.Render(helpText)
	if m.mode == modeGoto {
		help = m.input.View()
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), status, help)
}

func displayOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// renderChapter returns the rendered block and the line, relative to the
// block, where each verse starts, keyed by verse index.
func (m Model) renderChapter(ch *api.Chapter) (string, map[int]int) {
	var sb strings.Builder
	heading := m.styles.Heading.Render(ch.Display())
	sb.WriteString(heading)
	y := lipgloss.Height(heading)

	tops := make(map[int]int, len(ch.Verses))
	gap := strings.Repeat("\n", m.settings.LineSpacing)
	for _, v := range ch.Verses {
		tops[v.Index] = y
		verse := m.renderVerse(v)
		sb.WriteString("\n")
		sb.WriteString(verse)
		sb.WriteString(gap)
		y += lipgloss.Height(verse) + m.settings.LineSpacing
	}
	return sb.String(), tops
}

func (m Model) renderVerse(v api.Verse) string {
	var rows []string
	if m.settings.DisplayMode.ShowsSource() {
		if s := renderContent(v.Source, m.styles.Source); s != "" {
			rows = append(rows, s)
		}
	}
	if m.settings.DisplayMode.ShowsTarget() {
		if s := renderContent(v.Target, m.styles.Text); s != "" {
			rows = append(rows, s)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, "")
	}
	body := lipgloss.JoinVertical(lipgloss.Left, rows...)
	if !m.settings.ShowVerseNumbers {
		return body
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.styles.Verse.Render(strconv.Itoa(v.Index)), " ", body)
}

func renderContent(c api.Content, base lipgloss.Style) string {
	switch c := c.(type) {
	case nil:
		return ""
	case api.PlainContent:
		if c == "" {
			return ""
		}
		return base.Render(string(c))
	case api.StructuredContent:
		if len(c.Spans) == 0 {
			return ""
		}
		inline := base.UnsetWidth()
		var sb strings.Builder
		for _, span := range c.Spans {
			st := inline
			switch span.Kind {
			case "em", "i":
				st = st.Italic(true)
			case "strong", "b":
				st = st.Bold(true)
			}
			sb.WriteString(st.Render(span.Text))
		}
		return base.Render(sb.String())
	}
	return base.Render(c.Text())
}
