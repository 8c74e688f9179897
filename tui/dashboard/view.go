package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/grovetools/crownest/tui/theme"
)

const (
	headerHeight = 2
	footerHeight = 2
)

func (m Model) View() string {
	t := theme.DefaultTheme
	var b strings.Builder

	role := string(m.opts.Participant.Role)
	if role == "" {
		role = "player"
	}
	b.WriteString(t.Title.Render("CROWNEST") + " " +
		t.Muted.Render(fmt.Sprintf("%s · %s (%s)", m.opts.Namespace, m.opts.Participant.ID, role)))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderTable() string {
	t := theme.DefaultTheme
	headers := []string{"DOMAIN", "KIND", "LAST", "BY", "AT", "SEEN"}
	if m.showData {
		headers = append(headers, "DATA")
	}

	rows := make([][]string, 0, len(m.order))
	for _, d := range m.order {
		r := m.rows[d]
		last, by, at := "-", "-", "-"
		if r.Count > 0 || !r.At.IsZero() {
			last, by, at = string(r.Action), r.Origin, r.At.Format("15:04:05")
		}
		row := []string{string(r.Domain), r.Kind.String(), last, by, at, strconv.Itoa(r.Count)}
		if m.showData {
			row = append(row, r.Summary)
		}
		rows = append(rows, row)
	}

	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return t.TableHeader
			}
			if col == 0 {
				return t.TableRow.Foreground(t.Colors.Cyan)
			}
			return t.TableRow
		}).
		String()
}

func (m Model) renderFooter() string {
	t := theme.DefaultTheme
	var parts []string
	if m.opts.Stats != nil {
		s := m.opts.Stats()
		parts = append(parts, fmt.Sprintf("dispatched %d · echo %d · dup %d · decode errors %d",
			s.Dispatched, s.SelfEcho, s.Duplicate, s.DecodeErrors))
	}
	var help []string
	for _, k := range m.keys.help() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	parts = append(parts, strings.Join(help, " • "))
	return t.Muted.Render(strings.Join(parts, "\n"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
