package tui

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/todokeeper/internal/client/filters"
	"github.com/dmitrijs2005/todokeeper/internal/client/models"
	"github.com/dmitrijs2005/todokeeper/internal/client/tagcolor"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Todos") + "   " + renderTabs(m.view.Counts, m.view.Tab))
	b.WriteString("\n")

	switch {
	case m.mode == modeSearch:
		b.WriteString(inputStyle.Render("Search titles\n" + m.input.View()))
		b.WriteString("\n")
	case m.view.Query != "":
		b.WriteString(mutedStyle.Render(fmt.Sprintf("filter: %q  (esc clears)", m.view.Query)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderList())

	if m.mode == modeAdd {
		title := "Add todo"
		if m.err != "" {
			title += "  " + errorStyle.Render(m.err)
		}
		b.WriteString("\n")
		b.WriteString(inputStyle.Render(title + "\n" + m.input.View()))
	}

	if m.pending != nil {
		b.WriteString("\n")
		b.WriteString(bannerStyle.Render(fmt.Sprintf("Deleted %q  press u to undo", m.pending.Title)))
	}

	if m.err != "" && m.mode != modeAdd {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err))
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	panel := panelStyle
	if m.width > 4 {
		panel = panel.Width(m.width - 2)
	}
	return panel.Render(b.String())
}

func renderTabs(c filters.Counts, current filters.Tab) string {
	parts := make([]string, 0, 3)
	for _, tab := range filters.Tabs() {
		label := fmt.Sprintf("%s %d", tab, c.For(tab))
		if tab == current {
			parts = append(parts, accentStyle.Render("["+label+"]"))
			continue
		}
		parts = append(parts, mutedStyle.Render(" "+label+" "))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderList() string {
	if len(m.view.Items) == 0 {
		switch {
		case m.loading:
			return mutedStyle.Render("Loading…")
		case m.view.Query != "":
			return mutedStyle.Render("No matching todos.")
		default:
			return mutedStyle.Render("No todos.")
		}
	}

	lines := make([]string, 0, len(m.view.Items))
	for i, t := range m.view.Items {
		prefix := "  "
		if i == m.cursor {
			prefix = selectedStyle.Render("> ")
		}
		lines = append(lines, prefix+renderRow(t))
	}
	return strings.Join(lines, "\n")
}

func renderRow(t models.Todo) string {
	box, title := mutedStyle.Render(boxUnchecked), t.Title
	if t.Completed {
		box, title = successStyle.Render(boxChecked), doneStyle.Render(t.Title)
	}

	line := box + " " + title
	if len(t.Tags) > 0 {
		line += "  " + tagcolor.RenderAll(t.Tags)
	}
	if t.IsTemp() {
		line += "  " + pendingStyle.Render("saving…")
	}
	return line
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, len(m.keys.shortHelp()))
	for _, k := range m.keys.shortHelp() {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}
