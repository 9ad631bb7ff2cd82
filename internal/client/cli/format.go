package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dmitrijs2005/todokeeper/internal/client/filters"
	"github.com/dmitrijs2005/todokeeper/internal/client/models"
	"github.com/dmitrijs2005/todokeeper/internal/client/tagcolor"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)

	boxChecked   = "☑"
	boxUnchecked = "☐"
)

func formatTodo(t models.Todo) string {
	box, title := mutedStyle.Render(boxUnchecked), t.Title
	if t.Completed {
		box, title = successStyle.Render(boxChecked), doneStyle.Render(t.Title)
	}

	line := box + " " + title
	if len(t.Tags) > 0 {
		line += "  " + tagcolor.RenderAll(t.Tags)
	}
	if t.IsTemp() {
		return line + "  " + pendingStyle.Render("saving…")
	}
	return line + "  " + mutedStyle.Render(t.ID)
}

func formatCounts(c filters.Counts, current filters.Tab) string {
	parts := make([]string, 0, 3)
	for _, tab := range filters.Tabs() {
		label := fmt.Sprintf("%s %d", tab, c.For(tab))
		if tab == current {
			label = accentStyle.Render("[" + label + "]")
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

func formatDetail(t models.Todo) string {
	status := pendingStyle.Render("open")
	if t.Completed {
		status = successStyle.Render("done")
	}

	lines := []string{
		titleStyle.Render(t.Title),
		"id:          " + t.ID,
		"status:      " + status,
	}
	if d := t.DescriptionText(); d != "" {
		lines = append(lines, "description: "+strings.ReplaceAll(d, "\n", "\n             "))
	}
	if len(t.Tags) > 0 {
		lines = append(lines, "tags:        "+tagcolor.RenderAll(t.Tags))
	}
	lines = append(lines,
		"created:     "+t.CreatedAt.Local().Format(time.DateTime),
		"updated:     "+t.UpdatedAt.Local().Format(time.DateTime),
	)
	return strings.Join(lines, "\n")
}
