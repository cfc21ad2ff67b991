package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ecmdash/internal/cases"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(14)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailBox     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).MarginLeft(2)
)

var statusColors = map[cases.Status]lipgloss.Color{
	cases.StatusCreated:    lipgloss.Color("39"),
	cases.StatusInProgress: lipgloss.Color("214"),
	cases.StatusOnHold:     lipgloss.Color("244"),
	cases.StatusCompleted:  lipgloss.Color("42"),
}

func renderStatus(s cases.Status) string {
	return lipgloss.NewStyle().Foreground(statusColors[s]).Render(string(s))
}

func renderCaseTable(list []cases.Summary) string {
	if len(list) == 0 {
		return mutedStyle.Render("No cases.")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME")
	for _, c := range list {
		t.Row(strconv.FormatInt(c.ID, 10), c.Name)
	}
	return t.String()
}

func renderDetail(d cases.Detail) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}
	lines := []string{
		titleStyle.Render(d.Name),
		row("Case", strconv.FormatInt(d.ID, 10)),
		row("Team manager", d.TeamManager),
		row("Status", renderStatus(d.Status)),
		row("Start", d.Start.String()),
		row("End", d.End.String()),
		row("Description", d.Description),
	}
	if d.CreatedAt != "" {
		lines = append(lines, row("Created", d.CreatedAt))
	}
	if d.UpdatedAt != "" {
		lines = append(lines, row("Updated", d.UpdatedAt))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusNames() string {
	names := make([]string, len(cases.Statuses))
	for i, s := range cases.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func parseCaseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid case id %q", s)
	}
	return id, nil
}
