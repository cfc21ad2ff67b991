package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ecmdash/internal/cases"
	"ecmdash/internal/dashboard"
	"ecmdash/internal/identity"
	"ecmdash/internal/remote"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse and edit cases interactively",
	Long: `Opens the case browser. Enter expands or collapses a case, n creates a
case and e edits the expanded one (admin only), r reloads, q quits.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rec := deps.reconciler()
	form := deps.form(rec)
	who := deps.sess.Identity(ctx)

	var events <-chan remote.Event
	if _, err := deps.sess.Token(ctx); err == nil {
		if ch, err := deps.api.Events(ctx); err == nil {
			events = ch
		} else {
			logger.Debug("case events unavailable", zap.Error(err))
		}
	}

	m := newDashboardModel(ctx, deps.gate().Start(ctx), rec, form, who, events)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if dm, ok := final.(dashboardModel); ok && dm.redirected {
		return errors.New("not signed in, run \"ecm login\"")
	}
	return nil
}

type screen int

const (
	screenList screen = iota
	screenCreate
	screenEdit
)

type (
	gateMsg   dashboard.Decision
	listMsg   struct{ err error }
	detailMsg struct {
		ticket dashboard.Ticket
		detail cases.Detail
		err    error
	}
	savedMsg        struct{ err error }
	eventMsg        remote.Event
	eventsClosedMsg struct{}
)

// Form field order for create and edit.
var fieldLabels = []string{"Name", "Team manager", "Description", "Start", "End", "Status"}

type dashboardModel struct {
	ctx    context.Context
	gate   <-chan dashboard.Decision
	rec    *dashboard.Reconciler
	form   *dashboard.CaseForm
	who    identity.Identity
	events <-chan remote.Event

	screen     screen
	cursor     int
	checking   bool
	busy       bool
	redirected bool
	status     string
	err        string

	inputs  []textinput.Model
	focus   int
	spinner spinner.Model
	width   int
}

func newDashboardModel(ctx context.Context, gate <-chan dashboard.Decision, rec *dashboard.Reconciler,
	form *dashboard.CaseForm, who identity.Identity, events <-chan remote.Event) dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = mutedStyle
	return dashboardModel{
		ctx:      ctx,
		gate:     gate,
		rec:      rec,
		form:     form,
		who:      who,
		events:   events,
		checking: true,
		spinner:  sp,
		width:    80,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.waitGate(), m.refresh(), m.waitEvent(), m.spinner.Tick)
}

func (m dashboardModel) waitGate() tea.Cmd {
	return func() tea.Msg {
		d, ok := <-m.gate
		if !ok {
			return gateMsg(dashboard.RedirectLogin)
		}
		return gateMsg(d)
	}
}

func (m dashboardModel) waitEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m dashboardModel) refresh() tea.Cmd {
	return func() tea.Msg { return listMsg{err: m.rec.Refresh(m.ctx)} }
}

func (m dashboardModel) fetch(t dashboard.Ticket) tea.Cmd {
	return func() tea.Msg {
		d, err := m.rec.Fetch(m.ctx, t)
		return detailMsg{ticket: t, detail: d, err: err}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case gateMsg:
		m.checking = false
		if dashboard.Decision(msg) == dashboard.RedirectLogin {
			m.redirected = true
			return m, tea.Quit
		}
		return m, nil

	case listMsg:
		// failures leave an empty list; nothing to show beyond that
		if n := len(m.rec.Cases()); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		return m, nil

	case detailMsg:
		m.rec.Resolve(msg.ticket, msg.detail, msg.err)
		return m, nil

	case savedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		if m.screen == screenCreate {
			m.status = "Case created."
		} else {
			m.status = "Case updated."
		}
		m.screen = screenList
		m.inputs = nil
		m.err = ""
		return m, nil

	case eventMsg:
		return m, tea.Batch(m.refresh(), m.waitEvent())

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		if m.screen == screenList {
			return m.updateList(msg)
		}
		return m.updateForm(msg)
	}
	return m, nil
}

func (m dashboardModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := m.rec.Cases()
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(list)-1 {
			m.cursor++
		}
	case "r":
		m.status, m.err = "", ""
		return m, m.refresh()
	case "enter", " ":
		if len(list) == 0 {
			return m, nil
		}
		if t, ok := m.rec.Toggle(list[m.cursor].ID); ok {
			return m, m.fetch(t)
		}
	case "n":
		m.status, m.err = "", ""
		if err := m.form.OpenCreate(m.ctx); err != nil {
			m.err = err.Error()
			return m, nil
		}
		d := m.form.CreateDraft()
		m.screen = screenCreate
		return m, m.openInputs(d.Name, d.TeamManager, d.Description, d.Start, d.End, d.Status)
	case "e":
		m.status, m.err = "", ""
		if err := m.form.BeginEdit(m.ctx); err != nil {
			m.err = err.Error()
			return m, nil
		}
		d := m.form.EditDraft()
		m.screen = screenEdit
		return m, m.openInputs(d.Name, d.TeamManager, d.Description, d.Start, d.End, d.Status)
	}
	return m, nil
}

func (m *dashboardModel) openInputs(name, manager, description string, start, end cases.Date, status cases.Status) tea.Cmd {
	values := []string{name, manager, description, start.String(), end.String(), string(status)}
	m.inputs = make([]textinput.Model, len(fieldLabels))
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 48
		ti.SetValue(values[i])
		switch i {
		case 3, 4:
			ti.Placeholder = "YYYY-MM-DD"
		case 5:
			ti.Placeholder = statusNames()
		}
		m.inputs[i] = ti
	}
	m.focus = 0
	return m.inputs[0].Focus()
}

func (m dashboardModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.screen == screenCreate {
			m.form.CloseCreate()
		} else {
			m.form.Cancel()
		}
		m.screen = screenList
		m.inputs = nil
		m.err = ""
		return m, nil
	case "tab", "down":
		return m, m.moveFocus(1)
	case "shift+tab", "up":
		return m, m.moveFocus(-1)
	case "enter":
		return m.submit()
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *dashboardModel) moveFocus(delta int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

// readInputs parses the form fields. Blank dates and statuses stay zero so
// required-field checks can name them.
func (m dashboardModel) readInputs() (name, manager, description string, start, end cases.Date, status cases.Status, err error) {
	v := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }
	name, manager, description = v(0), v(1), v(2)
	if s := v(3); s != "" {
		if start, err = cases.ParseDate(s); err != nil {
			return
		}
	}
	if s := v(4); s != "" {
		if end, err = cases.ParseDate(s); err != nil {
			return
		}
	}
	if s := v(5); s != "" {
		status, err = cases.ParseStatus(s)
	}
	return
}

func (m dashboardModel) submit() (tea.Model, tea.Cmd) {
	name, manager, description, start, end, status, err := m.readInputs()
	if err != nil {
		m.err = err.Error()
		return m, nil
	}
	m.err = ""
	m.busy = true
	ctx, form := m.ctx, m.form
	if m.screen == screenCreate {
		d := form.CreateDraft()
		d.Name, d.TeamManager, d.Description, d.Start, d.End, d.Status = name, manager, description, start, end, status
		return m, func() tea.Msg { return savedMsg{err: form.SubmitCreate(ctx)} }
	}
	d := form.EditDraft()
	d.Name, d.TeamManager, d.Description, d.Start, d.End, d.Status = name, manager, description, start, end, status
	return m, func() tea.Msg { return savedMsg{err: form.Save(ctx)} }
}

func (m dashboardModel) View() string {
	var b strings.Builder
	header := titleStyle.Render("Cases")
	if m.who.Email != "" {
		header += mutedStyle.Render(fmt.Sprintf("  %s · %s", m.who.Email, m.who.Role.Label()))
	}
	if m.checking {
		header += " " + m.spinner.View()
	}
	b.WriteString(header + "\n\n")

	switch m.screen {
	case screenCreate, screenEdit:
		b.WriteString(m.viewForm())
	default:
		b.WriteString(m.viewList())
	}

	if m.err != "" {
		b.WriteString("\n" + errorStyle.Render(m.err) + "\n")
	} else if m.status != "" {
		b.WriteString("\n" + mutedStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m dashboardModel) viewList() string {
	var b strings.Builder
	list := m.rec.Cases()
	if len(list) == 0 {
		b.WriteString(mutedStyle.Render("No cases.") + "\n")
	}
	for i, c := range list {
		marker := "▸"
		switch m.rec.State(c.ID) {
		case dashboard.Loading:
			marker = m.spinner.View()
		case dashboard.Expanded:
			marker = "▾"
		}
		line := fmt.Sprintf("%s %s  %s", marker, mutedStyle.Render("#"+strconv.FormatInt(c.ID, 10)), c.Name)
		if i == m.cursor {
			line = selectedStyle.Render("› ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
		if m.rec.State(c.ID) == dashboard.Expanded {
			if d, ok := m.rec.Expanded(); ok {
				b.WriteString(detailBox.Render(renderDetail(d)) + "\n")
			}
		}
	}
	help := "↑/↓ move · enter expand · r reload · q quit"
	if m.who.CanManageCases() {
		help = "↑/↓ move · enter expand · n new · e edit · r reload · q quit"
	}
	b.WriteString("\n" + mutedStyle.Render(help))
	return b.String()
}

func (m dashboardModel) viewForm() string {
	title := "New case"
	if m.screen == screenEdit {
		title = "Edit case"
	}
	rows := []string{titleStyle.Render(title)}
	for i, in := range m.inputs {
		label := labelStyle.Render(fieldLabels[i])
		if i == m.focus {
			label = selectedStyle.Width(14).Render(fieldLabels[i])
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, label, in.View()))
	}
	action := "create"
	if m.screen == screenEdit {
		action = "save"
	}
	if m.busy {
		action += " " + m.spinner.View()
	}
	rows = append(rows, "", mutedStyle.Render("tab next field · enter "+action+" · esc cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
