package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ecmdash/internal/tasks"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Interactive task board (kept in memory for this run)",
	Long: `Starts a line-oriented shell over the task board. Type "help" for the
command list. Changes are lost when the shell exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sh := &taskShell{tr: tasks.New(), out: cmd.OutOrStdout()}
		return sh.run(cmd.InOrStdin())
	},
}

const taskHelp = `commands:
  list                                   show every task
  show <task>                            show one task with subtasks and comments
  add <title> | <description> | <due> [| <assignee> | <priority> | <status>]
  sub <task> <title> [| <status>]        add a subtask
  status <task> <status>                 Not Started, In Progress, Completed
  substatus <task> <subtask> <status>
  toggle <task> <subtask>                check or uncheck a subtask
  assign <task> <name>                   Alice, Bob or Charlie
  comment <task> <text>
  quit`

var (
	taskTitleStyle = lipgloss.NewStyle().Bold(true)
	priorityColors = map[tasks.Priority]lipgloss.Color{
		tasks.High:   lipgloss.Color("196"),
		tasks.Medium: lipgloss.Color("214"),
		tasks.Low:    lipgloss.Color("42"),
	}
)

type taskShell struct {
	tr  *tasks.Tracker
	out io.Writer
}

var errQuit = errors.New("quit")

func (s *taskShell) run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(s.out, "tasks> ")
	for sc.Scan() {
		err := s.exec(sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(s.out, errorStyle.Render(err.Error()))
		}
		fmt.Fprint(s.out, "tasks> ")
	}
	fmt.Fprintln(s.out)
	return sc.Err()
}

func (s *taskShell) exec(line string) error {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(verb) {
	case "":
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		fmt.Fprintln(s.out, taskHelp)
		return nil
	case "list", "ls":
		for _, t := range s.tr.List() {
			fmt.Fprintln(s.out, taskLine(t))
		}
		return nil
	case "show":
		id, _, err := taskArg(rest)
		if err != nil {
			return err
		}
		t, err := s.tr.Get(id)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, taskCard(t))
		return nil
	case "add":
		return s.add(rest)
	case "sub":
		id, rest, err := taskArg(rest)
		if err != nil {
			return err
		}
		title, status, _ := strings.Cut(rest, "|")
		st, err := s.tr.AddSubtask(id, title, tasks.Status(strings.TrimSpace(status)))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "added subtask %d\n", st.ID)
		return nil
	case "status":
		id, status, err := taskArg(rest)
		if err != nil {
			return err
		}
		return s.tr.SetTaskStatus(id, tasks.Status(status))
	case "substatus":
		id, rest, err := taskArg(rest)
		if err != nil {
			return err
		}
		sub, status, err := taskArg(rest)
		if err != nil {
			return err
		}
		return s.tr.SetSubtaskStatus(id, sub, tasks.Status(status))
	case "toggle":
		id, rest, err := taskArg(rest)
		if err != nil {
			return err
		}
		sub, _, err := taskArg(rest)
		if err != nil {
			return err
		}
		status, err := s.tr.ToggleSubtask(id, sub)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "subtask %d is now %s\n", sub, status)
		return nil
	case "assign":
		id, who, err := taskArg(rest)
		if err != nil {
			return err
		}
		return s.tr.Assign(id, who)
	case "comment":
		id, text, err := taskArg(rest)
		if err != nil {
			return err
		}
		return s.tr.AddComment(id, text)
	default:
		return fmt.Errorf("unknown command %q, try help", verb)
	}
}

func (s *taskShell) add(rest string) error {
	parts := strings.Split(rest, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 {
		return errors.New("usage: add <title> | <description> | <due> [| <assignee> | <priority> | <status>]")
	}
	d := tasks.Draft{Title: parts[0], Description: parts[1], DueDate: parts[2]}
	if len(parts) > 3 {
		d.AssignedTo = parts[3]
	}
	if len(parts) > 4 {
		d.Priority = tasks.Priority(parts[4])
	}
	if len(parts) > 5 {
		d.Status = tasks.Status(parts[5])
	}
	t, err := s.tr.AddTask(d)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "added task %d\n", t.ID)
	return nil
}

// taskArg splits a leading numeric id off s.
func taskArg(s string) (int64, string, error) {
	head, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("expected a numeric id, got %q", head)
	}
	return id, strings.TrimSpace(rest), nil
}

func taskLine(t tasks.Task) string {
	done := 0
	for _, st := range t.Subtasks {
		if st.Status == tasks.Completed {
			done++
		}
	}
	prio := lipgloss.NewStyle().Foreground(priorityColors[t.Priority]).Render(string(t.Priority))
	return fmt.Sprintf("%-14d %s  [%s] %s · %s · due %s · %d/%d subtasks",
		t.ID, taskTitleStyle.Render(t.Title), t.Status, t.AssignedTo, prio, t.DueDate, done, len(t.Subtasks))
}

func taskCard(t tasks.Task) string {
	lines := []string{taskLine(t), "  " + t.Description}
	for _, st := range t.Subtasks {
		box := "[ ]"
		if st.Status == tasks.Completed {
			box = "[x]"
		}
		lines = append(lines, fmt.Sprintf("  %s %d %s (%s)", box, st.ID, st.Title, st.Status))
	}
	for _, c := range t.Comments {
		lines = append(lines, mutedStyle.Render("  > "+c))
	}
	return strings.Join(lines, "\n")
}
