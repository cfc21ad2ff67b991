// Package tasks is the in-memory task board: tasks with subtasks, comments,
// an assignee and a priority. Nothing is persisted.
package tasks

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

type Status string

const (
	NotStarted Status = "Not Started"
	InProgress Status = "In Progress"
	Completed  Status = "Completed"
)

var Statuses = []Status{NotStarted, InProgress, Completed}

type Priority string

const (
	High   Priority = "High"
	Medium Priority = "Medium"
	Low    Priority = "Low"
)

var Priorities = []Priority{High, Medium, Low}

// Assignees are the people a task can be handed to.
var Assignees = []string{"Alice", "Bob", "Charlie"}

// ParseStatus matches case-insensitively and accepts "_" or "-" for spaces.
func ParseStatus(s string) (Status, error) {
	norm := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s))
	for _, v := range Statuses {
		if strings.EqualFold(string(v), norm) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalid, s)
}

func ParsePriority(s string) (Priority, error) {
	for _, v := range Priorities {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown priority %q", ErrInvalid, s)
}

func canonicalAssignee(s string) (string, bool) {
	for _, a := range Assignees {
		if strings.EqualFold(a, strings.TrimSpace(s)) {
			return a, true
		}
	}
	return "", false
}

type Subtask struct {
	ID     int64
	Title  string
	Status Status
}

type Task struct {
	ID           int64
	Title        string
	Description  string
	AssignedTo   string
	Priority     Priority
	DueDate      string
	Subtasks     []Subtask
	Comments     []string
	Status       Status
	ParentTaskID *int64
}

func (t Task) clone() Task {
	t.Subtasks = slices.Clone(t.Subtasks)
	t.Comments = slices.Clone(t.Comments)
	if t.ParentTaskID != nil {
		p := *t.ParentTaskID
		t.ParentTaskID = &p
	}
	return t
}

// Draft is the input to AddTask. Empty AssignedTo, Priority and Status take
// the defaults Alice, Medium and Not Started.
type Draft struct {
	Title       string
	Description string
	AssignedTo  string
	Priority    Priority
	DueDate     string
	Status      Status
}

// Tracker holds the board. It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	tasks []Task
	last  int64
	now   func() time.Time
}

// New returns a tracker seeded with the demo board.
func New() *Tracker {
	return &Tracker{tasks: seed(), last: 4, now: time.Now}
}

func seed() []Task {
	return []Task{
		{
			ID:          1,
			Title:       "Main Task 1",
			Description: "This is the description of the main task 1.",
			AssignedTo:  "Alice",
			Priority:    High,
			DueDate:     "2024-12-30",
			Subtasks: []Subtask{
				{ID: 1, Title: "Subtask 1.1", Status: NotStarted},
				{ID: 2, Title: "Subtask 1.2", Status: InProgress},
			},
			Comments: []string{"Started working on task", "Need more resources"},
			Status:   InProgress,
		},
		{
			ID:          2,
			Title:       "Main Task 2",
			Description: "This is the description of the main task 2.",
			AssignedTo:  "Bob",
			Priority:    Medium,
			DueDate:     "2024-12-25",
			Subtasks: []Subtask{
				{ID: 3, Title: "Subtask 2.1", Status: Completed},
				{ID: 4, Title: "Subtask 2.2", Status: NotStarted},
			},
			Comments: []string{"Waiting on the team", "Need feedback from manager"},
			Status:   NotStarted,
		},
	}
}

// nextID is the current time in milliseconds, bumped past the last issued
// ID when the clock has not moved. Caller holds mu.
func (tr *Tracker) nextID() int64 {
	id := tr.now().UnixMilli()
	if id <= tr.last {
		id = tr.last + 1
	}
	tr.last = id
	return id
}

func (tr *Tracker) find(id int64) (*Task, error) {
	for i := range tr.tasks {
		if tr.tasks[i].ID == id {
			return &tr.tasks[i], nil
		}
	}
	return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
}

// List returns a copy of every task in insertion order.
func (tr *Tracker) List() []Task {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]Task, len(tr.tasks))
	for i, t := range tr.tasks {
		out[i] = t.clone()
	}
	return out
}

func (tr *Tracker) Get(id int64) (Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, err := tr.find(id)
	if err != nil {
		return Task{}, err
	}
	return t.clone(), nil
}

// AddTask appends a new task. Title, description and due date are required.
func (tr *Tracker) AddTask(d Draft) (Task, error) {
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Description) == "" || strings.TrimSpace(d.DueDate) == "" {
		return Task{}, fmt.Errorf("%w: title, description and due date are required", ErrInvalid)
	}
	t := Task{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		AssignedTo:  "Alice",
		Priority:    Medium,
		DueDate:     strings.TrimSpace(d.DueDate),
		Subtasks:    []Subtask{},
		Comments:    []string{},
		Status:      NotStarted,
	}
	if d.AssignedTo != "" {
		a, ok := canonicalAssignee(d.AssignedTo)
		if !ok {
			return Task{}, fmt.Errorf("%w: unknown assignee %q", ErrInvalid, d.AssignedTo)
		}
		t.AssignedTo = a
	}
	if d.Priority != "" {
		p, err := ParsePriority(string(d.Priority))
		if err != nil {
			return Task{}, err
		}
		t.Priority = p
	}
	if d.Status != "" {
		s, err := ParseStatus(string(d.Status))
		if err != nil {
			return Task{}, err
		}
		t.Status = s
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	t.ID = tr.nextID()
	tr.tasks = append(tr.tasks, t)
	return t.clone(), nil
}

// AddSubtask appends a subtask to task id. An empty status means Not Started.
func (tr *Tracker) AddSubtask(taskID int64, title string, status Status) (Subtask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Subtask{}, fmt.Errorf("%w: subtask title is required", ErrInvalid)
	}
	if status == "" {
		status = NotStarted
	} else if s, err := ParseStatus(string(status)); err != nil {
		return Subtask{}, err
	} else {
		status = s
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, err := tr.find(taskID)
	if err != nil {
		return Subtask{}, err
	}
	st := Subtask{ID: tr.nextID(), Title: title, Status: status}
	t.Subtasks = append(t.Subtasks, st)
	return st, nil
}

func (tr *Tracker) SetTaskStatus(taskID int64, status Status) error {
	s, err := ParseStatus(string(status))
	if err != nil {
		return err
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, err := tr.find(taskID)
	if err != nil {
		return err
	}
	t.Status = s
	return nil
}

func (tr *Tracker) subtask(taskID, subID int64) (*Subtask, error) {
	t, err := tr.find(taskID)
	if err != nil {
		return nil, err
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subID {
			return &t.Subtasks[i], nil
		}
	}
	return nil, fmt.Errorf("subtask %d of task %d: %w", subID, taskID, ErrNotFound)
}

func (tr *Tracker) SetSubtaskStatus(taskID, subID int64, status Status) error {
	s, err := ParseStatus(string(status))
	if err != nil {
		return err
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	st, err := tr.subtask(taskID, subID)
	if err != nil {
		return err
	}
	st.Status = s
	return nil
}

// ToggleSubtask flips a subtask between Completed and Not Started, as a
// checkbox would. In Progress counts as unchecked.
func (tr *Tracker) ToggleSubtask(taskID, subID int64) (Status, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	st, err := tr.subtask(taskID, subID)
	if err != nil {
		return "", err
	}
	if st.Status == Completed {
		st.Status = NotStarted
	} else {
		st.Status = Completed
	}
	return st.Status, nil
}

// Assign hands task id to one of Assignees.
func (tr *Tracker) Assign(taskID int64, who string) error {
	a, ok := canonicalAssignee(who)
	if !ok {
		return fmt.Errorf("%w: unknown assignee %q", ErrInvalid, who)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, err := tr.find(taskID)
	if err != nil {
		return err
	}
	t.AssignedTo = a
	return nil
}

func (tr *Tracker) AddComment(taskID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: comment is empty", ErrInvalid)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, err := tr.find(taskID)
	if err != nil {
		return err
	}
	t.Comments = append(t.Comments, text)
	return nil
}
