// Package cases defines the case records exchanged with the cases API.
// JSON keys follow the API's field names.
package cases

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusCompleted  Status = "COMPLETED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusCreated, StatusInProgress, StatusOnHold, StatusCompleted}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus accepts any casing and "-" or " " in place of "_".
func ParseStatus(s string) (Status, error) {
	norm := Status(strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))))
	if !norm.Valid() {
		return "", fmt.Errorf("unknown case status %q", s)
	}
	return norm, nil
}

const dateLayout = "2006-01-02"

// Date is a calendar day. The zero Date encodes as "".
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp. Empty input is the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Summary is one row of the case list.
type Summary struct {
	ID   int64  `json:"Case_id"`
	Name string `json:"Name"`
}

// Detail is the full record behind a Summary.
type Detail struct {
	ID          int64  `json:"Case_id"`
	Name        string `json:"Name"`
	TeamManager string `json:"TeamManager"`
	Description string `json:"Description"`
	Start       Date   `json:"Start"`
	End         Date   `json:"End"`
	Status      Status `json:"Status"`
	CreatedAt   string `json:"CreatedAt,omitempty"`
	UpdatedAt   string `json:"UpdatedAt,omitempty"`
}

func (d Detail) Summary() Summary { return Summary{ID: d.ID, Name: d.Name} }

// Draft is the body of a create request.
type Draft struct {
	Name        string `json:"Name"`
	TeamManager string `json:"TeamManager"`
	Description string `json:"Description"`
	Start       Date   `json:"Start"`
	End         Date   `json:"End"`
	Status      Status `json:"Status"`
}

// NewDraft returns an empty draft with the initial status.
func NewDraft() Draft { return Draft{Status: StatusCreated} }

// Missing names the required fields that are still empty, in form order.
func (d Draft) Missing() []string {
	var out []string
	if d.Start.IsZero() {
		out = append(out, "Start")
	}
	if d.End.IsZero() {
		out = append(out, "End")
	}
	if strings.TrimSpace(d.Name) == "" {
		out = append(out, "Name")
	}
	if strings.TrimSpace(d.TeamManager) == "" {
		out = append(out, "TeamManager")
	}
	if d.Status == "" {
		out = append(out, "Status")
	}
	if strings.TrimSpace(d.Description) == "" {
		out = append(out, "Description")
	}
	return out
}
