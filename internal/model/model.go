// Package model holds the planner's task and occurrence types and the closed
// view and recurrence enums.
package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownView       = errors.New("unknown view")
	ErrUnknownRecurrence = errors.New("unknown recurrence")
	ErrUnknownPriority   = errors.New("unknown priority")
	ErrUnknownStatus     = errors.New("unknown status")
)

// View is the display granularity of the planner.
type View int

const (
	ViewDay View = iota + 1
	ViewWeek
	ViewMonth
)

// Views lists every supported view in display order.
var Views = []View{ViewDay, ViewWeek, ViewMonth}

func (v View) String() string {
	switch v {
	case ViewDay:
		return "day"
	case ViewWeek:
		return "week"
	case ViewMonth:
		return "month"
	default:
		return fmt.Sprintf("View(%d)", int(v))
	}
}

// ParseView converts a view literal ("day", "week", "month").
func ParseView(s string) (View, error) {
	switch s {
	case "day":
		return ViewDay, nil
	case "week":
		return ViewWeek, nil
	case "month":
		return ViewMonth, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

func (v View) MarshalText() ([]byte, error) {
	switch v {
	case ViewDay, ViewWeek, ViewMonth:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownView, int(v))
	}
}

func (v *View) UnmarshalText(b []byte) error {
	parsed, err := ParseView(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Recurrence is the repeat rule of a task. The zero value is not a valid
// rule; RecurrenceNone must be set explicitly.
type Recurrence int

const (
	RecurrenceNone Recurrence = iota + 1
	RecurrenceDaily
	RecurrenceWeekdays
	RecurrenceWeekly
	RecurrenceMonthly
)

func (r Recurrence) String() string {
	switch r {
	case RecurrenceNone:
		return "none"
	case RecurrenceDaily:
		return "daily"
	case RecurrenceWeekdays:
		return "weekdays"
	case RecurrenceWeekly:
		return "weekly"
	case RecurrenceMonthly:
		return "monthly"
	default:
		return fmt.Sprintf("Recurrence(%d)", int(r))
	}
}

// ParseRecurrence converts a recurrence literal.
func ParseRecurrence(s string) (Recurrence, error) {
	switch s {
	case "none":
		return RecurrenceNone, nil
	case "daily":
		return RecurrenceDaily, nil
	case "weekdays":
		return RecurrenceWeekdays, nil
	case "weekly":
		return RecurrenceWeekly, nil
	case "monthly":
		return RecurrenceMonthly, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRecurrence, s)
	}
}

// Repeats reports whether r produces more than one occurrence.
func (r Recurrence) Repeats() bool {
	return r > RecurrenceNone && r <= RecurrenceMonthly
}

func (r Recurrence) MarshalText() ([]byte, error) {
	if _, err := ParseRecurrence(r.String()); err != nil {
		return nil, err
	}
	return []byte(r.String()), nil
}

func (r *Recurrence) UnmarshalText(b []byte) error {
	parsed, err := ParseRecurrence(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Priority is carried through expansion unchanged.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority converts a priority literal ("low" through "urgent").
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
}

// Status is carried through expansion unchanged.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus converts a status literal.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// ChecklistItem is a sub-step of a task.
type ChecklistItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Task is a stored planner entry. For a recurring task DueDate is the
// anchor: it fixes the first instance, the time of day of every instance and
// the weekday/day-of-month phase of the rule.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	DueDate    time.Time  `json:"dueDate"`
	Recurrence Recurrence `json:"recurrence"`

	Priority         Priority        `json:"priority"`
	Progress         int             `json:"progress"`
	Status           Status          `json:"status"`
	EstimatedMinutes *int            `json:"estimatedMinutes"`
	Checklist        []ChecklistItem `json:"checklist"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CalendarRange is the half-open interval [Start, End).
type CalendarRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in [Start, End).
func (r CalendarRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Occurrence is one concrete dated instance of a task. Occurrences are
// derived on demand and never stored.
type Occurrence struct {
	// OccurrenceID is "{taskId}" for a one-off task and
	// "{taskId}-{YYYY-MM-DD}" for an instance of a recurring one.
	OccurrenceID   string    `json:"occurrenceId"`
	TaskID         int64     `json:"taskId"`
	OccurrenceDate time.Time `json:"occurrenceDate"`

	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Recurrence  Recurrence `json:"recurrence"`

	Priority         Priority        `json:"priority"`
	Progress         int             `json:"progress"`
	Status           Status          `json:"status"`
	EstimatedMinutes *int            `json:"estimatedMinutes"`
	Checklist        []ChecklistItem `json:"checklist"`
}
