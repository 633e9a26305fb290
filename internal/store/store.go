// Package store persists planner tasks.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/samber/mo"

	"taskflow/internal/model"
)

// ErrNotFound is returned when no task has the requested id.
var ErrNotFound = errors.New("task not found")

// Store is the task persistence contract used by the planner.
type Store interface {
	// ListTasks returns the tasks that can produce occurrences inside rng:
	// one-off tasks due within [rng.Start, rng.End) and recurring tasks
	// anchored before rng.End. A nil rng returns every task. Results are
	// ordered by due date, then id.
	ListTasks(ctx context.Context, rng *model.CalendarRange) ([]model.Task, error)

	GetTask(ctx context.Context, id int64) (model.Task, error)

	// CreateTask stores t under a fresh id and returns the stored copy.
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)

	// UpdateTask applies the present fields of p and returns the result.
	UpdateTask(ctx context.Context, id int64, p Patch) (model.Task, error)

	DeleteTask(ctx context.Context, id int64) error

	Close() error
}

// Patch carries a partial update. Absent options leave the stored value
// untouched.
type Patch struct {
	Title       mo.Option[string]
	Description mo.Option[string]
	DueDate     mo.Option[time.Time]
	Recurrence  mo.Option[model.Recurrence]
	Priority    mo.Option[model.Priority]
	Progress    mo.Option[int]
	Status      mo.Option[model.Status]
	// A present nil pointer clears the estimate.
	EstimatedMinutes mo.Option[*int]
	Checklist        mo.Option[[]model.ChecklistItem]
}

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return !p.Title.IsPresent() &&
		!p.Description.IsPresent() &&
		!p.DueDate.IsPresent() &&
		!p.Recurrence.IsPresent() &&
		!p.Priority.IsPresent() &&
		!p.Progress.IsPresent() &&
		!p.Status.IsPresent() &&
		!p.EstimatedMinutes.IsPresent() &&
		!p.Checklist.IsPresent()
}

// Apply writes the present fields of p onto t.
func (p Patch) Apply(t *model.Task) {
	if v, ok := p.Title.Get(); ok {
		t.Title = v
	}
	if v, ok := p.Description.Get(); ok {
		t.Description = v
	}
	if v, ok := p.DueDate.Get(); ok {
		t.DueDate = v
	}
	if v, ok := p.Recurrence.Get(); ok {
		t.Recurrence = v
	}
	if v, ok := p.Priority.Get(); ok {
		t.Priority = v
	}
	if v, ok := p.Progress.Get(); ok {
		t.Progress = v
	}
	if v, ok := p.Status.Get(); ok {
		t.Status = v
	}
	if v, ok := p.EstimatedMinutes.Get(); ok {
		t.EstimatedMinutes = v
	}
	if v, ok := p.Checklist.Get(); ok {
		t.Checklist = v
	}
}
