package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"

	"taskflow/internal/calendar"
	appLog "taskflow/internal/log"
	"taskflow/internal/model"
	"taskflow/internal/store"
	"taskflow/internal/validate"
)

// Service ties the task store to the range calculator and the expander. It
// is the single entry point used by the HTTP API and the CLI.
type Service struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// NewService returns a Service reading and writing st. Offset-free dates in
// input are interpreted in loc (time.Local when nil).
func NewService(st store.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: st, loc: loc, now: time.Now}
}

// WithClock replaces the clock used for "today". It returns s.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Location is the zone the service computes view boundaries in.
func (s *Service) Location() *time.Location { return s.loc }

// Now is the service's current instant in its location.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// Agenda builds the view containing ref.
func (s *Service) Agenda(ctx context.Context, view model.View, ref time.Time) (Agenda, error) {
	ref = ref.In(s.loc)
	_, tasks, err := s.Tasks(ctx, view, ref)
	if err != nil {
		return Agenda{}, err
	}
	return Build(view, ref, s.Now(), tasks), nil
}

// Tasks returns the view's range and the stored tasks that can produce
// occurrences inside it.
func (s *Service) Tasks(ctx context.Context, view model.View, ref time.Time) (model.CalendarRange, []model.Task, error) {
	rng := calendar.ComputeRange(view, ref.In(s.loc))
	tasks, err := s.store.ListTasks(ctx, &rng)
	if err != nil {
		return rng, nil, fmt.Errorf("tasks for %s of %s: %w", view, calendar.DayKey(rng.Start), err)
	}
	return rng, tasks, nil
}

// All returns every stored task.
func (s *Service) All(ctx context.Context) ([]model.Task, error) {
	return s.store.ListTasks(ctx, nil)
}

func (s *Service) Get(ctx context.Context, id int64) (model.Task, error) {
	return s.store.GetTask(ctx, id)
}

// Create validates in and stores the resulting task.
func (s *Service) Create(ctx context.Context, in validate.TaskInput) (model.Task, error) {
	t, err := validate.NewTask(in, s.loc)
	if err != nil {
		return model.Task{}, err
	}
	if t.Progress == 100 {
		t.Status = model.StatusCompleted
	}
	return s.store.CreateTask(ctx, t)
}

// Update validates u and applies it to task id. Setting progress to 100
// also marks the task completed unless the update names a status itself.
func (s *Service) Update(ctx context.Context, id int64, u validate.TaskUpdate) (model.Task, error) {
	p, err := u.ToPatch(s.loc)
	if err != nil {
		return model.Task{}, err
	}
	if p.IsEmpty() {
		return s.store.GetTask(ctx, id)
	}
	if v, ok := p.Progress.Get(); ok && v == 100 && !p.Status.IsPresent() {
		p.Status = mo.Some(model.StatusCompleted)
	}
	return s.store.UpdateTask(ctx, id, p)
}

// Complete marks task id completed with full progress.
func (s *Service) Complete(ctx context.Context, id int64) (model.Task, error) {
	return s.store.UpdateTask(ctx, id, store.Patch{
		Progress: mo.Some(100),
		Status:   mo.Some(model.StatusCompleted),
	})
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteTask(ctx, id)
}

// Import creates a task for every input, continuing past rejected ones. It
// returns the created tasks and the joined errors of those that failed.
func (s *Service) Import(ctx context.Context, inputs []validate.TaskInput) ([]model.Task, error) {
	created := make([]model.Task, 0, len(inputs))
	var errs []error
	for i, in := range inputs {
		t, err := s.Create(ctx, in)
		if err != nil {
			appLog.Warn("import: task skipped", "index", i, "title", in.Title, "err", err)
			errs = append(errs, fmt.Errorf("item %d (%q): %w", i, in.Title, err))
			continue
		}
		created = append(created, t)
	}
	appLog.Info("import completed", "created", len(created), "skipped", len(errs))
	return created, errors.Join(errs...)
}
