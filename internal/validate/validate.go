// Package validate turns untrusted task input into model values the planner
// engine can rely on: a parseable due date, a known recurrence, priority and
// status, and progress within [0,100].
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/mo"

	"taskflow/internal/model"
	"taskflow/internal/store"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("nonempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation("datetime_any", func(fl validator.FieldLevel) bool {
		_, err := ParseDateTime(fl.Field().String(), time.UTC)
		return err == nil
	})
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is returned for input that fails validation.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Field+" "+fe.Message)
	}
	return "invalid task: " + strings.Join(msgs, "; ")
}

// ChecklistInput is a checklist entry as submitted by a client.
type ChecklistInput struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text" validate:"nonempty,max=500"`
	Done bool   `json:"done"`
}

// TaskInput is the payload for creating a task. Empty enum fields take the
// defaults none/medium/pending.
type TaskInput struct {
	Title            string           `json:"title" validate:"nonempty,max=200"`
	Description      string           `json:"description" validate:"max=5000"`
	DueDate          string           `json:"dueDate" validate:"required,datetime_any"`
	Recurrence       string           `json:"recurrence" validate:"omitempty,oneof=none daily weekdays weekly monthly"`
	Priority         string           `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status           string           `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Progress         *int             `json:"progress" validate:"omitempty,min=0,max=100"`
	EstimatedMinutes *int             `json:"estimatedMinutes" validate:"omitempty,min=0,max=10080"`
	Checklist        []ChecklistInput `json:"checklist" validate:"omitempty,dive"`
}

// TaskUpdate is the payload for a partial update. Nil fields are left
// untouched. EstimatedMinutes distinguishes absent from an explicit null,
// which clears the estimate.
type TaskUpdate struct {
	Title            *string           `json:"title" validate:"omitempty,nonempty,max=200"`
	Description      *string           `json:"description" validate:"omitempty,max=5000"`
	DueDate          *string           `json:"dueDate" validate:"omitempty,datetime_any"`
	Recurrence       *string           `json:"recurrence" validate:"omitempty,oneof=none daily weekdays weekly monthly"`
	Priority         *string           `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status           *string           `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Progress         *int              `json:"progress" validate:"omitempty,min=0,max=100"`
	EstimatedMinutes json.RawMessage   `json:"estimatedMinutes"`
	Checklist        *[]ChecklistInput `json:"checklist" validate:"omitempty,dive"`
}

// NewTask validates in and builds the task it describes. Dates without an
// explicit offset are read in loc.
func NewTask(in TaskInput, loc *time.Location) (model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.DueDate = strings.TrimSpace(in.DueDate)
	if err := check(in); err != nil {
		return model.Task{}, err
	}

	due, err := ParseDateTime(in.DueDate, loc)
	if err != nil {
		return model.Task{}, Errors{{Field: "dueDate", Message: err.Error()}}
	}

	t := model.Task{
		Title:            in.Title,
		Description:      in.Description,
		DueDate:          due,
		Recurrence:       model.RecurrenceNone,
		Priority:         model.PriorityMedium,
		Status:           model.StatusPending,
		EstimatedMinutes: in.EstimatedMinutes,
		Checklist:        checklist(in.Checklist),
	}
	// The tags above already restrict these to known literals.
	if in.Recurrence != "" {
		t.Recurrence, _ = model.ParseRecurrence(in.Recurrence)
	}
	if in.Priority != "" {
		t.Priority = model.Priority(in.Priority)
	}
	if in.Status != "" {
		t.Status = model.Status(in.Status)
	}
	if in.Progress != nil {
		t.Progress = *in.Progress
	}
	return t, nil
}

// ToPatch validates u and converts it to a store patch.
func (u TaskUpdate) ToPatch(loc *time.Location) (store.Patch, error) {
	if u.Title != nil {
		trimmed := strings.TrimSpace(*u.Title)
		u.Title = &trimmed
	}
	if err := check(u); err != nil {
		return store.Patch{}, err
	}

	var p store.Patch
	if u.Title != nil {
		p.Title = mo.Some(*u.Title)
	}
	if u.Description != nil {
		p.Description = mo.Some(*u.Description)
	}
	if u.DueDate != nil {
		due, err := ParseDateTime(*u.DueDate, loc)
		if err != nil {
			return store.Patch{}, Errors{{Field: "dueDate", Message: err.Error()}}
		}
		p.DueDate = mo.Some(due)
	}
	if u.Recurrence != nil {
		r, _ := model.ParseRecurrence(*u.Recurrence)
		p.Recurrence = mo.Some(r)
	}
	if u.Priority != nil {
		p.Priority = mo.Some(model.Priority(*u.Priority))
	}
	if u.Status != nil {
		p.Status = mo.Some(model.Status(*u.Status))
	}
	if u.Progress != nil {
		p.Progress = mo.Some(*u.Progress)
	}
	if len(u.EstimatedMinutes) > 0 {
		est, err := estimate(u.EstimatedMinutes)
		if err != nil {
			return store.Patch{}, err
		}
		p.EstimatedMinutes = mo.Some(est)
	}
	if u.Checklist != nil {
		p.Checklist = mo.Some(checklist(*u.Checklist))
	}
	return p, nil
}

func estimate(raw json.RawMessage) (*int, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, Errors{{Field: "estimatedMinutes", Message: "must be a whole number of minutes or null"}}
	}
	if v < 0 || v > 10080 {
		return nil, Errors{{Field: "estimatedMinutes", Message: "must be between 0 and 10080"}}
	}
	return &v, nil
}

func checklist(in []ChecklistInput) []model.ChecklistItem {
	out := make([]model.ChecklistItem, 0, len(in))
	for _, it := range in {
		out = append(out, model.ChecklistItem{ID: it.ID, Text: strings.TrimSpace(it.Text), Done: it.Done})
	}
	return out
}

func check(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// fieldPath drops the struct name from the namespace: "TaskInput.checklist[0].text"
// becomes "checklist[0].text".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "nonempty":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "datetime_any":
		return fmt.Sprintf("is not a valid date or date-time: %q", fe.Value())
	default:
		return "failed " + fe.Tag()
	}
}

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDateTime accepts RFC 3339 timestamps and the offset-free forms
// "2006-01-02T15:04[:05]" and "2006-01-02". Offset-free values are read in loc
// (time.Local when nil).
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseDate parses a reference date for a view. Empty input means the day
// containing now.
func ParseDate(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if strings.TrimSpace(s) == "" {
		return now.In(loc), nil
	}
	return ParseDateTime(s, loc)
}

// ParseView parses a view literal, using fallback for empty input.
func ParseView(s string, fallback model.View) (model.View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return fallback, nil
	}
	return model.ParseView(s)
}
