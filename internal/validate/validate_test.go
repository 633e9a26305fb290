package validate

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/model"
)

func intPtr(v int) *int { return &v }

func fields(t *testing.T, err error) []string {
	t.Helper()
	var verrs Errors
	require.True(t, errors.As(err, &verrs), "want validate.Errors, got %v", err)
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field)
	}
	return out
}

func TestNewTask_Defaults(t *testing.T) {
	task, err := NewTask(TaskInput{Title: "  pay rent ", DueDate: "2024-03-14T09:00"}, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "pay rent", task.Title)
	assert.Equal(t, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), task.DueDate)
	assert.Equal(t, model.RecurrenceNone, task.Recurrence)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Equal(t, 0, task.Progress)
	assert.Nil(t, task.EstimatedMinutes)
	assert.NotNil(t, task.Checklist)
}

func TestNewTask_AllFields(t *testing.T) {
	task, err := NewTask(TaskInput{
		Title:            "standup",
		DueDate:          "2024-03-11T09:15:00+01:00",
		Recurrence:       "weekdays",
		Priority:         "urgent",
		Status:           "in_progress",
		Progress:         intPtr(40),
		EstimatedMinutes: intPtr(15),
		Checklist:        []ChecklistInput{{Text: " notes "}, {ID: "a", Text: "blockers", Done: true}},
	}, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 11, 8, 15, 0, 0, time.UTC), task.DueDate)
	assert.Equal(t, model.RecurrenceWeekdays, task.Recurrence)
	assert.Equal(t, model.PriorityUrgent, task.Priority)
	assert.Equal(t, model.StatusInProgress, task.Status)
	assert.Equal(t, 40, task.Progress)
	assert.Equal(t, 15, *task.EstimatedMinutes)
	assert.Equal(t, []model.ChecklistItem{{Text: "notes"}, {ID: "a", Text: "blockers", Done: true}}, task.Checklist)
}

func TestNewTask_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		in    TaskInput
		field string
	}{
		{"blank title", TaskInput{Title: "   ", DueDate: "2024-03-14"}, "title"},
		{"missing due", TaskInput{Title: "x"}, "dueDate"},
		{"bad due", TaskInput{Title: "x", DueDate: "14/03/2024"}, "dueDate"},
		{"recurrence", TaskInput{Title: "x", DueDate: "2024-03-14", Recurrence: "yearly"}, "recurrence"},
		{"priority", TaskInput{Title: "x", DueDate: "2024-03-14", Priority: "critical"}, "priority"},
		{"status", TaskInput{Title: "x", DueDate: "2024-03-14", Status: "done"}, "status"},
		{"progress high", TaskInput{Title: "x", DueDate: "2024-03-14", Progress: intPtr(101)}, "progress"},
		{"progress low", TaskInput{Title: "x", DueDate: "2024-03-14", Progress: intPtr(-1)}, "progress"},
		{"estimate", TaskInput{Title: "x", DueDate: "2024-03-14", EstimatedMinutes: intPtr(-5)}, "estimatedMinutes"},
		{"checklist text", TaskInput{Title: "x", DueDate: "2024-03-14", Checklist: []ChecklistInput{{Text: ""}}}, "checklist[0].text"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTask(tc.in, time.UTC)
			require.Error(t, err)
			assert.Equal(t, []string{tc.field}, fields(t, err))
		})
	}
}

func TestNewTask_ProgressBounds(t *testing.T) {
	for _, p := range []int{0, 100} {
		_, err := NewTask(TaskInput{Title: "x", DueDate: "2024-03-14", Progress: intPtr(p)}, time.UTC)
		assert.NoError(t, err, "progress %d", p)
	}
}

func TestErrors_Message(t *testing.T) {
	_, err := NewTask(TaskInput{Title: "x", DueDate: "2024-03-14", Priority: "critical"}, time.UTC)
	require.Error(t, err)
	assert.Equal(t, "invalid task: priority must be one of: low, medium, high, urgent", err.Error())
}

func TestTaskUpdate_ToPatch(t *testing.T) {
	var u TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": " renamed ",
		"dueDate": "2024-04-01",
		"recurrence": "monthly",
		"progress": 100,
		"estimatedMinutes": null
	}`), &u))

	p, err := u.ToPatch(time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "renamed", p.Title.MustGet())
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), p.DueDate.MustGet())
	assert.Equal(t, model.RecurrenceMonthly, p.Recurrence.MustGet())
	assert.Equal(t, 100, p.Progress.MustGet())
	est, ok := p.EstimatedMinutes.Get()
	assert.True(t, ok)
	assert.Nil(t, est)
	assert.False(t, p.Description.IsPresent())
	assert.False(t, p.Status.IsPresent())
	assert.False(t, p.Checklist.IsPresent())
}

func TestTaskUpdate_Estimate(t *testing.T) {
	var u TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"estimatedMinutes": 45}`), &u))
	p, err := u.ToPatch(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 45, *p.EstimatedMinutes.MustGet())

	require.NoError(t, json.Unmarshal([]byte(`{"estimatedMinutes": "soon"}`), &u))
	_, err = u.ToPatch(time.UTC)
	assert.Equal(t, []string{"estimatedMinutes"}, fields(t, err))
}

func TestTaskUpdate_Empty(t *testing.T) {
	p, err := TaskUpdate{}.ToPatch(time.UTC)
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
}

func TestTaskUpdate_Rejects(t *testing.T) {
	var u TaskUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"title": "  ", "progress": 150, "recurrence": "hourly"}`), &u))
	_, err := u.ToPatch(time.UTC)
	assert.ElementsMatch(t, []string{"title", "progress", "recurrence"}, fields(t, err))
}

func TestParseDateTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	tests := map[string]time.Time{
		"2024-03-14":                time.Date(2024, 3, 14, 0, 0, 0, 0, loc),
		"2024-03-14T09:30":          time.Date(2024, 3, 14, 9, 30, 0, 0, loc),
		"2024-03-14T09:30:15":       time.Date(2024, 3, 14, 9, 30, 15, 0, loc),
		"2024-03-14 09:30":          time.Date(2024, 3, 14, 9, 30, 0, 0, loc),
		"2024-03-14T07:30:00Z":      time.Date(2024, 3, 14, 9, 30, 0, 0, loc),
		"2024-03-14T09:30:00+02:00": time.Date(2024, 3, 14, 9, 30, 0, 0, loc),
	}
	for in, want := range tests {
		got, err := ParseDateTime(in, loc)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
		assert.Equal(t, loc, got.Location(), in)
	}

	for _, bad := range []string{"", "tomorrow", "2024-13-01", "2024-02-30"} {
		_, err := ParseDateTime(bad, loc)
		assert.Error(t, err, bad)
	}
}

func TestParseDate_EmptyMeansNow(t *testing.T) {
	now := time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)
	got, err := ParseDate("", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, now, got)
}

func TestParseView(t *testing.T) {
	v, err := ParseView("", model.ViewMonth)
	require.NoError(t, err)
	assert.Equal(t, model.ViewMonth, v)

	v, err = ParseView(" Day ", model.ViewWeek)
	require.NoError(t, err)
	assert.Equal(t, model.ViewDay, v)

	_, err = ParseView("year", model.ViewWeek)
	assert.ErrorIs(t, err, model.ErrUnknownView)
}
