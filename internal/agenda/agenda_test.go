package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/model"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func task(id int64, kind model.Recurrence, due time.Time) model.Task {
	return model.Task{
		ID:         id,
		Title:      "task",
		DueDate:    due,
		Recurrence: kind,
		Priority:   model.PriorityMedium,
		Status:     model.StatusPending,
		Checklist:  []model.ChecklistItem{},
	}
}

func ids(occs []model.Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.OccurrenceID)
	}
	return out
}

func TestBuild_WeekView(t *testing.T) {
	ref := at(2024, 3, 14, 15, 0)
	now := at(2024, 3, 14, 10, 0)
	tasks := []model.Task{
		task(1, model.RecurrenceNone, at(2024, 3, 14, 9, 0)),
		task(2, model.RecurrenceDaily, at(2024, 3, 1, 7, 0)),
		task(3, model.RecurrenceWeekly, at(2024, 1, 1, 8, 0)),
	}

	a := Build(model.ViewWeek, ref, now, tasks)

	assert.Equal(t, at(2024, 3, 11, 0, 0), a.Range.Start)
	assert.Equal(t, at(2024, 3, 18, 0, 0), a.Range.End)
	assert.Equal(t, at(2024, 3, 7, 15, 0), a.Previous)
	assert.Equal(t, at(2024, 3, 21, 15, 0), a.Next)
	require.Len(t, a.Days, 7)

	assert.Equal(t, "2024-03-11", a.Days[0].Key)
	assert.Equal(t, []string{"2-2024-03-11", "3-2024-03-11"}, ids(a.Days[0].Occurrences))
	assert.Equal(t, "2024-03-14", a.Days[3].Key)
	assert.Equal(t, []string{"2-2024-03-14", "1"}, ids(a.Days[3].Occurrences))
	assert.Equal(t, []string{"2-2024-03-17"}, ids(a.Days[6].Occurrences))

	for i, d := range a.Days {
		assert.True(t, d.InMonth, d.Key)
		assert.Equal(t, i == 3, d.IsToday, d.Key)
	}
	assert.Equal(t, 3, a.Stats.Total)
}

func TestBuild_MonthGridPaddingStaysEmpty(t *testing.T) {
	ref := at(2024, 2, 10, 0, 0)
	a := Build(model.ViewMonth, ref, ref, []model.Task{task(7, model.RecurrenceDaily, at(2024, 1, 1, 6, 30))})

	require.Len(t, a.Days, 35)
	assert.Equal(t, "2024-01-29", a.Days[0].Key)
	assert.Equal(t, "2024-03-03", a.Days[34].Key)

	inMonth := 0
	for _, d := range a.Days {
		if d.InMonth {
			inMonth++
			assert.Len(t, d.Occurrences, 1, d.Key)
			continue
		}
		assert.NotNil(t, d.Occurrences, d.Key)
		assert.Empty(t, d.Occurrences, d.Key)
	}
	assert.Equal(t, 29, inMonth)
	assert.Equal(t, at(2024, 1, 1, 0, 0), a.Previous)
	assert.Equal(t, at(2024, 3, 1, 0, 0), a.Next)
}

func TestBuild_DayView(t *testing.T) {
	ref := at(2024, 3, 14, 0, 0)
	a := Build(model.ViewDay, ref, at(2024, 3, 20, 0, 0), []model.Task{
		task(1, model.RecurrenceNone, at(2024, 3, 14, 23, 59)),
		task(2, model.RecurrenceNone, at(2024, 3, 15, 0, 0)),
	})
	require.Len(t, a.Days, 1)
	assert.Equal(t, []string{"1"}, ids(a.Days[0].Occurrences))
	assert.False(t, a.Days[0].IsToday)
}

func TestGroup_SortsWithinDay(t *testing.T) {
	occs := []model.Occurrence{
		{OccurrenceID: "9", OccurrenceDate: at(2024, 3, 14, 18, 0)},
		{OccurrenceID: "4-2024-03-14", OccurrenceDate: at(2024, 3, 14, 8, 0)},
		{OccurrenceID: "3-2024-03-14", OccurrenceDate: at(2024, 3, 14, 8, 0)},
		{OccurrenceID: "5", OccurrenceDate: at(2024, 3, 15, 1, 0)},
	}
	buckets := Group(occs, time.UTC)
	require.Len(t, buckets, 2)
	assert.Equal(t, []string{"3-2024-03-14", "4-2024-03-14", "9"}, ids(buckets["2024-03-14"]))
	assert.Equal(t, []string{"5"}, ids(buckets["2024-03-15"]))
}

func TestGroup_UsesViewLocation(t *testing.T) {
	plus3 := time.FixedZone("UTC+3", 3*60*60)
	occs := []model.Occurrence{{OccurrenceID: "1", OccurrenceDate: at(2024, 3, 14, 22, 0)}}
	buckets := Group(occs, plus3)
	assert.Contains(t, buckets, "2024-03-15")
}

func TestComputeStats(t *testing.T) {
	now := at(2024, 3, 14, 12, 0)
	done := func(id int64, due time.Time) model.Task {
		tk := task(id, model.RecurrenceNone, due)
		tk.Status = model.StatusCompleted
		tk.Progress = 100
		return tk
	}
	urgent := done(1, at(2024, 3, 14, 9, 0))
	urgent.Priority = model.PriorityUrgent
	inProgress := task(6, model.RecurrenceNone, at(2024, 3, 20, 9, 0))
	inProgress.Status = model.StatusInProgress

	tasks := []model.Task{
		urgent,
		done(2, at(2024, 3, 13, 18, 0)),
		done(3, at(2024, 3, 12, 7, 0)),
		task(4, model.RecurrenceDaily, at(2024, 3, 10, 9, 0)),
		task(5, model.RecurrenceNone, at(2024, 3, 14, 8, 0)),
		inProgress,
	}

	assert.Equal(t, Stats{
		Total:          6,
		Completed:      3,
		Overdue:        1,
		CompletionRate: 50,
		Urgent:         1,
		Recurring:      1,
		FocusStreak:    3,
	}, ComputeStats(tasks, now))
}

func TestComputeStats_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil, at(2024, 3, 14, 12, 0)))
}

func TestComputeStats_RoundsRate(t *testing.T) {
	now := at(2024, 3, 14, 12, 0)
	tasks := []model.Task{
		task(1, model.RecurrenceNone, now),
		task(2, model.RecurrenceNone, now),
		task(3, model.RecurrenceNone, now),
	}
	tasks[0].Status = model.StatusCompleted
	assert.Equal(t, 33, ComputeStats(tasks, now).CompletionRate)
	tasks[1].Status = model.StatusCompleted
	assert.Equal(t, 67, ComputeStats(tasks, now).CompletionRate)
}

func TestFocusStreak(t *testing.T) {
	now := at(2024, 3, 14, 12, 0)
	var tasks []model.Task
	for i := 0; i < 40; i++ {
		tk := task(int64(i+1), model.RecurrenceNone, at(2024, 3, 14, 9, 0).AddDate(0, 0, -i))
		tk.Status = model.StatusCompleted
		tasks = append(tasks, tk)
	}

	assert.Equal(t, 30, FocusStreak(tasks, now), "capped at the window")
	assert.Equal(t, 0, FocusStreak(tasks, now.AddDate(0, 0, 1)), "nothing completed today")

	tasks[2].Status = model.StatusPending
	assert.Equal(t, 2, FocusStreak(tasks, now))
}
