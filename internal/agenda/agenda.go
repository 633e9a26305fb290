// Package agenda assembles what a planner view shows: the view's range and
// grid dates, the occurrences bucketed per day, and progress stats.
//
// Everything here takes the current instant as an argument; nothing reads the
// wall clock.
package agenda

import (
	"math"
	"sort"
	"time"

	"taskflow/internal/calendar"
	"taskflow/internal/model"
	"taskflow/internal/recurrence"
)

// focusWindow bounds how far back the focus streak looks.
const focusWindow = 30

// Day is one cell of the rendered view.
type Day struct {
	Date time.Time `json:"date"`
	Key  string    `json:"key"`
	// InMonth is false for the padding days of a month grid.
	InMonth     bool               `json:"inMonth"`
	IsToday     bool               `json:"isToday"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// Stats summarizes a set of tasks relative to a given instant.
type Stats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Overdue        int `json:"overdue"`
	CompletionRate int `json:"completionRate"`
	Urgent         int `json:"urgent"`
	Recurring      int `json:"recurring"`
	FocusStreak    int `json:"focusStreak"`
}

// Agenda is the complete payload for one view.
type Agenda struct {
	View      model.View          `json:"view"`
	Reference time.Time           `json:"reference"`
	Range     model.CalendarRange `json:"range"`
	Previous  time.Time           `json:"previous"`
	Next      time.Time           `json:"next"`
	Days      []Day               `json:"days"`
	Stats     Stats               `json:"stats"`
}

// Build expands tasks over the range of view at ref and lays the result out
// over the view's dates. tasks should be the store's candidates for that
// range; stats are computed over the same set.
func Build(view model.View, ref, now time.Time, tasks []model.Task) Agenda {
	rng := calendar.ComputeRange(view, ref)
	occs := recurrence.Expand(tasks, rng.Start, rng.End)
	buckets := Group(occs, ref.Location())
	today := calendar.DayKey(now.In(ref.Location()))

	dates := calendar.ComputeDates(view, ref)
	days := make([]Day, 0, len(dates))
	for _, d := range dates {
		key := calendar.DayKey(d)
		bucket := buckets[key]
		if bucket == nil {
			bucket = []model.Occurrence{}
		}
		days = append(days, Day{
			Date:        d,
			Key:         key,
			InMonth:     rng.Contains(d),
			IsToday:     key == today,
			Occurrences: bucket,
		})
	}

	return Agenda{
		View:      view,
		Reference: ref,
		Range:     rng,
		Previous:  calendar.Navigate(view, ref, -1),
		Next:      calendar.Navigate(view, ref, 1),
		Days:      days,
		Stats:     ComputeStats(tasks, now),
	}
}

// Group buckets occurrences by the calendar day they fall on in loc. Each
// bucket is ordered by occurrence date, then occurrence id.
func Group(occs []model.Occurrence, loc *time.Location) map[string][]model.Occurrence {
	buckets := make(map[string][]model.Occurrence)
	for _, o := range occs {
		key := calendar.DayKey(o.OccurrenceDate.In(loc))
		buckets[key] = append(buckets[key], o)
	}
	for _, b := range buckets {
		Sort(b)
	}
	return buckets
}

// Sort orders occs in place by occurrence date, then occurrence id.
func Sort(occs []model.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if !a.OccurrenceDate.Equal(b.OccurrenceDate) {
			return a.OccurrenceDate.Before(b.OccurrenceDate)
		}
		return a.OccurrenceID < b.OccurrenceID
	})
}

// ComputeStats summarizes tasks as of now. A task is overdue when it is not
// completed and was due before the start of now's day.
func ComputeStats(tasks []model.Task, now time.Time) Stats {
	var st Stats
	startOfToday := calendar.StartOfDay(now)
	for i := range tasks {
		t := &tasks[i]
		st.Total++
		if t.Status == model.StatusCompleted {
			st.Completed++
		} else if t.DueDate.Before(startOfToday) {
			st.Overdue++
		}
		if t.Priority == model.PriorityUrgent {
			st.Urgent++
		}
		if t.Recurrence.Repeats() {
			st.Recurring++
		}
	}
	if st.Total > 0 {
		st.CompletionRate = int(math.Round(float64(st.Completed) / float64(st.Total) * 100))
	}
	st.FocusStreak = FocusStreak(tasks, now)
	return st
}

// FocusStreak counts consecutive days, ending with now's day, on which at
// least one completed task was due. It looks back at most 30 days.
func FocusStreak(tasks []model.Task, now time.Time) int {
	loc := now.Location()
	done := make(map[string]bool)
	for i := range tasks {
		if tasks[i].Status == model.StatusCompleted {
			done[calendar.DayKey(tasks[i].DueDate.In(loc))] = true
		}
	}

	today := calendar.StartOfDay(now)
	streak := 0
	for i := 0; i < focusWindow; i++ {
		if !done[calendar.DayKey(today.AddDate(0, 0, -i))] {
			break
		}
		streak++
	}
	return streak
}
