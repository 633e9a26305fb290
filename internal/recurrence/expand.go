// Package recurrence expands stored tasks into the concrete occurrences that
// fall inside a half-open time range.
package recurrence

import (
	"fmt"
	"strconv"
	"time"

	"taskflow/internal/calendar"
	"taskflow/internal/model"
)

// Expand returns the occurrences of tasks inside [rangeStart, rangeEnd).
//
// The result is ordered by task, then by date within a task; it is not sorted
// globally. Inputs are never mutated and repeated calls with equal arguments
// produce equal occurrences, including their ids. An inverted range yields no
// occurrences.
//
// A task with an unknown recurrence is a programming error and panics.
func Expand(tasks []model.Task, rangeStart, rangeEnd time.Time) []model.Occurrence {
	out := make([]model.Occurrence, 0, len(tasks))
	if rangeEnd.Before(rangeStart) {
		return out
	}

	for i := range tasks {
		out = appendTask(out, &tasks[i], rangeStart, rangeEnd)
	}
	return out
}

func appendTask(out []model.Occurrence, t *model.Task, rangeStart, rangeEnd time.Time) []model.Occurrence {
	if t.Recurrence == model.RecurrenceNone {
		if !t.DueDate.Before(rangeStart) && t.DueDate.Before(rangeEnd) {
			out = append(out, newOccurrence(t, t.DueDate, strconv.FormatInt(t.ID, 10)))
		}
		return out
	}

	// ruleFor panics on an unknown kind; it runs first so that holds even for
	// tasks anchored after the range.
	r := ruleFor(t.Recurrence, t.DueDate)
	if !t.DueDate.Before(rangeEnd) {
		return out
	}

	for k := r.firstIndex(rangeStart); ; k++ {
		at := r.at(k)
		if !at.Before(rangeEnd) {
			break
		}
		if !r.keep(at) {
			continue
		}
		out = append(out, newOccurrence(t, at, occurrenceID(t.ID, at)))
	}
	return out
}

func occurrenceID(taskID int64, at time.Time) string {
	return strconv.FormatInt(taskID, 10) + "-" + calendar.DayKey(at)
}

func newOccurrence(t *model.Task, at time.Time, id string) model.Occurrence {
	var checklist []model.ChecklistItem
	if t.Checklist != nil {
		checklist = append(make([]model.ChecklistItem, 0, len(t.Checklist)), t.Checklist...)
	}
	var estimate *int
	if t.EstimatedMinutes != nil {
		v := *t.EstimatedMinutes
		estimate = &v
	}

	return model.Occurrence{
		OccurrenceID:     id,
		TaskID:           t.ID,
		OccurrenceDate:   at,
		Title:            t.Title,
		Description:      t.Description,
		Recurrence:       t.Recurrence,
		Priority:         t.Priority,
		Progress:         t.Progress,
		Status:           t.Status,
		EstimatedMinutes: estimate,
		Checklist:        checklist,
	}
}

// rule walks the instances of a recurring task by index: at(0) is the
// anchor and at(k) is strictly increasing in k.
type rule struct {
	anchor time.Time
	// stride in calendar days; 0 for month-based rules.
	days int
	// monthly advances by calendar months, clamping the day of month.
	monthly  bool
	weekdays bool
}

func ruleFor(kind model.Recurrence, anchor time.Time) rule {
	switch kind {
	case model.RecurrenceDaily:
		return rule{anchor: anchor, days: 1}
	case model.RecurrenceWeekdays:
		return rule{anchor: anchor, days: 1, weekdays: true}
	case model.RecurrenceWeekly:
		return rule{anchor: anchor, days: 7}
	case model.RecurrenceMonthly:
		return rule{anchor: anchor, monthly: true}
	default:
		panic(fmt.Sprintf("recurrence: unknown kind %v", kind))
	}
}

// at returns the k-th candidate, carrying the anchor's time of day.
func (r rule) at(k int) time.Time {
	y, m, d := r.anchor.Date()
	hh, mm, ss := r.anchor.Clock()
	ns := r.anchor.Nanosecond()
	loc := r.anchor.Location()

	if r.monthly {
		target := m + time.Month(k)
		// Normalize year/month first, then clamp to the month's last day.
		first := time.Date(y, target, 1, 0, 0, 0, 0, loc)
		last := calendar.DaysIn(first.Year(), first.Month(), loc)
		return time.Date(first.Year(), first.Month(), min(d, last), hh, mm, ss, ns, loc)
	}
	return time.Date(y, m, d+k*r.days, hh, mm, ss, ns, loc)
}

func (r rule) keep(t time.Time) bool {
	if !r.weekdays {
		return true
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// firstIndex returns the smallest k such that at(k) >= rangeStart, computed
// from the calendar distance between anchor and rangeStart so the cost does
// not depend on how old the anchor is.
func (r rule) firstIndex(rangeStart time.Time) int {
	if !r.anchor.Before(rangeStart) {
		return 0
	}
	start := rangeStart.In(r.anchor.Location())

	var k int
	if r.monthly {
		ay, am, _ := r.anchor.Date()
		sy, sm, _ := start.Date()
		k = (sy-ay)*12 + int(sm-am)
	} else {
		diff := civilDays(start) - civilDays(r.anchor)
		k = (diff + r.days - 1) / r.days
	}
	if k < 0 {
		k = 0
	}
	// Same calendar day or month as rangeStart but earlier in it.
	for r.at(k).Before(rangeStart) {
		k++
	}
	return k
}

// civilDays numbers t's calendar day independently of its location and of
// daylight-saving shifts.
func civilDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
