// Package calendar computes the date boundaries and display dates of the
// planner views. Weeks start on Monday. All results are expressed in the
// location of the supplied reference date.
package calendar

import (
	"fmt"
	"time"

	"taskflow/internal/model"
)

// DayKeyLayout formats the canonical calendar-day key (YYYY-MM-DD).
const DayKeyLayout = "2006-01-02"

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// DayKey formats t's calendar day as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ComputeRange returns the filtering range [start, end) of the view that
// contains ref. For the month view this is the plain calendar month, never
// the extended display grid.
//
// An unknown view is a programming error and panics.
func ComputeRange(view model.View, ref time.Time) model.CalendarRange {
	switch view {
	case model.ViewDay:
		start := StartOfDay(ref)
		return model.CalendarRange{Start: start, End: start.AddDate(0, 0, 1)}
	case model.ViewWeek:
		start := StartOfWeek(ref)
		return model.CalendarRange{Start: start, End: start.AddDate(0, 0, 7)}
	case model.ViewMonth:
		start := StartOfMonth(ref)
		return model.CalendarRange{Start: start, End: start.AddDate(0, 1, 0)}
	default:
		panic(fmt.Sprintf("calendar: unknown view %v", view))
	}
}

// ComputeDates returns the midnights of the days the view displays, in
// order. The month view is padded to whole Monday-start weeks, so its length
// is always a multiple of 7.
func ComputeDates(view model.View, ref time.Time) []time.Time {
	var first, end time.Time
	switch view {
	case model.ViewDay, model.ViewWeek:
		r := ComputeRange(view, ref)
		first, end = r.Start, r.End
	case model.ViewMonth:
		r := ComputeRange(view, ref)
		first = StartOfWeek(r.Start)
		end = StartOfWeek(r.End.AddDate(0, 0, -1)).AddDate(0, 0, 7)
	default:
		panic(fmt.Sprintf("calendar: unknown view %v", view))
	}

	dates := make([]time.Time, 0, 42)
	for d := first; d.Before(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Navigate moves ref one view-sized step backwards (delta < 0) or forwards
// (delta > 0). Month steps land on the first of the target month so that
// short months are never skipped.
func Navigate(view model.View, ref time.Time, delta int) time.Time {
	switch view {
	case model.ViewDay:
		return ref.AddDate(0, 0, delta)
	case model.ViewWeek:
		return ref.AddDate(0, 0, 7*delta)
	case model.ViewMonth:
		return StartOfMonth(ref).AddDate(0, delta, 0)
	default:
		panic(fmt.Sprintf("calendar: unknown view %v", view))
	}
}
