package ics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"taskflow/internal/model"
	"taskflow/internal/recurrence"
)

const (
	productID = "-//taskflow//planner//EN"

	// propEstimate carries the estimated minutes. RFC 5545 has no standard
	// property for an effort estimate.
	propEstimate = "X-TASKFLOW-ESTIMATED-MINUTES"

	localTimestamp = "20060102T150405"
)

// uidSpace namespaces the deterministic UIDs of exported tasks.
var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:taskflow:task"))

// EncodeOptions controls calendar-level properties of an export.
type EncodeOptions struct {
	// Name becomes X-WR-CALNAME. Empty omits it.
	Name string
	// Stamp is written as DTSTAMP on every component.
	Stamp time.Time
}

// TaskUID returns the stable iCalendar UID of task id.
func TaskUID(id int64) string {
	return uuid.NewSHA1(uidSpace, []byte(strconv.FormatInt(id, 10))).String()
}

// Encode writes tasks as a VCALENDAR of VTODO components. Recurring tasks
// carry an RRULE equivalent to their recurrence; occurrences are left to the
// consuming client.
func Encode(w io.Writer, tasks []model.Task, opts EncodeOptions) error {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for i := range tasks {
		if err := addTodo(cal, &tasks[i], stamp); err != nil {
			return err
		}
	}
	return cal.SerializeTo(w)
}

func addTodo(cal *ical.Calendar, t *model.Task, stamp time.Time) error {
	todo := cal.AddTodo(TaskUID(t.ID))
	todo.SetDtStampTime(stamp)
	todo.SetSummary(t.Title)
	if t.Description != "" {
		todo.SetDescription(t.Description)
	}
	if !t.CreatedAt.IsZero() {
		todo.SetCreatedTime(t.CreatedAt)
	}
	if !t.UpdatedAt.IsZero() {
		todo.SetModifiedAt(t.UpdatedAt)
	}

	// RRULE is evaluated from DTSTART, so both carry the anchor.
	setTime(&todo.ComponentBase, ical.ComponentPropertyDtStart, t.DueDate)
	setTime(&todo.ComponentBase, ical.ComponentPropertyDue, t.DueDate)

	if t.Recurrence.Repeats() {
		opt := recurrence.RuleOption(t.Recurrence, t.DueDate)
		if opt == nil {
			return fmt.Errorf("task %d: no rule for recurrence %s", t.ID, t.Recurrence)
		}
		todo.AddRrule(opt.RRuleString())
	}

	todo.SetPriority(icalPriority(t.Priority))
	todo.SetStatus(icalStatus(t.Status))
	todo.SetPercentComplete(t.Progress)
	if t.Status == model.StatusCompleted && !t.UpdatedAt.IsZero() {
		todo.SetCompletedAt(t.UpdatedAt)
	}
	if t.EstimatedMinutes != nil {
		todo.SetProperty(ical.ComponentProperty(propEstimate), strconv.Itoa(*t.EstimatedMinutes))
	}
	return nil
}

// setTime writes t with its zone as TZID when the zone has an IANA name and
// as UTC otherwise.
func setTime(c *ical.ComponentBase, prop ical.ComponentProperty, t time.Time) {
	name := t.Location().String()
	if name == "UTC" || name == "Local" || name == "" {
		c.SetProperty(prop, t.UTC().Format(localTimestamp)+"Z")
		return
	}
	if _, err := time.LoadLocation(name); err != nil {
		c.SetProperty(prop, t.UTC().Format(localTimestamp)+"Z")
		return
	}
	c.SetProperty(prop, t.Format(localTimestamp), ical.WithTZID(name))
}

// icalPriority maps onto the RFC 5545 1 (highest) to 9 (lowest) scale.
func icalPriority(p model.Priority) int {
	switch p {
	case model.PriorityUrgent:
		return 1
	case model.PriorityHigh:
		return 3
	case model.PriorityLow:
		return 9
	default:
		return 5
	}
}

func icalStatus(s model.Status) ical.ObjectStatus {
	switch s {
	case model.StatusCompleted:
		return ical.ObjectStatusCompleted
	case model.StatusInProgress:
		return ical.ObjectStatusInProcess
	default:
		return ical.ObjectStatusNeedsAction
	}
}
