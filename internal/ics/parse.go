// Package ics converts planner tasks to and from iCalendar (RFC 5545).
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "taskflow/internal/log"
	"taskflow/internal/model"
	"taskflow/internal/recurrence"
	"taskflow/internal/validate"
)

// Source identifies where an ICS payload came from, for logging.
type Source struct {
	ID  string
	URL string
}

// ErrNoDate is returned for components without DUE or DTSTART.
var ErrNoDate = errors.New("component has no DUE or DTSTART")

// Decode parses an ICS payload into task inputs, one per VTODO and VEVENT.
//
//   - VTODO takes its date from DUE, falling back to DTSTART; VEVENT from
//     DTSTART.
//   - All-day values (VALUE=DATE or no time part) become date-only inputs so
//     they land at midnight of the importing zone.
//   - RRULEs are mapped onto the planner's recurrence kinds. Components whose
//     rule cannot be represented, or that lack a summary or date, are logged
//     and skipped; the rest of the payload is still decoded.
//   - Recurrence sets a task cannot reproduce are skipped as a whole: the
//     RECURRENCE-ID overrides, their master, and components with EXDATE or
//     RDATE.
//
// Inputs are not validated here; that happens when they are created.
func Decode(src Source, body []byte) ([]validate.TaskInput, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	inputs := make([]validate.TaskInput, 0)
	skipped := 0
	overridden := overriddenUIDs(cal)

	for _, todo := range cal.Todos() {
		in, perr := parseComponent(&todo.ComponentBase, overridden,
			datedProp{ical.ComponentPropertyDue, todo.GetDueAt},
			datedProp{ical.ComponentPropertyDtStart, todo.GetStartAt})
		if perr != nil {
			skipped++
			appLog.Warn("ics vtodo skipped", "id", src.ID, "uid", todo.Id(), "reason", perr.Error())
			continue
		}
		inputs = append(inputs, in)
	}
	for _, ev := range cal.Events() {
		in, perr := parseComponent(&ev.ComponentBase, overridden,
			datedProp{ical.ComponentPropertyDtStart, ev.GetStartAt})
		if perr != nil {
			skipped++
			appLog.Warn("ics vevent skipped", "id", src.ID, "uid", ev.Id(), "reason", perr.Error())
			continue
		}
		inputs = append(inputs, in)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL),
		"task_count", len(inputs), "skipped", skipped)
	return inputs, nil
}

// datedProp pairs a date property with the library getter that resolves its
// TZID.
type datedProp struct {
	prop ical.ComponentProperty
	get  func() (time.Time, error)
}

// overriddenUIDs collects the UIDs that have RECURRENCE-ID instances.
func overriddenUIDs(cal *ical.Calendar) map[string]bool {
	uids := make(map[string]bool)
	for _, c := range cal.Components {
		base := componentBase(c)
		if base == nil || base.GetProperty(ical.ComponentPropertyRecurrenceId) == nil {
			continue
		}
		uids[base.Id()] = true
	}
	return uids
}

func componentBase(c ical.Component) *ical.ComponentBase {
	switch v := c.(type) {
	case *ical.VEvent:
		return &v.ComponentBase
	case *ical.VTodo:
		return &v.ComponentBase
	default:
		return nil
	}
}

// recurrenceSetError rejects components whose instances depend on more than
// an RRULE.
func recurrenceSetError(c *ical.ComponentBase, overridden map[string]bool) error {
	switch {
	case c.GetProperty(ical.ComponentPropertyRecurrenceId) != nil:
		return errors.New("RECURRENCE-ID override")
	case c.GetProperty(ical.ComponentPropertyExdate) != nil:
		return errors.New("EXDATE not supported")
	case c.GetProperty(ical.ComponentPropertyRdate) != nil:
		return errors.New("RDATE not supported")
	case overridden[c.Id()]:
		return errors.New("has RECURRENCE-ID overrides")
	}
	return nil
}

func parseComponent(c *ical.ComponentBase, overridden map[string]bool, dates ...datedProp) (validate.TaskInput, error) {
	var in validate.TaskInput
	if err := recurrenceSetError(c, overridden); err != nil {
		return in, err
	}

	if p := c.GetProperty(ical.ComponentPropertySummary); p != nil {
		in.Title = strings.TrimSpace(p.Value)
	}
	if in.Title == "" {
		return in, errors.New("missing SUMMARY")
	}
	if p := c.GetProperty(ical.ComponentPropertyDescription); p != nil {
		in.Description = p.Value
	}

	if p := c.GetProperty(ical.ComponentPropertyStatus); p != nil &&
		strings.EqualFold(p.Value, string(ical.ObjectStatusCancelled)) {
		return in, errors.New("cancelled")
	}

	due, anchor, err := componentDate(c, dates)
	if err != nil {
		return in, err
	}
	in.DueDate = due

	in.Recurrence = model.RecurrenceNone.String()
	if p := c.GetProperty(ical.ComponentPropertyRrule); p != nil {
		kind, rerr := recurrence.FromRRule(p.Value, anchor)
		if rerr != nil {
			return in, rerr
		}
		in.Recurrence = kind.String()
	}

	if p := c.GetProperty(ical.ComponentPropertyPriority); p != nil {
		if n, perr := strconv.Atoi(strings.TrimSpace(p.Value)); perr == nil {
			in.Priority = string(taskPriority(n))
		}
	}
	if p := c.GetProperty(ical.ComponentPropertyStatus); p != nil {
		in.Status = string(taskStatus(p.Value))
	}
	if p := c.GetProperty(ical.ComponentPropertyPercentComplete); p != nil {
		if n, perr := strconv.Atoi(strings.TrimSpace(p.Value)); perr == nil {
			n = min(max(n, 0), 100)
			in.Progress = &n
		}
	}
	if p := c.GetProperty(ical.ComponentProperty(propEstimate)); p != nil {
		if n, perr := strconv.Atoi(strings.TrimSpace(p.Value)); perr == nil && n >= 0 {
			in.EstimatedMinutes = &n
		}
	}
	return in, nil
}

// componentDate reads the first present property of dates and renders it in
// a form validate.ParseDateTime accepts. It also returns the value as
// wall-clock time in its own zone.
func componentDate(c *ical.ComponentBase, dates []datedProp) (string, time.Time, error) {
	for _, d := range dates {
		p := c.GetProperty(d.prop)
		if p == nil {
			continue
		}
		if isAllDay(p) {
			v := strings.TrimSpace(p.Value)
			if len(v) < 8 {
				return "", time.Time{}, fmt.Errorf("%s: malformed date %q", d.prop, v)
			}
			t, err := time.Parse("20060102", v[:8])
			if err != nil {
				return "", time.Time{}, fmt.Errorf("%s: %w", d.prop, err)
			}
			return t.Format("2006-01-02"), t, nil
		}

		t, err := d.get()
		if err != nil {
			return "", time.Time{}, fmt.Errorf("%s: %w", d.prop, err)
		}
		if isFloating(p) {
			return t.Format("2006-01-02T15:04:05"), t, nil
		}
		return t.Format(time.RFC3339), t, nil
	}
	return "", time.Time{}, ErrNoDate
}

// isAllDay reports VALUE=DATE or a value without a time part.
func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	v := strings.TrimSpace(p.Value)
	return len(v) >= 8 && !strings.Contains(v, "T")
}

// isFloating reports a local date-time with neither TZID nor a UTC marker;
// such values are read in the importing zone.
func isFloating(p *ical.IANAProperty) bool {
	if _, ok := p.ICalParameters["TZID"]; ok {
		return false
	}
	return !strings.HasSuffix(strings.TrimSpace(p.Value), "Z")
}

// taskPriority maps the RFC 5545 scale (1 highest, 9 lowest, 0 undefined).
func taskPriority(n int) model.Priority {
	switch {
	case n == 1 || n == 2:
		return model.PriorityUrgent
	case n == 3 || n == 4:
		return model.PriorityHigh
	case n >= 6 && n <= 9:
		return model.PriorityLow
	default:
		return model.PriorityMedium
	}
}

func taskStatus(v string) model.Status {
	switch ical.ObjectStatus(strings.ToUpper(strings.TrimSpace(v))) {
	case ical.ObjectStatusCompleted:
		return model.StatusCompleted
	case ical.ObjectStatusInProcess:
		return model.StatusInProgress
	default:
		return model.StatusPending
	}
}
