package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"taskflow/internal/model"
)

// ErrUnsupportedRule is returned by FromRRule for RRULEs that cannot be
// represented by one of the planner's recurrence kinds.
var ErrUnsupportedRule = errors.New("unsupported RRULE")

var workWeek = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}

// RuleOption describes kind anchored at anchor as an RFC 5545 rule. It returns
// nil for RecurrenceNone.
//
// Monthly rules anchored after the 28th use BYSETPOS=-1 over the tail days of
// the month, which selects the anchor day or the month's last day when the
// month is shorter.
func RuleOption(kind model.Recurrence, anchor time.Time) *rrule.ROption {
	opt := &rrule.ROption{Dtstart: anchor}
	switch kind {
	case model.RecurrenceNone:
		return nil
	case model.RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case model.RecurrenceWeekdays:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = workWeek
	case model.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
	case model.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
		day := anchor.Day()
		if day <= 28 {
			opt.Bymonthday = []int{day}
			break
		}
		for d := 28; d <= day; d++ {
			opt.Bymonthday = append(opt.Bymonthday, d)
		}
		opt.Bysetpos = []int{-1}
	default:
		panic(fmt.Sprintf("recurrence: unknown kind %v", kind))
	}
	return opt
}

// FromRRule maps an RRULE value (without the "RRULE:" prefix) onto a
// recurrence kind. anchor is the component's DTSTART as wall-clock time. Only
// unbounded rules with interval 1 that one of the four kinds reproduces
// exactly from anchor are accepted: a weekly BYDAY must name the anchor's
// weekday and a monthly BYMONTHDAY must be the anchor's day, or the
// BYSETPOS=-1 clamp form RuleOption writes.
func FromRRule(value string, anchor time.Time) (model.Recurrence, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return 0, fmt.Errorf("parse RRULE %q: %w", value, err)
	}
	unsupported := fmt.Errorf("%w: %q", ErrUnsupportedRule, value)
	if opt.Interval > 1 || opt.Count != 0 || !opt.Until.IsZero() {
		return 0, unsupported
	}
	if len(opt.Bymonth) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 ||
		len(opt.Byeaster) > 0 {
		return 0, unsupported
	}

	switch opt.Freq {
	case rrule.DAILY:
		if len(opt.Bymonthday) > 0 || len(opt.Bysetpos) > 0 {
			return 0, unsupported
		}
		if len(opt.Byweekday) == 0 {
			return model.RecurrenceDaily, nil
		}
		if isWorkWeek(opt.Byweekday) {
			return model.RecurrenceWeekdays, nil
		}
	case rrule.WEEKLY:
		if len(opt.Bymonthday) > 0 || len(opt.Bysetpos) > 0 {
			return 0, unsupported
		}
		if isWorkWeek(opt.Byweekday) {
			return model.RecurrenceWeekdays, nil
		}
		if len(opt.Byweekday) == 0 || isAnchorWeekday(opt.Byweekday, anchor) {
			return model.RecurrenceWeekly, nil
		}
	case rrule.MONTHLY:
		if len(opt.Byweekday) == 0 && isAnchorMonthDay(opt.Bymonthday, opt.Bysetpos, anchor.Day()) {
			return model.RecurrenceMonthly, nil
		}
	}
	return 0, unsupported
}

func isAnchorWeekday(days []rrule.Weekday, anchor time.Time) bool {
	if len(days) != 1 || days[0].N() != 0 {
		return false
	}
	// rrule counts weekdays from Monday = 0.
	return days[0].Day() == (int(anchor.Weekday())+6)%7
}

// isAnchorMonthDay accepts no BYMONTHDAY, exactly the anchor day, or the
// days 28..day selected with BYSETPOS=-1.
func isAnchorMonthDay(days, setpos []int, day int) bool {
	if len(setpos) == 0 {
		return len(days) == 0 || (len(days) == 1 && days[0] == day)
	}
	if len(setpos) != 1 || setpos[0] != -1 || day <= 28 || len(days) != day-27 {
		return false
	}
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d < 28 || d > day || seen[d] {
			return false
		}
		seen[d] = true
	}
	return true
}

func isWorkWeek(days []rrule.Weekday) bool {
	if len(days) != len(workWeek) {
		return false
	}
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d.N() != 0 {
			return false
		}
		seen[d.Day()] = true
	}
	for _, d := range workWeek {
		if !seen[d.Day()] {
			return false
		}
	}
	return true
}
