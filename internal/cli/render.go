package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskflow/internal/agenda"
	"taskflow/internal/calendar"
	"taskflow/internal/model"
)

var (
	colorPrimary   = lipgloss.Color("205")
	colorSecondary = lipgloss.Color("241")
	colorSuccess   = lipgloss.Color("42")
	colorError     = lipgloss.Color("160")
	colorWarning   = lipgloss.Color("214")
	colorText      = lipgloss.Color("252")

	styleHeader = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleDay    = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	styleToday  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Underline(true)
	styleSubtle = lipgloss.NewStyle().Foreground(colorSecondary)
	styleDone   = lipgloss.NewStyle().Foreground(colorSuccess).Strikethrough(true)

	styleStats = lipgloss.NewStyle().
			Foreground(colorSecondary).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorSecondary).
			Padding(0, 1)

	stylePriority = map[model.Priority]lipgloss.Style{
		model.PriorityUrgent: lipgloss.NewStyle().Foreground(colorError).Bold(true),
		model.PriorityHigh:   lipgloss.NewStyle().Foreground(colorWarning),
		model.PriorityMedium: lipgloss.NewStyle().Foreground(colorText),
		model.PriorityLow:    lipgloss.NewStyle().Foreground(colorSecondary),
	}
)

// RenderAgenda writes a human readable agenda. Day and week views list every
// day; month views only list days that have occurrences.
func RenderAgenda(w io.Writer, a agenda.Agenda) {
	fmt.Fprintln(w, styleHeader.Render(agendaTitle(a)))
	fmt.Fprintln(w, styleSubtle.Render(fmt.Sprintf("previous %s · next %s",
		calendar.DayKey(a.Previous), calendar.DayKey(a.Next))))

	printed := 0
	for _, d := range a.Days {
		if a.View == model.ViewMonth && (len(d.Occurrences) == 0 || !d.InMonth) {
			continue
		}
		fmt.Fprintln(w)
		head := d.Date.Format("Mon 2006-01-02")
		if d.IsToday {
			fmt.Fprintln(w, styleToday.Render(head+" (today)"))
		} else {
			fmt.Fprintln(w, styleDay.Render(head))
		}
		if len(d.Occurrences) == 0 {
			fmt.Fprintln(w, "  "+styleSubtle.Render("nothing due"))
			continue
		}
		for _, o := range d.Occurrences {
			fmt.Fprintln(w, "  "+occurrenceLine(o))
			printed++
		}
	}
	if a.View == model.ViewMonth && printed == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styleSubtle.Render("nothing due this month"))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, styleStats.Render(statsLine(a.Stats)))
}

// RenderTask writes a one-line summary of a stored task.
func RenderTask(w io.Writer, t model.Task) {
	line := fmt.Sprintf("#%d %s  due %s  %s",
		t.ID, t.Title, t.DueDate.Format("2006-01-02 15:04"), priorityLabel(t.Priority))
	if t.Recurrence.Repeats() {
		line += "  " + styleSubtle.Render("repeats "+t.Recurrence.String())
	}
	line += "  " + string(t.Status)
	fmt.Fprintln(w, line)
}

func agendaTitle(a agenda.Agenda) string {
	switch a.View {
	case model.ViewDay:
		return a.Range.Start.Format("Monday, 2 January 2006")
	case model.ViewMonth:
		return a.Reference.Format("January 2006")
	default:
		last := a.Range.End.AddDate(0, 0, -1)
		return fmt.Sprintf("Week of %s to %s", calendar.DayKey(a.Range.Start), calendar.DayKey(last))
	}
}

func occurrenceLine(o model.Occurrence) string {
	var b strings.Builder
	b.WriteString(styleSubtle.Render(o.OccurrenceDate.Format("15:04")))
	b.WriteString("  ")
	if o.Status == model.StatusCompleted {
		b.WriteString(styleDone.Render(o.Title))
	} else {
		b.WriteString(o.Title)
	}
	b.WriteString("  ")
	b.WriteString(priorityLabel(o.Priority))
	if o.Recurrence.Repeats() {
		b.WriteString(" " + styleSubtle.Render("↻ "+o.Recurrence.String()))
	}
	if o.Progress > 0 && o.Status != model.StatusCompleted {
		b.WriteString(fmt.Sprintf(" %d%%", o.Progress))
	}
	if o.EstimatedMinutes != nil {
		b.WriteString(" " + styleSubtle.Render(fmt.Sprintf("~%dm", *o.EstimatedMinutes)))
	}
	if n := len(o.Checklist); n > 0 {
		done := 0
		for _, item := range o.Checklist {
			if item.Done {
				done++
			}
		}
		b.WriteString(" " + styleSubtle.Render(fmt.Sprintf("[%d/%d]", done, n)))
	}
	b.WriteString(" " + styleSubtle.Render(fmt.Sprintf("#%d", o.TaskID)))
	return b.String()
}

func priorityLabel(p model.Priority) string {
	style, ok := stylePriority[p]
	if !ok {
		style = styleSubtle
	}
	return style.Render("[" + string(p) + "]")
}

func statsLine(s agenda.Stats) string {
	return fmt.Sprintf("%d tasks · %d done (%d%%) · %d overdue · %d urgent · %d recurring · streak %dd",
		s.Total, s.Completed, s.CompletionRate, s.Overdue, s.Urgent, s.Recurring, s.FocusStreak)
}
