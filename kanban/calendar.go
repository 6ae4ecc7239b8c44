package kanban

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var frenchTitle = cases.Title(language.French)

// Month is the month shown by the calendar grid.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) first() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.Local)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.first().AddDate(0, 1, -1).Day()
}

// FirstWeekday returns the weekday of the 1st, which sets the leading blank cells.
func (m Month) FirstWeekday() time.Weekday {
	return m.first().Weekday()
}

// DateString formats day of the month as YYYY-MM-DD.
func (m Month) DateString(day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", m.Year, int(m.Month), day)
}

// Valid reports whether the month number is 1 to 12.
func (m Month) Valid() bool {
	return m.Month >= time.January && m.Month <= time.December
}

// Label returns the French title of the month, e.g. "Octobre 2026". An out of
// range month is normalized the way time.Date does.
func (m Month) Label() string {
	t := m.first()
	return frenchTitle.String(fmt.Sprintf("%s %d", frenchMonths[t.Month()-1], t.Year()))
}

// checkDay rejects a drop target outside the month grid.
func (m Month) checkDay(day int) error {
	if !m.Valid() {
		return &ValidationError{Field: "month", Message: fmt.Sprintf("%d is not a month", int(m.Month))}
	}
	if day < 1 || day > m.Days() {
		return &ValidationError{Field: "day", Message: fmt.Sprintf("%d is outside %s", day, m.Label())}
	}
	return nil
}

// Next returns the following month.
func (m Month) Next() Month {
	return MonthOf(m.first().AddDate(0, 1, 0))
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return MonthOf(m.first().AddDate(0, -1, 0))
}

// Calendar places tasks (by deadline) and meetings (by date) on a month grid.
type Calendar struct {
	tasks    List[Task]
	meetings List[Meeting]
	logger   *slog.Logger
}

// NewCalendar creates a calendar over the shared task and meeting lists.
func NewCalendar(tasks List[Task], meetings List[Meeting], logger *slog.Logger) *Calendar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calendar{tasks: tasks, meetings: meetings, logger: logger}
}

// Meetings returns every meeting in collection order.
func (c *Calendar) Meetings() []Meeting {
	return c.meetings.Snapshot()
}

// MeetingInput is the "new meeting" form.
type MeetingInput struct {
	Title     string      `json:"title"`
	Date      string      `json:"date"`
	Time      string      `json:"time,omitempty"`
	Type      MeetingType `json:"type,omitempty"`
	Attendees []string    `json:"attendees,omitempty"`
}

// DayEntries is everything scheduled on one date.
type DayEntries struct {
	Date     string    `json:"date"`
	Tasks    []Task    `json:"tasks"`
	Meetings []Meeting `json:"meetings"`
}

// Day returns the tasks due and the meetings held on date.
func (c *Calendar) Day(date string) DayEntries {
	d := DayEntries{Date: date, Tasks: []Task{}, Meetings: []Meeting{}}
	for _, t := range c.tasks.Snapshot() {
		if t.Deadline == date {
			d.Tasks = append(d.Tasks, t)
		}
	}
	for _, m := range c.meetings.Snapshot() {
		if m.Date == date {
			d.Meetings = append(d.Meetings, m)
		}
	}
	return d
}

// Grid returns the entries of every day of m, indexed by day-1.
func (c *Calendar) Grid(m Month) []DayEntries {
	days := make([]DayEntries, m.Days())
	for i := range days {
		days[i] = c.Day(m.DateString(i + 1))
	}
	return days
}

// MoveTask drops a task on a day of m, overwriting its deadline.
func (c *Calendar) MoveTask(ctx context.Context, m Month, id string, day int) (Task, error) {
	if err := m.checkDay(day); err != nil {
		return Task{}, err
	}
	date := m.DateString(day)
	var moved Task
	err := c.tasks.Mutate(ctx, func(tasks []Task) ([]Task, error) {
		i := indexOf(tasks, id, taskID)
		if i < 0 {
			return nil, ErrTaskNotFound
		}
		tasks[i].Deadline = date
		moved = tasks[i]
		return tasks, nil
	})
	if err != nil {
		return Task{}, err
	}
	c.logger.Debug("Task rescheduled", "id", id, "deadline", date)
	return moved, nil
}

// MoveMeeting drops a meeting on a day of m, overwriting its date.
func (c *Calendar) MoveMeeting(ctx context.Context, m Month, id string, day int) (Meeting, error) {
	if err := m.checkDay(day); err != nil {
		return Meeting{}, err
	}
	date := m.DateString(day)
	var moved Meeting
	err := c.meetings.Mutate(ctx, func(meetings []Meeting) ([]Meeting, error) {
		i := indexOf(meetings, id, meetingID)
		if i < 0 {
			return nil, ErrMeetingNotFound
		}
		meetings[i].Date = date
		moved = meetings[i]
		return meetings, nil
	})
	if err != nil {
		return Meeting{}, err
	}
	c.logger.Debug("Meeting rescheduled", "id", id, "date", date)
	return moved, nil
}

// CreateMeeting schedules a meeting. The creator attends unless attendees are given.
func (c *Calendar) CreateMeeting(ctx context.Context, actor User, in MeetingInput) (Meeting, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Meeting{}, required("title")
	}
	if _, err := time.Parse(DateLayout, in.Date); err != nil {
		return Meeting{}, &ValidationError{Field: "date", Message: "expected YYYY-MM-DD"}
	}

	meeting := Meeting{
		ID:        newID("m"),
		Title:     in.Title,
		Date:      in.Date,
		Time:      in.Time,
		Type:      in.Type,
		Attendees: slices.Clone(in.Attendees),
	}
	if meeting.Time == "" {
		meeting.Time = "10:00"
	}
	if meeting.Type == "" {
		meeting.Type = MeetingVideo
	}
	if len(meeting.Attendees) == 0 {
		meeting.Attendees = []string{actor.ID}
	}

	err := c.meetings.Mutate(ctx, func(meetings []Meeting) ([]Meeting, error) {
		return append(meetings, meeting), nil
	})
	if err != nil {
		return Meeting{}, fmt.Errorf("failed to save meeting: %w", err)
	}
	c.logger.Info("Meeting created", "id", meeting.ID, "date", meeting.Date, "by", actor.ID)
	return meeting, nil
}
