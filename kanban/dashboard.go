package kanban

import (
	"math"
	"slices"
	"time"
)

// urgentWithinDays is how close a deadline must be for an open task to count as urgent.
const urgentWithinDays = 2

// Summary is a user's personal dashboard.
type Summary struct {
	User           User               `json:"user"`
	ByStatus       map[TaskStatus]int `json:"byStatus"`
	Total          int                `json:"total"`
	CompletionRate int                `json:"completionRate"` // Percent, rounded
	Urgent         []Task             `json:"urgent"`
	Open           []Task             `json:"open"`
	Meetings       []Meeting          `json:"meetings"`
}

// Summarize builds the dashboard of user from the tasks assigned to them and the
// meetings they attend, evaluated at now.
func Summarize(user User, tasks []Task, meetings []Meeting, now time.Time) Summary {
	s := Summary{
		User:     user.Public(),
		ByStatus: make(map[TaskStatus]int, len(Columns())),
		Urgent:   []Task{},
		Open:     []Task{},
		Meetings: []Meeting{},
	}
	for _, status := range Columns() {
		s.ByStatus[status] = 0
	}

	for _, t := range tasks {
		if t.Assignee.ID != user.ID {
			continue
		}
		s.Total++
		s.ByStatus[t.Status]++
		if t.Status == StatusDone {
			continue
		}
		s.Open = append(s.Open, t)
		if days, ok := daysUntil(t.Deadline, now); ok && days <= urgentWithinDays {
			s.Urgent = append(s.Urgent, t)
		}
	}
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.ByStatus[StatusDone]) / float64(s.Total) * 100))
	}

	for _, m := range meetings {
		if slices.Contains(m.Attendees, user.ID) {
			s.Meetings = append(s.Meetings, m)
		}
	}
	slices.SortStableFunc(s.Meetings, func(a, b Meeting) int {
		return a.Start().Compare(b.Start())
	})
	return s
}

// daysUntil returns ceil(days) from now to the start of deadline. Past deadlines are negative.
func daysUntil(deadline string, now time.Time) (int, bool) {
	d, err := time.ParseInLocation(DateLayout, deadline, now.Location())
	if err != nil {
		return 0, false
	}
	return int(math.Ceil(d.Sub(now).Hours() / 24)), true
}
