package kanban

import (
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	now := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.Local)
	task := func(id string, status TaskStatus, deadline string, assignee User) Task {
		return Task{ID: id, Status: status, Deadline: deadline, Assignee: assignee}
	}
	tasks := []Task{
		task("a", StatusDone, "2026-10-01", alice),
		task("b", StatusTodo, "2026-10-21", alice),       // 2 days away
		task("c", StatusInProgress, "2026-10-25", alice), // not urgent
		task("d", StatusReview, "2026-10-10", alice),     // overdue
		task("e", StatusTodo, "2026-10-19", member),      // someone else
	}
	meetings := []Meeting{
		{ID: "m2", Date: "2026-10-21", Time: "14:00", Attendees: []string{"u1", "u3"}},
		{ID: "m1", Date: "2026-10-21", Time: "09:00", Attendees: []string{"u3"}},
		{ID: "m3", Date: "2026-10-20", Time: "10:00", Attendees: []string{"u1"}},
	}

	s := Summarize(alice, tasks, meetings, now)

	if s.User.PasswordHash != "" {
		t.Error("summary must not expose credentials")
	}
	if s.Total != 4 {
		t.Errorf("expected 4 tasks, got %d", s.Total)
	}
	if s.CompletionRate != 25 {
		t.Errorf("expected 25%% completion, got %d", s.CompletionRate)
	}
	if s.ByStatus[StatusTodo] != 1 || s.ByStatus[StatusDone] != 1 {
		t.Errorf("unexpected counts %v", s.ByStatus)
	}
	if len(s.Open) != 3 {
		t.Errorf("expected 3 open tasks, got %d", len(s.Open))
	}
	if len(s.Urgent) != 2 || s.Urgent[0].ID != "b" || s.Urgent[1].ID != "d" {
		t.Errorf("expected b and d urgent, got %+v", s.Urgent)
	}
	if len(s.Meetings) != 2 || s.Meetings[0].ID != "m1" || s.Meetings[1].ID != "m2" {
		t.Errorf("expected meetings m1, m2 in time order, got %+v", s.Meetings)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(visitor, nil, nil, time.Now())
	if s.Total != 0 || s.CompletionRate != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}
	if s.Urgent == nil || s.Meetings == nil {
		t.Error("empty lists should encode as [] not null")
	}
}
