package kanban

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestLoadSeed(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	seed, err := LoadSeed(now)
	if err != nil {
		t.Fatalf("LoadSeed failed: %v", err)
	}

	if len(seed.Users) != 4 || len(seed.Tasks) != 4 || len(seed.Meetings) != 2 || len(seed.Chat) != 2 {
		t.Fatalf("unexpected seed sizes: %d users, %d tasks, %d meetings, %d messages",
			len(seed.Users), len(seed.Tasks), len(seed.Meetings), len(seed.Chat))
	}

	roles := map[UserRole]bool{}
	for _, u := range seed.Users {
		roles[u.SystemRole] = true
		if seed.Passwords[u.ID] == "" {
			t.Errorf("user %s has no demo password", u.ID)
		}
	}
	if !roles[RoleAdmin] || !roles[RoleMember] || !roles[RoleVisitor] {
		t.Errorf("seed should cover every role, got %v", roles)
	}

	t1 := seed.Tasks[0]
	if t1.Assignee.Name != "Alice" || t1.Status != StatusDone || len(t1.History) != 4 {
		t.Errorf("unexpected t1: %+v", t1)
	}
	for _, task := range seed.Tasks {
		if !task.Status.Valid() || !task.Sector.Valid() {
			t.Errorf("task %s has invalid status or sector", task.ID)
		}
	}

	if want := now.Add(-time.Hour).Format(time.RFC3339); seed.Chat[0].Timestamp != want {
		t.Errorf("chat timestamp = %q, want %q", seed.Chat[0].Timestamp, want)
	}
}

func TestTaskJSONFieldNames(t *testing.T) {
	impact := 80.0
	task := Task{ID: "t1", Title: "x", Status: StatusInProgress, ImpactScore: &impact}
	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"id", "title", "assignee", "deadline", "status", "sector", "description", "history", "impactScore"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if _, ok := raw["effortScore"]; ok {
		t.Error("unset effortScore should be omitted")
	}
	if raw["status"] != "En cours" {
		t.Errorf("status should encode as its French label, got %v", raw["status"])
	}
}

// roundTrip encodes v as it is saved in the store and decodes it back.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got T
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return got
}

func TestCollectionsRoundTrip(t *testing.T) {
	seed := MustSeed(time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC))
	scored := FallbackScore.Apply(seed.Tasks[1])

	history := []AnalysisHistoryItem{{
		AIAnalysisResult: AIAnalysisResult{
			Summary:   "Bon avancement.",
			Risks:     []string{"FPS Android"},
			NextSteps: []string{"Revoir les shaders", "Tester sur iOS"},
			KPIs: []KPI{
				{Label: "Vélocité", Value: "12 pts", Trend: TrendUp},
				{Label: "Bugs", Value: "3", Trend: TrendDown},
				{Label: "Budget", Value: "80 %", Trend: TrendNeutral},
			},
			ChartData: []ChartPoint{{Name: "Carte 3D", Progress: 62.5, Assignee: "Stéphane"}},
		},
		Date: "2026-10-19T12:00:00Z",
	}}

	tests := []struct {
		name string
		in   any
		out  func() any
	}{
		{"tasks", seed.Tasks, func() any { return roundTrip(t, seed.Tasks) }},
		{"scored task", []Task{scored}, func() any { return roundTrip(t, []Task{scored}) }},
		{"meetings", seed.Meetings, func() any { return roundTrip(t, seed.Meetings) }},
		{"chat", seed.Chat, func() any { return roundTrip(t, seed.Chat) }},
		{"users", seed.Users, func() any { return roundTrip(t, seed.Users) }},
		{"ai history", history, func() any { return roundTrip(t, history) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.out(); !reflect.DeepEqual(got, tt.in) {
				t.Errorf("round trip changed the value:\n got %+v\nwant %+v", got, tt.in)
			}
		})
	}
}

func TestScoreApply(t *testing.T) {
	task := sampleTask()
	scored := FallbackScore.Apply(task)

	if scored.Impact() != 50 || *scored.EffortScore != 5 || scored.StrategicTheme != "Général" {
		t.Errorf("unexpected scored task %+v", scored)
	}
	if scored.Title != task.Title || len(scored.History) != len(task.History) {
		t.Error("Apply must only touch score fields")
	}
	if task.ImpactScore != nil {
		t.Error("Apply must not modify its argument")
	}
}
