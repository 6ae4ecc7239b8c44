package agents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/madhatter5501/WorkOS/agents/provider"
	"github.com/madhatter5501/WorkOS/kanban"
)

// mockProvider returns a canned answer and records requests.
type mockProvider struct {
	provider.BaseProvider
	available bool
	content   string
	err       error
	requests  []*provider.MessageRequest
}

func (m *mockProvider) CreateMessage(ctx context.Context, req *provider.MessageRequest) (*provider.MessageResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &provider.MessageResponse{Content: m.content, Model: req.Model}, nil
}

func (m *mockProvider) Name() string    { return "mock" }
func (m *mockProvider) Available() bool { return m.available }

func newTestAnalyst(t *testing.T, p provider.Provider) *Analyst {
	t.Helper()
	a, err := NewAnalyst(p, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewAnalyst failed: %v", err)
	}
	return a
}

var sampleTasks = []kanban.Task{
	{
		Title:       "Intégration Carte 3D",
		Status:      kanban.StatusInProgress,
		Assignee:    kanban.User{Name: "Stéphane"},
		Sector:      kanban.SectorDev,
		Deadline:    "2023-11-20",
		Description: "Optimisation Three.js pour mobile.",
	},
}

const validReport = "```json\n" + `{
  "summary": "Bon avancement.",
  "risks": ["FPS Android"],
  "nextSteps": ["Revoir les shaders"],
  "kpis": [{"label": "Vélocité", "value": "12 pts", "trend": "up"}],
  "chartData": [{"name": "Carte 3D", "progress": 50, "assignee": "Stéphane"}]
}` + "\n```"

func TestAnalyzeProjectProgress(t *testing.T) {
	p := &mockProvider{available: true, content: validReport}
	a := newTestAnalyst(t, p)

	result, err := a.AnalyzeProjectProgress(context.Background(), sampleTasks)
	if err != nil {
		t.Fatalf("AnalyzeProjectProgress failed: %v", err)
	}
	if result.Summary != "Bon avancement." || len(result.KPIs) != 1 || result.KPIs[0].Trend != kanban.TrendUp {
		t.Errorf("unexpected result %+v", result)
	}
	if result.ChartData[0].Progress != 50 {
		t.Errorf("unexpected chart data %+v", result.ChartData)
	}

	if len(p.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(p.requests))
	}
	req := p.requests[0]
	if req.Model != provider.ModelGemini25Flash || req.ResponseMIMEType != "application/json" || req.ResponseSchema == nil {
		t.Errorf("unexpected request settings %+v", req)
	}
	prompt := req.Messages[0].Content
	wantLine := "- Intégration Carte 3D (En cours) assigné à Stéphane dans le secteur Développement. Deadline: 2023-11-20. Description: Optimisation Three.js pour mobile."
	if !strings.Contains(prompt, wantLine) {
		t.Errorf("prompt is missing the task line:\n%s", prompt)
	}
	if !strings.Contains(prompt, `"Oracle Navigator"`) {
		t.Error("prompt should name the project")
	}
}

func TestAnalyzeProjectProgressMissingKey(t *testing.T) {
	tests := []struct {
		name string
		p    provider.Provider
	}{
		{"nil provider", nil},
		{"unavailable provider", &mockProvider{available: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyst(t, tt.p)
			_, err := a.AnalyzeProjectProgress(context.Background(), sampleTasks)
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if mp, ok := tt.p.(*mockProvider); ok && len(mp.requests) != 0 {
				t.Error("no request may be sent without a credential")
			}
		})
	}
}

func TestAnalyzeProjectProgressBadAnswers(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{"transport error", "", errors.New("connection reset")},
		{"empty text", "  ", nil},
		{"not json", "Voici le rapport", nil},
		{"missing field", `{"summary": "x", "risks": [], "nextSteps": [], "kpis": []}`, nil},
		{"bad trend", `{"summary": "x", "risks": [], "nextSteps": [], "kpis": [{"label": "a", "value": "b", "trend": "sideways"}], "chartData": []}`, nil},
		{"progress out of range", `{"summary": "x", "risks": [], "nextSteps": [], "kpis": [], "chartData": [{"name": "a", "progress": 140, "assignee": "b"}]}`, nil},
		{
			"too many kpis",
			`{"summary": "x", "risks": [], "nextSteps": [], "chartData": [], "kpis": [` +
				`{"label": "a", "value": "1", "trend": "up"}, {"label": "b", "value": "2", "trend": "up"},` +
				`{"label": "c", "value": "3", "trend": "up"}, {"label": "d", "value": "4", "trend": "up"}]}`,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyst(t, &mockProvider{available: true, content: tt.content, err: tt.err})
			_, err := a.AnalyzeProjectProgress(context.Background(), sampleTasks)
			var ae *AnalysisError
			if !errors.As(err, &ae) {
				t.Fatalf("expected AnalysisError, got %v", err)
			}
		})
	}
}

func TestEvaluateTaskStrategy(t *testing.T) {
	p := &mockProvider{available: true, content: `{"impactScore": 85, "effortScore": 3, "strategicTheme": "UX", "aiRationale": "Fort impact visuel."}`}
	a := newTestAnalyst(t, p)

	score := a.EvaluateTaskStrategy(context.Background(), "Maquette iOS", "Effets de flou")
	want := kanban.Score{ImpactScore: 85, EffortScore: 3, StrategicTheme: "UX", AIRationale: "Fort impact visuel."}
	if score != want {
		t.Errorf("EvaluateTaskStrategy() = %+v, want %+v", score, want)
	}

	prompt := p.requests[0].Messages[0].Content
	if !strings.Contains(prompt, "Titre: Maquette iOS") || !strings.Contains(prompt, "Description: Effets de flou") {
		t.Errorf("unexpected prompt:\n%s", prompt)
	}
}

func TestEvaluateTaskStrategyFallback(t *testing.T) {
	tests := []struct {
		name string
		p    *mockProvider
	}{
		{"missing key", &mockProvider{available: false}},
		{"transport error", &mockProvider{available: true, err: errors.New("timeout")}},
		{"garbage", &mockProvider{available: true, content: "désolé"}},
		{"impact out of range", &mockProvider{available: true, content: `{"impactScore": 150, "effortScore": 3, "strategicTheme": "UX", "aiRationale": "x"}`}},
		{"effort out of range", &mockProvider{available: true, content: `{"impactScore": 50, "effortScore": 0, "strategicTheme": "UX", "aiRationale": "x"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyst(t, tt.p)
			if got := a.EvaluateTaskStrategy(context.Background(), "t", "d"); got != kanban.FallbackScore {
				t.Errorf("expected fallback score, got %+v", got)
			}
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1]\n```", "[1]"},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := cleanJSON(tt.in); got != tt.want {
			t.Errorf("cleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
