// Package kanban provides the team workspace domain: tasks on a kanban board, meetings on a
// calendar, sector chat, and the AI report/score types that are attached to them.
// Every type serializes with the field names used by saved workspace data.
package kanban

import (
	"slices"
	"time"
)

// Sector tags tasks and chat messages by department.
type Sector string

const (
	SectorDesign       Sector = "Design & UX"
	SectorDev          Sector = "Développement"
	SectorMarketing    Sector = "Marketing"
	SectorGeneral      Sector = "Général" // No filter
	SectorCoordination Sector = "Coordination"
	SectorHR           Sector = "Ressources"
	SectorAudio        Sector = "Audio"
)

// Sectors returns every sector in declaration order.
func Sectors() []Sector {
	return []Sector{SectorDesign, SectorDev, SectorMarketing, SectorGeneral, SectorCoordination, SectorHR, SectorAudio}
}

// Valid reports whether s is a known sector.
func (s Sector) Valid() bool {
	return slices.Contains(Sectors(), s)
}

// TaskStatus is the board column a task sits in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "À faire"
	StatusInProgress TaskStatus = "En cours"
	StatusReview     TaskStatus = "En revue"
	StatusDone       TaskStatus = "Terminé"
)

// Columns returns the board columns in display order.
func Columns() []TaskStatus {
	return []TaskStatus{StatusTodo, StatusInProgress, StatusReview, StatusDone}
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	return slices.Contains(Columns(), s)
}

// UserRole is the technical role that gates mutations. It is distinct from the
// display job title in User.Role.
type UserRole string

const (
	RoleAdmin   UserRole = "Admin"
	RoleMember  UserRole = "Membre"
	RoleVisitor UserRole = "Visiteur"
)

// User is a workspace member.
type User struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	PasswordHash string   `json:"passwordHash,omitempty"` // bcrypt, never embedded in tasks or sessions
	Avatar       string   `json:"avatar"`
	Role         string   `json:"role"` // Job title, e.g. "Designer"
	SystemRole   UserRole `json:"systemRole"`
	Sector       Sector   `json:"sector,omitempty"`
}

// Public returns a copy of the user without credentials.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// ActivityType classifies a task history entry.
type ActivityType string

const (
	ActivityComment      ActivityType = "comment"
	ActivityStatusChange ActivityType = "status_change"
	ActivityCreation     ActivityType = "creation"
	ActivityUpload       ActivityType = "upload"
	ActivityEdit         ActivityType = "edit"
)

// TaskActivity is an immutable audit record attached to a task.
type TaskActivity struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Type      ActivityType `json:"type"`
	Content   string       `json:"content"`
	Timestamp string       `json:"timestamp"`
}

// Task is a unit of work on the board.
type Task struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Assignee    User           `json:"assignee"` // Snapshot taken at assignment time
	Deadline    string         `json:"deadline"` // YYYY-MM-DD, naive local date
	Status      TaskStatus     `json:"status"`
	Sector      Sector         `json:"sector"`
	Description string         `json:"description"`
	History     []TaskActivity `json:"history"`

	// Strategy scoring, filled in by the AI
	ImpactScore    *float64 `json:"impactScore,omitempty"` // 0-100
	EffortScore    *float64 `json:"effortScore,omitempty"` // 1-10
	StrategicTheme string   `json:"strategicTheme,omitempty"`
	AIRationale    string   `json:"aiRationale,omitempty"`
}

// Impact returns the impact score, or 0 when the task has not been scored.
func (t Task) Impact() float64 {
	if t.ImpactScore == nil {
		return 0
	}
	return *t.ImpactScore
}

// Scored reports whether the task carries a non-zero impact score.
func (t Task) Scored() bool {
	return t.Impact() != 0
}

// LastActivity returns the most recent history entry.
func (t Task) LastActivity() (TaskActivity, bool) {
	if len(t.History) == 0 {
		return TaskActivity{}, false
	}
	return t.History[len(t.History)-1], true
}

// withActivity returns t with a appended to a fresh copy of its history.
func (t Task) withActivity(a TaskActivity) Task {
	t.History = append(slices.Clip(t.History), a)
	return t
}

// MeetingType says whether a meeting happens on video or in person.
type MeetingType string

const (
	MeetingVideo  MeetingType = "video"
	MeetingPerson MeetingType = "person"
)

// Meeting is a calendar entry.
type Meeting struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Date      string      `json:"date"` // YYYY-MM-DD
	Time      string      `json:"time"` // HH:MM
	Attendees []string    `json:"attendees"`
	Type      MeetingType `json:"type"`
}

// Start returns the meeting start as a naive local time. Unparseable values sort first.
func (m Meeting) Start() time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", m.Date+" "+m.Time, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ChatMessage is an append-only team chat entry.
type ChatMessage struct {
	ID        string `json:"id"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Sector    Sector `json:"sector,omitempty"`
}

// Trend is the direction indicator of a KPI.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// KPI is a labeled metric in an AI report.
type KPI struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Trend Trend  `json:"trend"`
}

// ChartPoint is one bar of the progress chart in an AI report.
type ChartPoint struct {
	Name     string  `json:"name"`
	Progress float64 `json:"progress"` // 0-100
	Assignee string  `json:"assignee"`
}

// AIAnalysisResult is a project-wide report produced by the AI.
type AIAnalysisResult struct {
	Summary   string       `json:"summary"`
	Risks     []string     `json:"risks"`
	NextSteps []string     `json:"nextSteps"`
	KPIs      []KPI        `json:"kpis"`
	ChartData []ChartPoint `json:"chartData"`
}

// AnalysisHistoryItem is a past report with its generation time.
type AnalysisHistoryItem struct {
	AIAnalysisResult
	Date string `json:"date"` // RFC 3339
}

// Score is the AI strategy classification of a single task.
type Score struct {
	ImpactScore    float64 `json:"impactScore"`
	EffortScore    float64 `json:"effortScore"`
	StrategicTheme string  `json:"strategicTheme"`
	AIRationale    string  `json:"aiRationale"`
}

// FallbackScore is used whenever the AI cannot score a task.
var FallbackScore = Score{
	ImpactScore:    50,
	EffortScore:    5,
	StrategicTheme: "Général",
	AIRationale:    "Évaluation non disponible",
}

// Apply merges the score into the task, leaving every other field untouched.
func (s Score) Apply(t Task) Task {
	impact, effort := s.ImpactScore, s.EffortScore
	t.ImpactScore = &impact
	t.EffortScore = &effort
	t.StrategicTheme = s.StrategicTheme
	t.AIRationale = s.AIRationale
	return t
}
