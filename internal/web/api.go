package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	workos "github.com/madhatter5501/WorkOS"
	"github.com/madhatter5501/WorkOS/agents"
	"github.com/madhatter5501/WorkOS/agents/provider"
	"github.com/madhatter5501/WorkOS/internal/auth"
	"github.com/madhatter5501/WorkOS/kanban"
	"github.com/madhatter5501/WorkOS/report"
	"github.com/madhatter5501/WorkOS/strategy"
)

// apiError maps domain errors onto HTTP status codes.
func (s *Server) apiError(w http.ResponseWriter, err error) {
	var (
		permErr   *kanban.PermissionError
		validErr  *kanban.ValidationError
		configErr *agents.ConfigurationError
		aiErr     *agents.AnalysisError
	)
	switch {
	case errors.As(err, &permErr):
		s.jsonError(w, err.Error(), http.StatusForbidden)
	case errors.As(err, &validErr):
		s.jsonError(w, validErr.Message, http.StatusBadRequest)
	case errors.Is(err, workos.ErrNotLoggedIn), errors.Is(err, auth.ErrInvalidCredentials):
		s.jsonError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, kanban.ErrTaskNotFound), errors.Is(err, kanban.ErrMeetingNotFound),
		errors.Is(err, auth.ErrUserNotFound), errors.Is(err, report.ErrNoReport):
		s.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, report.ErrBusy), errors.Is(err, strategy.ErrPending):
		s.jsonError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &configErr):
		s.jsonError(w, configErr.Message, http.StatusServiceUnavailable)
	case errors.Is(err, strategy.ErrUnavailable):
		s.jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &aiErr):
		s.jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		s.logger.Error("Request failed", "error", err)
		s.jsonError(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// actor returns the logged-in user, writing a 401 when there is none.
func (s *Server) actor(w http.ResponseWriter) (kanban.User, bool) {
	u, err := s.ws.CurrentUser()
	if err != nil {
		s.apiError(w, err)
		return kanban.User{}, false
	}
	return u, true
}

// decode reads a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// lookupUser resolves an assignee id, writing a 400 when it is unknown.
func (s *Server) lookupUser(w http.ResponseWriter, id string) (*kanban.User, bool) {
	u, ok := s.ws.Auth().UserByID(id)
	if !ok {
		s.jsonError(w, "Unknown assignee", http.StatusBadRequest)
		return nil, false
	}
	return &u, true
}

// --- Session ---

type sessionResponse struct {
	User        kanban.User        `json:"user"`
	Permissions kanban.Permissions `json:"permissions"`
}

func (s *Server) apiGetSession(w http.ResponseWriter, r *http.Request) {
	u, ok := s.actor(w)
	if !ok {
		return
	}
	s.jsonResponse(w, sessionResponse{User: u, Permissions: kanban.PermissionsFor(u)})
}

// LoginRequest is the request body for opening a session.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.ws.Auth().Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, sessionResponse{User: u, Permissions: kanban.PermissionsFor(u)})
}

func (s *Server) apiLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Auth().Logout(r.Context()); err != nil {
		s.apiError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiGetUsers(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.ws.Auth().Users())
}

// RegisterRequest is the request body for creating an account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) apiRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.ws.Auth().Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonCreated(w, sessionResponse{User: u, Permissions: kanban.PermissionsFor(u)})
}

func (s *Server) apiUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	var patch auth.UserPatch
	if !s.decode(w, r, &patch) {
		return
	}
	u, err := s.ws.Auth().UpdateUser(r.Context(), actor, r.PathValue("id"), patch)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, u)
}

// --- Board ---

type boardResponse struct {
	Sector      kanban.Sector      `json:"sector"`
	Columns     []kanban.Column    `json:"columns"`
	Permissions kanban.Permissions `json:"permissions"`
	Notice      *kanban.Notice     `json:"notice,omitempty"`
}

// apiGetBoard returns the board lanes filtered by the sector query parameter.
func (s *Server) apiGetBoard(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	sector := kanban.Sector(r.URL.Query().Get("sector"))
	if sector == "" {
		sector = kanban.SectorGeneral
	}
	resp := boardResponse{
		Sector:      sector,
		Columns:     s.ws.Board().Columns(sector),
		Permissions: s.ws.Board().Permissions(actor),
	}
	if n, ok := s.ws.Notices().Current(); ok {
		resp.Notice = &n
	}
	s.jsonResponse(w, resp)
}

func (s *Server) apiGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.ws.Board().Task(r.PathValue("id"))
	if !ok {
		s.apiError(w, kanban.ErrTaskNotFound)
		return
	}
	s.jsonResponse(w, task)
}

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Sector      kanban.Sector     `json:"sector"`
	Status      kanban.TaskStatus `json:"status"`
	Deadline    string            `json:"deadline"`
	AssigneeID  string            `json:"assigneeId"`
	View        kanban.Sector     `json:"view"`
}

func (s *Server) apiCreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	var req CreateTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	in := kanban.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Sector:      req.Sector,
		Status:      req.Status,
		Deadline:    req.Deadline,
		View:        req.View,
	}
	if req.AssigneeID != "" {
		if in.Assignee, ok = s.lookupUser(w, req.AssigneeID); !ok {
			return
		}
	}
	task, err := s.ws.Board().CreateTask(r.Context(), actor, in)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonCreated(w, task)
}

// EditTaskRequest is the request body for editing a task. Omitted fields are kept.
type EditTaskRequest struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Deadline    *string            `json:"deadline,omitempty"`
	Status      *kanban.TaskStatus `json:"status,omitempty"`
	AssigneeID  *string            `json:"assigneeId,omitempty"`
}

func (s *Server) apiEditTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	var req EditTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	patch := kanban.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Status:      req.Status,
	}
	if req.AssigneeID != nil {
		if patch.Assignee, ok = s.lookupUser(w, *req.AssigneeID); !ok {
			return
		}
	}
	task, err := s.ws.Board().EditTask(r.Context(), actor, r.PathValue("id"), patch)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, task)
}

// MoveTaskRequest is the request body for dragging a task to another column.
type MoveTaskRequest struct {
	Status kanban.TaskStatus `json:"status"`
}

func (s *Server) apiMoveTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	var req MoveTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.ws.Board().MoveTask(r.Context(), actor, r.PathValue("id"), req.Status)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, task)
}

// TextRequest is the request body for comments and chat messages.
type TextRequest struct {
	Text   string        `json:"text"`
	Sector kanban.Sector `json:"sector,omitempty"`
}

func (s *Server) apiAddComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	var req TextRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.ws.Board().AddComment(r.Context(), actor, r.PathValue("id"), req.Text)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, task)
}

func (s *Server) apiNotify(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	notice, err := s.ws.Board().Notify(actor, r.PathValue("id"))
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, notice)
}

func (s *Server) apiDeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	if err := s.ws.Board().DeleteTask(r.Context(), actor, r.PathValue("id")); err != nil {
		s.apiError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiGetNotice(w http.ResponseWriter, r *http.Request) {
	n, ok := s.ws.Notices().Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.jsonResponse(w, n)
}

func (s *Server) apiDismissNotice(w http.ResponseWriter, r *http.Request) {
	s.ws.Notices().Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

// --- Calendar and chat ---

type calendarResponse struct {
	Month        kanban.Month        `json:"month"`
	Label        string              `json:"label"`
	FirstWeekday time.Weekday        `json:"firstWeekday"`
	Days         []kanban.DayEntries `json:"days"`
}

// parseMonth reads ?month=YYYY-MM, defaulting to the current month.
func parseMonth(r *http.Request) (kanban.Month, error) {
	v := r.URL.Query().Get("month")
	if v == "" {
		return kanban.MonthOf(time.Now()), nil
	}
	t, err := time.Parse("2006-01", v)
	if err != nil {
		return kanban.Month{}, &kanban.ValidationError{Field: "month", Message: "Mois invalide (AAAA-MM)."}
	}
	return kanban.MonthOf(t), nil
}

func (s *Server) apiGetCalendar(w http.ResponseWriter, r *http.Request) {
	m, err := parseMonth(r)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, calendarResponse{
		Month:        m,
		Label:        m.Label(),
		FirstWeekday: m.FirstWeekday(),
		Days:         s.ws.Calendar().Grid(m),
	})
}

// CalendarMoveRequest drops a task or meeting on a day of the shown month.
type CalendarMoveRequest struct {
	Kind  string `json:"kind"` // "task" or "meeting"
	ID    string `json:"id"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Day   int    `json:"day"`
}

func (s *Server) apiCalendarMove(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w); !ok {
		return
	}
	var req CalendarMoveRequest
	if !s.decode(w, r, &req) {
		return
	}
	m := kanban.Month{Year: req.Year, Month: time.Month(req.Month)}
	if req.Month < 1 || req.Month > 12 || req.Day < 1 || req.Day > m.Days() {
		s.jsonError(w, "Invalid day", http.StatusBadRequest)
		return
	}

	var (
		moved any
		err   error
	)
	switch req.Kind {
	case "task":
		moved, err = s.ws.Calendar().MoveTask(r.Context(), m, req.ID, req.Day)
	case "meeting":
		moved, err = s.ws.Calendar().MoveMeeting(r.Context(), m, req.ID, req.Day)
	default:
		s.jsonError(w, "Kind must be task or meeting", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, moved)
}

func (s *Server) apiCreateMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	var in kanban.MeetingInput
	if !s.decode(w, r, &in) {
		return
	}
	m, err := s.ws.Calendar().CreateMeeting(r.Context(), actor, in)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonCreated(w, m)
}

func (s *Server) apiGetChat(w http.ResponseWriter, r *http.Request) {
	sector := kanban.Sector(r.URL.Query().Get("sector"))
	if sector == "" {
		sector = kanban.SectorGeneral
	}
	s.jsonResponse(w, s.ws.Chat().View(sector))
}

func (s *Server) apiSendChat(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	var req TextRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.ws.Chat().Send(r.Context(), actor, req.Text, req.Sector)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonCreated(w, msg)
}

func (s *Server) apiGetDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ws.Dashboard()
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, summary)
}

// --- AI ---

func (s *Server) apiGetReport(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.ws.Pulse().State())
}

func (s *Server) apiGenerateReport(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w); !ok {
		return
	}
	result, err := s.ws.Pulse().Generate(r.Context())
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, result)
}

// apiGetHistoryItem returns a past report as JSON, Markdown, or HTML depending
// on the format query parameter.
func (s *Server) apiGetHistoryItem(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.jsonError(w, "Invalid index", http.StatusBadRequest)
		return
	}
	item, err := s.ws.Pulse().Select(i)
	if err != nil {
		s.apiError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(report.Markdown(item)))
	case "html":
		html, err := report.RenderHTML(item)
		if err != nil {
			s.apiError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(html)
	default:
		s.jsonResponse(w, item)
	}
}

type strategyResponse struct {
	Filter     strategy.Filter `json:"filter"`
	Tasks      []kanban.Task   `json:"tasks"`
	Pending    []string        `json:"pending"`
	CanAnalyze bool            `json:"canAnalyze"`
}

func (s *Server) apiGetStrategy(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	filter := strategy.Filter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = strategy.FilterAll
	}
	s.jsonResponse(w, strategyResponse{
		Filter:     filter,
		Tasks:      s.ws.Planner().View(filter),
		Pending:    s.ws.Planner().Pending(),
		CanAnalyze: kanban.Can(actor.SystemRole, kanban.CapEdit),
	})
}

func (s *Server) apiEvaluateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	task, err := s.ws.Planner().EvaluateOne(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, task)
}

func (s *Server) apiEvaluateAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w)
	if !ok {
		return
	}
	n, err := s.ws.Planner().EvaluateAll(r.Context(), actor)
	if err != nil {
		s.apiError(w, err)
		return
	}
	s.jsonResponse(w, map[string]int{"evaluated": n})
}

// --- Room and status ---

type roomResponse struct {
	URL     string       `json:"url"`
	Live    bool         `json:"live"`
	Speaker *kanban.User `json:"speaker,omitempty"`
}

func (s *Server) roomState() roomResponse {
	room := s.ws.Room()
	resp := roomResponse{URL: room.URL(), Live: room.Live()}
	if u, ok := room.ActiveSpeaker(); ok {
		resp.Speaker = &u
	}
	return resp
}

func (s *Server) apiGetRoom(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.roomState())
}

func (s *Server) apiSetRoomLive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Live bool `json:"live"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.ws.Room().SetLive(req.Live)
	s.jsonResponse(w, s.roomState())
}

type statusResponse struct {
	Workspace string              `json:"workspace"`
	Store     string              `json:"store"`
	Bus       string              `json:"bus"`
	AI        bool                `json:"ai"`
	Model     string              `json:"model"`
	Usage     provider.TokenUsage `json:"usage"`
	Jobs      []workos.JobStatus  `json:"jobs"`
	Tasks     int                 `json:"tasks"`
}

func (s *Server) apiGetStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.ws.Config()
	s.jsonResponse(w, statusResponse{
		Workspace: s.ws.ID(),
		Store:     string(cfg.Store.Driver),
		Bus:       string(cfg.Bus.Driver),
		AI:        s.ws.Analyst().Available(),
		Model:     cfg.AI.Model,
		Usage:     s.ws.Analyst().Usage(),
		Jobs:      s.ws.Background().Statuses(),
		Tasks:     len(s.ws.Board().Tasks()),
	})
}
