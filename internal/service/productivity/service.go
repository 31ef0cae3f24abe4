// Package productivity implements the time, task, timer and time-tracking
// skills behind both the HTTP endpoints and the conversational agent.
package productivity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kundanmehta01/murf-voice-agent/internal/model/productivity"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrTitleRequired   = errors.New("task title is required")
	ErrInvalidDuration = errors.New("timer duration must be positive")
	ErrNoOpenSession   = errors.New("no time tracking session is running")
)

// timezoneAbbreviations maps spoken abbreviations to IANA zone names.
var timezoneAbbreviations = map[string]string{
	"EST": "America/New_York",
	"PST": "America/Los_Angeles",
	"CST": "America/Chicago",
	"MST": "America/Denver",
	"GMT": "Europe/London",
	"CET": "Europe/Paris",
	"JST": "Asia/Tokyo",
	"IST": "Asia/Kolkata",
}

// workspace holds one session's tasks, timers and tracking entries.
type workspace struct {
	tasks    []*productivity.Task
	timers   []*productivity.Timer
	sessions []*productivity.TimeSession
}

// Service owns the in-memory productivity state, scoped per session. Safe
// for concurrent use. Callers without a session identity share the ""
// workspace.
type Service struct {
	mu     sync.RWMutex
	spaces map[string]*workspace
	now    func() time.Time
}

func NewService() *Service {
	return &Service{spaces: make(map[string]*workspace), now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// space returns the session's workspace, creating it lazily. Caller must
// hold the write lock.
func (s *Service) space(sessionID string) *workspace {
	ws, ok := s.spaces[sessionID]
	if !ok {
		ws = &workspace{}
		s.spaces[sessionID] = ws
	}
	return ws
}

// ---- current time ----

// TimeInfo is the payload for a current-time query.
type TimeInfo struct {
	Time      string `json:"current_time"`
	Date      string `json:"current_date"`
	Day       string `json:"day_of_week"`
	Timezone  string `json:"timezone"`
	Format    string `json:"format"`
	UnixMilli int64  `json:"timestamp_ms"`
}

// CurrentTime reports the clock in the given timezone. tz accepts IANA names
// and the common abbreviations (EST, PST, GMT, ...); unknown zones fall back
// to UTC. format is one of default, 12hour, 24hour, iso.
func (s *Service) CurrentTime(tz, format string) TimeInfo {
	zone := strings.TrimSpace(tz)
	if zone == "" {
		zone = "UTC"
	}
	if iana, ok := timezoneAbbreviations[strings.ToUpper(zone)]; ok {
		zone = iana
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
		zone = "UTC"
	}

	now := s.now().In(loc)

	var clock string
	switch format {
	case "12hour":
		clock = now.Format("3:04:05 PM")
	case "24hour":
		clock = now.Format("15:04:05")
	case "iso":
		clock = now.Format(time.RFC3339)
	default:
		format = "default"
		clock = now.Format("3:04 PM")
	}

	return TimeInfo{
		Time:      clock,
		Date:      now.Format("Monday, January 2, 2006"),
		Day:       now.Format("Monday"),
		Timezone:  zone,
		Format:    format,
		UnixMilli: now.UnixMilli(),
	}
}

// ---- tasks ----

// AddTask stores a new task in the session's workspace. Priority defaults to
// medium when empty or unrecognized.
func (s *Service) AddTask(sessionID, title, description, priority string, due *time.Time, tags []string) (*productivity.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	switch priority {
	case productivity.PriorityUrgent, productivity.PriorityHigh, productivity.PriorityMedium, productivity.PriorityLow:
	default:
		priority = productivity.PriorityMedium
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := &productivity.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(description),
		DueDate:     due,
		Priority:    priority,
		CreatedAt:   s.now().UTC(),
		Tags:        append([]string(nil), tags...),
	}
	ws := s.space(sessionID)
	ws.tasks = append(ws.tasks, task)

	out := *task
	return &out, nil
}

// TaskFilter narrows ListTasks output.
type TaskFilter struct {
	IncludeCompleted bool
	Priority         string
	Tag              string
}

// ListTasks returns the session's tasks ordered by priority, then due date,
// then creation time. Completed tasks are omitted unless the filter asks for
// them.
func (s *Service) ListTasks(sessionID string, filter TaskFilter) []productivity.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws := s.spaces[sessionID]
	if ws == nil {
		return []productivity.Task{}
	}

	out := make([]productivity.Task, 0, len(ws.tasks))
	for _, t := range ws.tasks {
		if t.Completed && !filter.IncludeCompleted {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.Tag != "" && !containsTag(t.Tags, filter.Tag) {
			continue
		}
		out = append(out, *t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := productivity.PriorityRank(out[i].Priority), productivity.PriorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		di, dj := out[i].DueDate, out[j].DueDate
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// CompleteTask marks a task done. Completing an already finished task is a
// no-op that returns the task unchanged.
func (s *Service) CompleteTask(sessionID, id string) (*productivity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.spaces[sessionID]
	if ws == nil {
		return nil, ErrTaskNotFound
	}

	for _, t := range ws.tasks {
		if t.ID != id {
			continue
		}
		if !t.Completed {
			t.Completed = true
			done := s.now().UTC()
			t.CompletedAt = &done
		}
		out := *t
		return &out, nil
	}
	return nil, ErrTaskNotFound
}

// FindTaskByTitle matches the session's first incomplete task whose title
// contains the query, case insensitively.
func (s *Service) FindTaskByTitle(sessionID, query string) (*productivity.Task, bool) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ws := s.spaces[sessionID]
	if ws == nil {
		return nil, false
	}

	for _, t := range ws.tasks {
		if t.Completed {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), query) {
			out := *t
			return &out, true
		}
	}
	return nil, false
}

// ---- timers ----

// StartTimer begins a countdown. Starting a new timer deactivates any timer
// still running in the same session.
func (s *Service) StartTimer(sessionID, name, kind string, durationMinutes int) (*productivity.Timer, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	switch kind {
	case productivity.TimerPomodoro, productivity.TimerBreak, productivity.TimerWork, productivity.TimerCustom:
	default:
		kind = productivity.TimerCustom
	}
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("%s timer", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.space(sessionID)
	for _, t := range ws.timers {
		t.Active = false
	}

	timer := &productivity.Timer{
		ID:              uuid.NewString(),
		Name:            name,
		DurationMinutes: durationMinutes,
		StartTime:       s.now().UTC(),
		Active:          true,
		Kind:            kind,
	}
	ws.timers = append(ws.timers, timer)

	out := *timer
	return &out, nil
}

// ActiveTimers reports the live status of the session's running timers. A
// timer whose countdown has elapsed is deactivated as a side effect and still
// included, flagged finished, so callers can announce it once.
func (s *Service) ActiveTimers(sessionID string) []productivity.TimerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.spaces[sessionID]
	if ws == nil {
		return []productivity.TimerStatus{}
	}

	now := s.now().UTC()
	out := make([]productivity.TimerStatus, 0, len(ws.timers))
	for _, t := range ws.timers {
		if !t.Active {
			continue
		}

		total := time.Duration(t.DurationMinutes) * time.Minute
		elapsed := now.Sub(t.StartTime)
		if elapsed < 0 {
			elapsed = 0
		}
		remaining := total - elapsed
		finished := remaining <= 0
		if finished {
			remaining = 0
			t.Active = false
			end := now
			t.EndTime = &end
		}

		progress := 0.0
		if total > 0 {
			progress = float64(elapsed) / float64(total) * 100
			if progress > 100 {
				progress = 100
			}
		}

		out = append(out, productivity.TimerStatus{
			Timer:             *t,
			ElapsedSeconds:    int(elapsed.Seconds()),
			RemainingSeconds:  int(remaining.Seconds()),
			ProgressPercent:   progress,
			Finished:          finished,
			TimeLeftFormatted: FormatDuration(remaining),
		})
	}
	return out
}

// ---- time tracking ----

// StartTracking opens a work session for the named task. Any tracking entry
// still open in the same session is closed first.
func (s *Service) StartTracking(sessionID, taskName, notes string) (*productivity.TimeSession, error) {
	taskName = strings.TrimSpace(taskName)
	if taskName == "" {
		return nil, ErrTitleRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	ws := s.space(sessionID)
	closeOpenSession(ws, now)

	session := &productivity.TimeSession{
		ID:        uuid.NewString(),
		TaskName:  taskName,
		StartTime: now,
		Notes:     notes,
	}
	ws.sessions = append(ws.sessions, session)

	out := *session
	return &out, nil
}

// StopTracking closes the session's open tracking entry and reports its
// duration.
func (s *Service) StopTracking(sessionID string) (*productivity.TimeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.spaces[sessionID]
	if ws == nil {
		return nil, ErrNoOpenSession
	}

	session := closeOpenSession(ws, s.now().UTC())
	if session == nil {
		return nil, ErrNoOpenSession
	}

	out := *session
	return &out, nil
}

func closeOpenSession(ws *workspace, now time.Time) *productivity.TimeSession {
	for i := len(ws.sessions) - 1; i >= 0; i-- {
		sess := ws.sessions[i]
		if sess.EndTime != nil {
			continue
		}
		end := now
		sess.EndTime = &end
		sess.DurationMinutes = end.Sub(sess.StartTime).Minutes()
		return sess
	}
	return nil
}

// Sessions returns the session's recorded tracking entries, newest first.
func (s *Service) Sessions(sessionID string) []productivity.TimeSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws := s.spaces[sessionID]
	if ws == nil {
		return []productivity.TimeSession{}
	}

	out := make([]productivity.TimeSession, 0, len(ws.sessions))
	for i := len(ws.sessions) - 1; i >= 0; i-- {
		out = append(out, *ws.sessions[i])
	}
	return out
}

// FormatDuration renders a duration the way a person would say it, for
// example "1 hour 5 minutes" or "45 seconds".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		parts := []string{plural(hours, "hour")}
		if minutes > 0 {
			parts = append(parts, plural(minutes, "minute"))
		}
		return strings.Join(parts, " ")
	case minutes > 0:
		parts := []string{plural(minutes, "minute")}
		if seconds > 0 {
			parts = append(parts, plural(seconds, "second"))
		}
		return strings.Join(parts, " ")
	default:
		return plural(seconds, "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
