package productivity

import "time"

// Task priorities, ordered from most to least pressing.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// PriorityRank returns the sort rank for a priority, unknown values sorting
// with medium.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// Task is a reminder owned by a session. Tasks are never deleted, only
// completed.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Tags        []string   `json:"tags"`
}

// Timer kinds.
const (
	TimerPomodoro = "pomodoro"
	TimerBreak    = "break"
	TimerWork     = "work"
	TimerCustom   = "custom"
)

// Timer is a countdown (pomodoro, break, work session) owned by a session.
// Expiry is computed against the clock at query time; there is no background
// expiry task.
type Timer struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	DurationMinutes int        `json:"duration_minutes"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Active          bool       `json:"is_active"`
	Kind            string     `json:"timer_type"`
}

// TimerStatus is a point-in-time snapshot of a timer's progress.
type TimerStatus struct {
	Timer
	ElapsedSeconds    int     `json:"elapsed_seconds"`
	RemainingSeconds  int     `json:"remaining_seconds"`
	ProgressPercent   float64 `json:"progress_percent"`
	Finished          bool    `json:"is_finished"`
	TimeLeftFormatted string  `json:"time_left_formatted"`
}

// TimeSession is a time-tracking entry for a named piece of work.
type TimeSession struct {
	ID              string     `json:"id"`
	TaskName        string     `json:"task_name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes float64    `json:"duration_minutes,omitempty"`
	Notes           string     `json:"notes"`
}
