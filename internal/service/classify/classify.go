// Package classify decides what a user utterance is asking for before the
// response pipeline runs. Detection is ordered pattern matching: weather
// first, then time, tasks and timers, falling through to general
// conversation. The order is a contract; a single utterance never lands in
// two categories.
package classify

import (
	"regexp"
	"strings"
	"time"
)

// Kind labels the classification outcome.
type Kind int

const (
	KindGeneral Kind = iota
	KindWeather
	KindTime
	KindTask
	KindTimer
)

// String returns the rule name for the kind.
func (k Kind) String() string {
	switch k {
	case KindWeather:
		return "weather"
	case KindTime:
		return "time"
	case KindTask:
		return "task"
	case KindTimer:
		return "timer"
	default:
		return "general"
	}
}

// WeatherQuery carries the parameters of a weather request.
type WeatherQuery struct {
	Location     string
	Forecast     bool
	TimeFrame    string
	Confidence   float64
	NeedLocation bool
}

// TimeQuery carries the parameters of a current-time request.
type TimeQuery struct {
	Timezone string
	Format   string // default, 12hour, 24hour, iso
}

// Task actions.
const (
	TaskAdd      = "add"
	TaskList     = "list"
	TaskComplete = "complete"
)

// TaskQuery carries the parameters of a task-management request.
type TaskQuery struct {
	Action   string
	Title    string
	Priority string
	Due      *time.Time
}

// TimerQuery carries the parameters of a timer request.
type TimerQuery struct {
	Kind            string
	DurationMinutes int
}

// Result is the outcome of classifying one utterance. Exactly one of the
// pointer fields is set when Kind is not KindGeneral.
type Result struct {
	Kind    Kind
	Weather *WeatherQuery
	Time    *TimeQuery
	Task    *TaskQuery
	Timer   *TimerQuery
}

type rule struct {
	name   string
	detect func(c *Classifier, utterance string) *Result
}

// Classifier evaluates the rule list in a fixed sequence, first match wins.
type Classifier struct {
	rules []rule
	now   func() time.Time
}

// New builds a classifier with the standard rule order.
func New() *Classifier {
	c := &Classifier{now: time.Now}
	c.rules = []rule{
		{name: "weather", detect: (*Classifier).detectWeather},
		{name: "time", detect: (*Classifier).detectTime},
		{name: "task", detect: (*Classifier).detectTask},
		{name: "timer", detect: (*Classifier).detectTimer},
	}
	return c
}

// SetClock overrides the wall clock used for due-date parsing, for tests.
func (c *Classifier) SetClock(now func() time.Time) { c.now = now }

// Order returns the rule names in evaluation order.
func (c *Classifier) Order() []string {
	names := make([]string, 0, len(c.rules)+1)
	for _, r := range c.rules {
		names = append(names, r.name)
	}
	return append(names, "general")
}

// Classify runs the rules against an utterance.
func (c *Classifier) Classify(utterance string) Result {
	for _, r := range c.rules {
		if res := r.detect(c, utterance); res != nil {
			return *res
		}
	}
	return Result{Kind: KindGeneral}
}

// ---- weather ----

var primaryWeatherKeywords = []string{
	"weather", "temperature", "temp", "forecast", "celsius", "fahrenheit",
	"degrees", "sunny", "rainy", "cloudy", "humid", "humidity", "windy",
	"stormy", "snow", "snowing", "rain", "raining", "clear", "overcast",
	"foggy", "misty", "chilly", "freezing", "boiling", "mild",
}

var secondaryWeatherKeywords = []string{
	"hot", "cold", "warm", "cool", "dry", "wet", "tomorrow", "today",
	"weekend", "tonight", "morning", "afternoon", "evening",
}

var weatherQuestionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`what'?s\s+(?:the\s+)?weather`),
	regexp.MustCompile(`how'?s\s+(?:the\s+)?weather`),
	regexp.MustCompile(`is\s+it\s+(?:hot|cold|warm|cool|sunny|rainy|cloudy|windy)`),
	regexp.MustCompile(`will\s+it\s+(?:rain|snow|be\s+(?:hot|cold|warm|cool|sunny|cloudy))`),
	regexp.MustCompile(`should\s+i\s+(?:bring|wear|take).*(?:jacket|umbrella|sunscreen)`),
	regexp.MustCompile(`do\s+i\s+need.*(?:jacket|umbrella|sunscreen|coat)`),
	regexp.MustCompile(`temperature.*(?:in|at|for)`),
	regexp.MustCompile(`forecast.*(?:in|at|for)`),
	regexp.MustCompile(`how\s+(?:hot|cold|warm|cool)\s+is\s+it.*(?:in|at)`),
}

var forecastKeywords = []string{
	"forecast", "tomorrow", "next week", "this week", "weekend",
	"later", "tonight", "will it", "going to", "expect",
}

const weatherConfidenceThreshold = 0.3

func (c *Classifier) detectWeather(utterance string) *Result {
	text := strings.ToLower(strings.TrimSpace(utterance))

	patternMatches := 0
	for _, p := range weatherQuestionPatterns {
		if p.MatchString(text) {
			patternMatches++
		}
	}

	score := patternMatches * 3
	for _, kw := range primaryWeatherKeywords {
		if strings.Contains(text, kw) {
			score += 2
		}
	}
	for _, kw := range secondaryWeatherKeywords {
		if strings.Contains(text, kw) {
			score++
		}
	}

	confidence := float64(score) / 6.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < weatherConfidenceThreshold {
		return nil
	}

	q := &WeatherQuery{Confidence: confidence}
	for _, kw := range forecastKeywords {
		if strings.Contains(text, kw) {
			q.Forecast = true
			q.TimeFrame = kw
			break
		}
	}

	q.Location = extractLocation(text)
	q.NeedLocation = q.Location == ""

	return &Result{Kind: KindWeather, Weather: q}
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`weather\s+of\s+([a-zA-Z\s,.-]+?)(?:\?|\.|$)`),
	regexp.MustCompile(`(?:weather|temperature|temp|forecast|hot|cold|warm|cool).*?(?:in|at|for|near|around)\s+([a-zA-Z\s,.-]+?)(?:\?|\.|$)`),
	regexp.MustCompile(`^([a-zA-Z\s,.-]+?)\s+(?:weather|temperature|temp|forecast)`),
	regexp.MustCompile(`(?:what'?s|how'?s)\s+(?:the\s+)?(?:weather|temperature|temp).*?(?:in|at|for|near|around)\s+([a-zA-Z\s,.-]+?)(?:\?|\.|$)`),
	regexp.MustCompile(`how\s+(?:hot|cold|warm|cool)\s+is\s+it.*?(?:in|at|for|near|around)\s+([a-zA-Z\s,.-]+?)(?:\?|\.|$)`),
	regexp.MustCompile(`(?:in|at|for|near|around)\s+([a-zA-Z\s,.-]+?)(?:\?|\.|$)`),
}

var locationStopWords = regexp.MustCompile(`(?i)\b(the|like|today|tomorrow|now|currently|weather|temperature|temp|forecast|it|is)\b`)
var spaceRun = regexp.MustCompile(`\s+`)

// extractLocation pulls a place name out of an already-lowercased weather
// query. Returns "" when nothing usable is found.
func extractLocation(text string) string {
	for _, p := range locationPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		location := m[1]
		location = locationStopWords.ReplaceAllString(location, "")
		location = spaceRun.ReplaceAllString(location, " ")
		location = strings.Trim(location, " ,.?-")

		if len(location) > 1 && !isAllDigits(location) {
			return titleCase(location)
		}
	}
	return ""
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ---- time ----

var timeKeywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`what.*time`),
	regexp.MustCompile(`current time`),
	regexp.MustCompile(`time.*now`),
	regexp.MustCompile(`what.*date`),
	regexp.MustCompile(`current date`),
	regexp.MustCompile(`today.*date`),
	regexp.MustCompile(`day.*today`),
	regexp.MustCompile(`what day`),
	regexp.MustCompile(`timezone`),
	regexp.MustCompile(`time zone`),
	regexp.MustCompile(`\bclock\b`),
}

var timezonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)time in ([a-zA-Z/_]+)`),
	regexp.MustCompile(`time.*\b([A-Z]{2,4})\b`),
	regexp.MustCompile(`(?i)timezone.*?([a-zA-Z/_]+)$`),
	regexp.MustCompile(`\b([A-Z]{2,4})\b time`),
}

func (c *Classifier) detectTime(utterance string) *Result {
	text := strings.ToLower(strings.TrimSpace(utterance))

	matched := false
	for _, p := range timeKeywordPatterns {
		if p.MatchString(text) {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	q := &TimeQuery{Timezone: "UTC", Format: "default"}
	for _, p := range timezonePatterns {
		if m := p.FindStringSubmatch(utterance); m != nil {
			q.Timezone = m[1]
			break
		}
	}

	switch {
	case strings.Contains(text, "12 hour") || strings.Contains(text, "12-hour"):
		q.Format = "12hour"
	case strings.Contains(text, "24 hour") || strings.Contains(text, "24-hour"):
		q.Format = "24hour"
	case strings.Contains(text, "iso"):
		q.Format = "iso"
	}

	return &Result{Kind: KindTime, Time: q}
}

// ---- tasks ----

var addTaskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`add.*task`),
	regexp.MustCompile(`create.*task`),
	regexp.MustCompile(`new task`),
	regexp.MustCompile(`remind me`),
	regexp.MustCompile(`set.*reminder`),
	regexp.MustCompile(`schedule.*task`),
	regexp.MustCompile(`todo.*add`),
	regexp.MustCompile(`need to do`),
	regexp.MustCompile(`add to.*list`),
}

var listTaskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`list.*tasks`),
	regexp.MustCompile(`show.*tasks`),
	regexp.MustCompile(`my tasks`),
	regexp.MustCompile(`todo.*list`),
	regexp.MustCompile(`what.*tasks`),
	regexp.MustCompile(`pending.*tasks`),
	regexp.MustCompile(`task.*status`),
	regexp.MustCompile(`what do i need`),
	regexp.MustCompile(`schedule.*today`),
}

var completeTaskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`complete.*task`),
	regexp.MustCompile(`finish.*task`),
	regexp.MustCompile(`done.*task`),
	regexp.MustCompile(`mark.*complete`),
	regexp.MustCompile(`task.*done`),
	regexp.MustCompile(`finished.*task`),
}

var taskTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)remind me to (.+?)(?:\s+by\s|\s+before\s|\s+at\s|\s+on\s|\.|$)`),
	regexp.MustCompile(`(?i)add.*task.*["'](.+)["']`),
	regexp.MustCompile(`(?i)need to (.+?)(?:\s+by\s|\s+before\s|\s+at\s|\s+on\s|\.|$)`),
	regexp.MustCompile(`(?i)task.*: (.+?)(?:\s+by\s|\s+before\s|\s+at\s|\s+on\s|\.|$)`),
}

var taskDuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bby (.+?)(?:\.|$)`),
	regexp.MustCompile(`(?i)\bbefore (.+?)(?:\.|$)`),
	regexp.MustCompile(`(?i)\bat (.+?)(?:\.|$)`),
	regexp.MustCompile(`(?i)\bon (.+?)(?:\.|$)`),
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func (c *Classifier) detectTask(utterance string) *Result {
	text := strings.ToLower(strings.TrimSpace(utterance))

	q := &TaskQuery{}
	switch {
	case matchAny(addTaskPatterns, text):
		q.Action = TaskAdd
	case matchAny(listTaskPatterns, text):
		q.Action = TaskList
	case matchAny(completeTaskPatterns, text):
		q.Action = TaskComplete
	default:
		return nil
	}

	if q.Action == TaskAdd {
		for _, p := range taskTitlePatterns {
			if m := p.FindStringSubmatch(utterance); m != nil {
				q.Title = strings.TrimSpace(m[1])
				break
			}
		}
		q.Priority = extractPriority(text)
		for _, p := range taskDuePatterns {
			if m := p.FindStringSubmatch(utterance); m != nil {
				if due, ok := ParseNaturalTime(c.now().UTC(), m[1]); ok {
					q.Due = &due
				}
				break
			}
		}
	}

	return &Result{Kind: KindTask, Task: q}
}

func extractPriority(text string) string {
	switch {
	case containsAny(text, "urgent", "asap", "immediately"):
		return "urgent"
	case containsAny(text, "important", "high", "priority"):
		return "high"
	case containsAny(text, "low", "when i can", "sometime"):
		return "low"
	default:
		return "medium"
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// ---- timers ----

var timerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`start.*timer`),
	regexp.MustCompile(`pomodoro`),
	regexp.MustCompile(`set.*timer`),
	regexp.MustCompile(`timer.*minutes`),
	regexp.MustCompile(`work.*session`),
	regexp.MustCompile(`focus.*time`),
	regexp.MustCompile(`break.*timer`),
	regexp.MustCompile(`timer.*status`),
	regexp.MustCompile(`time.*tracking`),
	regexp.MustCompile(`track.*time`),
}

var timerDurationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*minutes?`),
	regexp.MustCompile(`(\d+)\s*mins?`),
	regexp.MustCompile(`(\d+)\s*hours?`),
	regexp.MustCompile(`for (\d+)`),
}

func (c *Classifier) detectTimer(utterance string) *Result {
	text := strings.ToLower(strings.TrimSpace(utterance))

	if !matchAny(timerPatterns, text) {
		return nil
	}

	q := &TimerQuery{}
	for _, p := range timerDurationPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			n := atoiSafe(m[1])
			if strings.Contains(p.String(), "hour") {
				n *= 60
			}
			q.DurationMinutes = n
			break
		}
	}

	switch {
	case strings.Contains(text, "pomodoro"):
		q.Kind = "pomodoro"
		if q.DurationMinutes == 0 {
			q.DurationMinutes = 25
		}
	case strings.Contains(text, "break"):
		q.Kind = "break"
		if q.DurationMinutes == 0 {
			q.DurationMinutes = 5
		}
	case strings.Contains(text, "work") || strings.Contains(text, "focus"):
		q.Kind = "work"
	default:
		q.Kind = "custom"
	}

	return &Result{Kind: KindTimer, Timer: q}
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
