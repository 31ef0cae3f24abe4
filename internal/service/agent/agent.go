// Package agent turns a user utterance into a persona-voiced reply. Skill
// queries (weather, time, tasks, timers) are answered locally; everything
// else goes to the language model. Collaborator failures degrade into a
// spoken apology rather than an error.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/kundanmehta01/murf-voice-agent/internal/model/chat"
	"github.com/kundanmehta01/murf-voice-agent/internal/model/persona"
	prodmodel "github.com/kundanmehta01/murf-voice-agent/internal/model/productivity"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/classify"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/productivity"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/session"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/weather"
)

// FallbackText is spoken when no collaborator can produce an answer.
const FallbackText = "I'm having trouble connecting right now. Please try again."

// WeatherProvider is the slice of the weather client the agent needs.
type WeatherProvider interface {
	Enabled() bool
	CurrentWeather(ctx context.Context, location string) (*weather.Current, error)
	ForecastWeather(ctx context.Context, location string, days int) (*weather.Forecast, error)
}

// LLM is the slice of the model service the agent needs.
type LLM interface {
	StreamingEnabled() bool
	GenerateResponse(ctx context.Context, sessionID string, p *persona.Persona, history []chat.Turn, userMessage string) (*schema.Message, error)
	StreamResponse(ctx context.Context, p *persona.Persona, history []chat.Turn, userMessage string) (*schema.StreamReader[*schema.Message], error)
}

// Agent coordinates classification, skills and the model for one reply.
// The weather and llm collaborators may be nil when unconfigured.
type Agent struct {
	classifier   *classify.Classifier
	sessions     *session.Service
	productivity *productivity.Service
	weather      WeatherProvider
	llm          LLM
}

func New(sessions *session.Service, prod *productivity.Service, weatherProvider WeatherProvider, llm LLM) *Agent {
	return &Agent{
		classifier:   classify.New(),
		sessions:     sessions,
		productivity: prod,
		weather:      weatherProvider,
		llm:          llm,
	}
}

// Reply is one finished agent response.
type Reply struct {
	Text      string `json:"response"`
	Kind      string `json:"kind"`
	PersonaID string `json:"persona_id"`
	VoiceID   string `json:"voice_id"`
}

// Respond produces a complete reply and records both sides of the exchange
// in the session history.
func (a *Agent) Respond(ctx context.Context, sessionID, message string) Reply {
	p := a.sessions.Persona(sessionID)
	result := a.classifier.Classify(message)

	var text string
	switch result.Kind {
	case classify.KindWeather:
		text = a.answerWeather(ctx, &p, result.Weather)
	case classify.KindTime:
		text = a.answerTime(&p, result.Time)
	case classify.KindTask:
		text = a.answerTask(sessionID, &p, result.Task, message)
	case classify.KindTimer:
		text = a.answerTimer(sessionID, &p, result.Timer, message)
	default:
		text = a.answerGeneral(ctx, sessionID, &p, message)
	}

	a.record(sessionID, message, text)

	return Reply{Text: text, Kind: result.Kind.String(), PersonaID: p.ID, VoiceID: p.VoiceID}
}

// StreamReply is a reply that may arrive as model chunks. Exactly one of
// Text and Stream is set. When Stream is set the caller drains it and then
// records the concatenated reply with RecordAssistantTurn.
type StreamReply struct {
	Kind      string
	PersonaID string
	VoiceID   string
	Text      string
	Stream    *schema.StreamReader[*schema.Message]
}

// RespondStream is Respond for streaming consumers. The user turn is
// recorded here; skill replies are recorded fully, model streams are
// recorded by the caller once drained.
func (a *Agent) RespondStream(ctx context.Context, sessionID, message string) StreamReply {
	p := a.sessions.Persona(sessionID)
	result := a.classifier.Classify(message)

	reply := StreamReply{Kind: result.Kind.String(), PersonaID: p.ID, VoiceID: p.VoiceID}

	if result.Kind == classify.KindGeneral && a.llm != nil && a.llm.StreamingEnabled() {
		history := a.sessions.History(sessionID)
		stream, err := a.llm.StreamResponse(ctx, &p, history, message)
		if err == nil {
			if err := a.sessions.AppendTurn(sessionID, chat.RoleUser, message); err != nil {
				log.Printf("[agent] record user turn: %v", err)
			}
			reply.Stream = stream
			return reply
		}
		log.Printf("[agent] stream failed, falling back to blocking generation: %v", err)
	}

	full := a.Respond(ctx, sessionID, message)
	reply.Text = full.Text
	reply.Kind = full.Kind
	return reply
}

// RecordAssistantTurn stores a reply produced outside Respond, such as a
// drained model stream.
func (a *Agent) RecordAssistantTurn(sessionID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := a.sessions.AppendTurn(sessionID, chat.RoleAssistant, text); err != nil {
		log.Printf("[agent] record assistant turn: %v", err)
	}
}

func (a *Agent) record(sessionID, userText, assistantText string) {
	if err := a.sessions.AppendTurn(sessionID, chat.RoleUser, userText); err != nil {
		log.Printf("[agent] record user turn: %v", err)
		return
	}
	if err := a.sessions.AppendTurn(sessionID, chat.RoleAssistant, assistantText); err != nil {
		log.Printf("[agent] record assistant turn: %v", err)
	}
}

// ---- weather ----

func (a *Agent) answerWeather(ctx context.Context, p *persona.Persona, q *classify.WeatherQuery) string {
	if q.NeedLocation {
		return StyleWeather(p.ID, "Which city should I check the weather for?")
	}
	if a.weather == nil || !a.weather.Enabled() {
		return StyleWeather(p.ID, "I can't reach the weather service right now. Please try again in a bit.")
	}

	var report string
	if q.Forecast {
		fc, err := a.weather.ForecastWeather(ctx, q.Location, 3)
		if err != nil {
			return a.weatherFailure(p, q.Location, err)
		}
		report = weather.FormatForecast(fc)
	} else {
		cur, err := a.weather.CurrentWeather(ctx, q.Location)
		if err != nil {
			return a.weatherFailure(p, q.Location, err)
		}
		report = weather.FormatCurrent(cur)
	}

	return StyleWeather(p.ID, report)
}

func (a *Agent) weatherFailure(p *persona.Persona, location string, err error) string {
	log.Printf("[agent] weather lookup for %q failed: %v", location, err)
	if isLocationNotFound(err) {
		return StyleWeather(p.ID, fmt.Sprintf("I couldn't find a place called %s. Could you try another city?", location))
	}
	return StyleWeather(p.ID, "I can't reach the weather service right now. Please try again in a bit.")
}

func isLocationNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), weather.ErrLocationNotFound.Error())
}

// ---- time ----

func (a *Agent) answerTime(p *persona.Persona, q *classify.TimeQuery) string {
	info := a.productivity.CurrentTime(q.Timezone, q.Format)
	text := fmt.Sprintf("It's %s on %s in %s.", info.Time, info.Date, info.Timezone)
	return StyleProductivity(p.ID, text)
}

// ---- tasks ----

func (a *Agent) answerTask(sessionID string, p *persona.Persona, q *classify.TaskQuery, message string) string {
	switch q.Action {
	case classify.TaskAdd:
		return a.addTask(sessionID, p, q)
	case classify.TaskList:
		return a.listTasks(sessionID, p)
	case classify.TaskComplete:
		return a.completeTask(sessionID, p, message)
	}
	return StyleProductivity(p.ID, "I can add tasks, list them or mark them done. What would you like?")
}

func (a *Agent) addTask(sessionID string, p *persona.Persona, q *classify.TaskQuery) string {
	if q.Title == "" {
		return StyleProductivity(p.ID, "What should I remind you about?")
	}

	task, err := a.productivity.AddTask(sessionID, q.Title, "", q.Priority, q.Due, nil)
	if err != nil {
		log.Printf("[agent] add task: %v", err)
		return StyleProductivity(p.ID, "I couldn't save that task. Please try again.")
	}

	text := fmt.Sprintf("I've added \"%s\" to your tasks with %s priority.", task.Title, task.Priority)
	if task.DueDate != nil {
		text += fmt.Sprintf(" It's due %s.", task.DueDate.Format("Monday, January 2 at 3:04 PM"))
	}
	return StyleProductivity(p.ID, text)
}

func (a *Agent) listTasks(sessionID string, p *persona.Persona) string {
	tasks := a.productivity.ListTasks(sessionID, productivity.TaskFilter{})
	if len(tasks) == 0 {
		return StyleProductivity(p.ID, "You have no pending tasks. Enjoy the calm!")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d pending %s.", len(tasks), pluralNoun(len(tasks), "task"))
	for i, t := range tasks {
		if i >= 5 {
			fmt.Fprintf(&b, " And %d more.", len(tasks)-i)
			break
		}
		fmt.Fprintf(&b, " %d: %s (%s priority)", i+1, t.Title, t.Priority)
		if t.DueDate != nil {
			fmt.Fprintf(&b, ", due %s", t.DueDate.Format("Monday at 3:04 PM"))
		}
		b.WriteString(".")
	}
	return StyleProductivity(p.ID, b.String())
}

func (a *Agent) completeTask(sessionID string, p *persona.Persona, message string) string {
	task, ok := a.findTaskInMessage(sessionID, message)
	if !ok {
		return StyleProductivity(p.ID, "I couldn't tell which task you finished. Which one was it?")
	}

	if _, err := a.productivity.CompleteTask(sessionID, task.ID); err != nil {
		log.Printf("[agent] complete task: %v", err)
		return StyleProductivity(p.ID, "I couldn't update that task. Please try again.")
	}
	return StyleProductivity(p.ID, fmt.Sprintf("Nice work! I've marked \"%s\" as complete.", task.Title))
}

// findTaskInMessage matches an open task whose title, or a distinctive word
// of it, appears in the utterance.
func (a *Agent) findTaskInMessage(sessionID, message string) (prodmodel.Task, bool) {
	lower := strings.ToLower(message)

	for _, t := range a.productivity.ListTasks(sessionID, productivity.TaskFilter{}) {
		title := strings.ToLower(t.Title)
		if strings.Contains(lower, title) {
			return t, true
		}
		for _, word := range strings.Fields(title) {
			if len(word) >= 4 && strings.Contains(lower, word) {
				return t, true
			}
		}
	}
	return prodmodel.Task{}, false
}

// ---- timers ----

func (a *Agent) answerTimer(sessionID string, p *persona.Persona, q *classify.TimerQuery, message string) string {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "status") || strings.Contains(lower, "left") || strings.Contains(lower, "remaining") {
		return a.timerStatus(sessionID, p)
	}

	duration := q.DurationMinutes
	if duration <= 0 {
		duration = 25
	}

	timer, err := a.productivity.StartTimer(sessionID, "", q.Kind, duration)
	if err != nil {
		log.Printf("[agent] start timer: %v", err)
		return StyleProductivity(p.ID, "I couldn't start that timer. Please try again.")
	}

	return StyleProductivity(p.ID, fmt.Sprintf("Started a %d minute %s timer. Focus well!", timer.DurationMinutes, timer.Kind))
}

func (a *Agent) timerStatus(sessionID string, p *persona.Persona) string {
	statuses := a.productivity.ActiveTimers(sessionID)
	if len(statuses) == 0 {
		return StyleProductivity(p.ID, "There's no timer running right now.")
	}

	st := statuses[0]
	if st.Finished {
		return StyleProductivity(p.ID, fmt.Sprintf("Your %s timer just finished. Time for a change of pace!", st.Kind))
	}
	return StyleProductivity(p.ID, fmt.Sprintf("Your %s timer has %s left.", st.Kind, st.TimeLeftFormatted))
}

// ---- general conversation ----

func (a *Agent) answerGeneral(ctx context.Context, sessionID string, p *persona.Persona, message string) string {
	if a.llm == nil {
		return FallbackText
	}

	history := a.sessions.History(sessionID)
	response, err := a.llm.GenerateResponse(ctx, sessionID, p, history, message)
	if err != nil {
		log.Printf("[agent] model generation failed: %v", err)
		return FallbackText
	}
	if strings.TrimSpace(response.Content) == "" {
		return FallbackText
	}
	return response.Content
}

func pluralNoun(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
