package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/kundanmehta01/murf-voice-agent/internal/model/chat"
	"github.com/kundanmehta01/murf-voice-agent/internal/model/persona"
)

func TestBuildSystemPromptKeepsPersonaVoice(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	pirate := store.Get("pirate")

	got := BuildSystemPrompt(&pirate)
	if !strings.HasPrefix(got, pirate.SystemPrompt) {
		t.Fatal("persona prompt must lead the system prompt")
	}
	if !strings.Contains(got, "spoken aloud") {
		t.Fatal("missing spoken delivery constraint")
	}
}

func TestBuildHistoryMessagesMapsRoles(t *testing.T) {
	turns := []chat.Turn{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "ahoy"},
		{Role: "system", Content: "ignored"},
	}

	history := buildHistoryMessages(turns)
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != schema.User || history[0].Content != "hello" {
		t.Fatalf("unexpected first message %+v", history[0])
	}
	if history[1].Role != schema.Assistant || history[1].Content != "ahoy" {
		t.Fatalf("unexpected second message %+v", history[1])
	}
}

func TestBuildHistoryMessagesAppliesLimit(t *testing.T) {
	var turns []chat.Turn
	for i := 0; i < historyLimit+10; i++ {
		turns = append(turns, chat.Turn{Role: chat.RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	history := buildHistoryMessages(turns)
	if len(history) != historyLimit {
		t.Fatalf("expected %d messages, got %d", historyLimit, len(history))
	}
	if history[0].Content != "msg-10" {
		t.Fatalf("expected oldest kept message msg-10, got %q", history[0].Content)
	}
}

func TestBuildHistoryMessagesEmpty(t *testing.T) {
	if got := buildHistoryMessages(nil); got != nil {
		t.Fatalf("expected nil history, got %v", got)
	}
}
