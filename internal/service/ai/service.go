// Package ai drives the language model behind persona conversations.
package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/kundanmehta01/murf-voice-agent/internal/config"
	"github.com/kundanmehta01/murf-voice-agent/internal/model/chat"
	"github.com/kundanmehta01/murf-voice-agent/internal/model/persona"
)

// historyLimit bounds how much of the stored conversation is replayed to the
// model per request.
const historyLimit = 20

// Service encapsulates the persona chat chain.
type Service struct {
	chatModel model.ChatModel
	cfg       config.LLMConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the chat chain: system prompt, replayed history, then
// the user's query.
func NewService(ctx context.Context, cfg config.LLMConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled indicates whether streamed generation is configured.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.Stream
}

// GenerateResponse produces one complete reply in the persona's voice.
func (s *Service) GenerateResponse(ctx context.Context, sessionID string, p *persona.Persona, history []chat.Turn, userMessage string) (*schema.Message, error) {
	input := s.buildChainInput(p, history, userMessage)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run chat chain: %w", err)
	}

	log.Printf("[ai] generated response for session=%s, persona=%s, length=%d", sessionID, p.ID, len(response.Content))
	return response, nil
}

// StreamResponse streams reply chunks via the chat chain. The caller owns
// the returned reader and must drain or close it.
func (s *Service) StreamResponse(ctx context.Context, p *persona.Persona, history []chat.Turn, userMessage string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	input := s.buildChainInput(p, history, userMessage)

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat chain output: %w", err)
	}

	return stream, nil
}

// GetChatModel exposes the underlying model.
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

func (s *Service) buildChainInput(p *persona.Persona, history []chat.Turn, userMessage string) map[string]any {
	return map[string]any{
		"system":  BuildSystemPrompt(p),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}
}

// BuildSystemPrompt combines the persona's character prompt with the spoken
// delivery constraints shared by every persona.
func BuildSystemPrompt(p *persona.Persona) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)
	b.WriteString("\n\nYour replies are spoken aloud by a voice assistant.")
	b.WriteString(" Keep responses conversational and under a few sentences unless asked for detail.")
	b.WriteString(" Never use markdown, bullet lists or emoji in your reply text.")
	return b.String()
}

func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return history
}
