package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"khoj/internal/model"
)

// TopicGuardService decides whether an inbound message may enter a chat
// bound to a topic. Rejected messages are never persisted and never reach
// the reply engine.
type TopicGuardService interface {
	Check(ctx context.Context, apiKey string, chat *model.Chat, message string) (bool, error)
}

type topicGuardService struct {
	llm GeminiLLMService
}

func NewTopicGuardService(llm GeminiLLMService) TopicGuardService {
	return &topicGuardService{llm: llm}
}

func (s *topicGuardService) Check(ctx context.Context, apiKey string, chat *model.Chat, message string) (bool, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return false, nil
	}
	if isConversationalFiller(trimmed) {
		return true, nil
	}
	if lexicallyRelevant(chat.Topic, trimmed) {
		return true, nil
	}

	allowed, err := s.llm.JudgeRelevance(ctx, apiKey, chat.Topic, trimmed)
	if err != nil {
		// Provider down: fall back to the lexical heuristic rather than
		// blocking the chat entirely.
		log.Warn().Err(err).Str("chat_id", chat.ID).Msg("Relevance judgment unavailable, using lexical fallback")
		return heuristicRelevant(trimmed), nil
	}
	return allowed, nil
}

var fillerPhrases = []string{
	"hi", "hello", "hey", "thanks", "thank you", "ok", "okay", "yes", "no", "bye", "got it",
}

// isConversationalFiller allows short pleasantries through regardless of
// topic; a tutoring chat needs them.
func isConversationalFiller(message string) bool {
	m := strings.ToLower(strings.TrimRight(message, ".!?"))
	for _, p := range fillerPhrases {
		if m == p {
			return true
		}
	}
	return false
}

// lexicallyRelevant reports whether the message shares a content word with
// the topic.
func lexicallyRelevant(topic, message string) bool {
	msg := strings.ToLower(message)
	for _, word := range strings.Fields(strings.ToLower(topic)) {
		word = strings.Trim(word, ".,!?:;\"'")
		if len(word) < 3 {
			continue
		}
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}

// heuristicRelevant is the no-provider fallback: short follow-up questions
// are assumed to continue the current thread, long declarative detours are
// rejected.
func heuristicRelevant(message string) bool {
	return strings.HasSuffix(strings.TrimSpace(message), "?") && len(strings.Fields(message)) <= 12
}
