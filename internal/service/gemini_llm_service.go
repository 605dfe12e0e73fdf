package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"khoj/config"
	"khoj/internal/apperr"
	"khoj/internal/model"
)

// providerTimeout bounds every outbound Gemini call; past it the operation
// fails as provider-unavailable instead of hanging the request.
const providerTimeout = 30 * time.Second

// GeneratedQuestion is one question produced by the quiz generator. Empty
// Options marks a free-text question; Answer is then the reference answer
// rather than an option label.
type GeneratedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

type GeminiLLMService interface {
	GenerateReply(ctx context.Context, apiKey, topic string, history []model.Message, message string) (string, error)
	GenerateQuizQuestions(ctx context.Context, apiKey, topic string, count int) ([]GeneratedQuestion, error)
	GradeFreeTextAnswer(ctx context.Context, apiKey, question, correctAnswer, userAnswer string) (bool, error)
	JudgeRelevance(ctx context.Context, apiKey, topic, message string) (bool, error)
}

type geminiLLMService struct {
	client *genai.Client // default client from config key, may be nil
	cfg    *config.Config
}

func NewGeminiLLMService(cfg *config.Config) (GeminiLLMService, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. Gemini calls will require a per-request key header.")
		return &geminiLLMService{cfg: cfg, client: nil}, nil
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return &geminiLLMService{client: client, cfg: cfg}, nil
}

// modelFor resolves the generative model for a request. A non-empty apiKey
// overrides the configured credential with a transient client; cleanup must
// be called either way.
func (s *geminiLLMService) modelFor(ctx context.Context, apiKey string) (*genai.GenerativeModel, func(), error) {
	if apiKey != "" && apiKey != s.cfg.GeminiApiKey {
		client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to initialize per-request Gemini client: %w", err)
		}
		return client.GenerativeModel(s.cfg.GeminiModel), func() { client.Close() }, nil
	}
	if s.client == nil {
		return nil, func() {}, fmt.Errorf("gemini client not initialized and no per-request key supplied")
	}
	return s.client.GenerativeModel(s.cfg.GeminiModel), func() {}, nil
}

// generate runs a single text prompt and returns the concatenated text parts.
func (s *geminiLLMService) generate(ctx context.Context, apiKey, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	genModel, cleanup, err := s.modelFor(ctx, apiKey)
	defer cleanup()
	if err != nil {
		return "", apperr.Wrap(apperr.KindProviderUnavailable, "AI provider unavailable", err)
	}

	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		log.Error().Err(err).Msg("Gemini request failed")
		return "", apperr.Wrap(apperr.KindProviderUnavailable, "AI provider request failed", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	if sb.Len() == 0 {
		return "", apperr.New(apperr.KindProviderUnavailable, "AI provider returned no text")
	}
	return sb.String(), nil
}

func (s *geminiLLMService) GenerateReply(ctx context.Context, apiKey, topic string, history []model.Message, message string) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are a helpful tutor. The chat topic is '%s'. Answer ONLY within this topic.\n", topic))
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		// Cap the context window; older turns matter less than staying fast.
		start := 0
		if len(history) > 20 {
			start = len(history) - 20
		}
		for _, m := range history[start:] {
			sb.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
		}
	}
	sb.WriteString("User: ")
	sb.WriteString(message)

	reply, err := s.generate(ctx, apiKey, sb.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (s *geminiLLMService) GenerateQuizQuestions(ctx context.Context, apiKey, topic string, count int) ([]GeneratedQuestion, error) {
	prompt := fmt.Sprintf(`Generate EXACTLY %d quiz questions about "%s".
Most questions must be multiple choice with exactly 4 options; include one or two
open questions with an empty options array whose "answer" is a short reference answer.
For multiple choice, "answer" is the correct option letter ("A", "B", "C" or "D").
Return ONLY a JSON array in this exact format, no additional text:
[
  {"question": "Question text?", "options": ["Option A text", "Option B text", "Option C text", "Option D text"], "answer": "A"},
  {"question": "Open question text?", "options": [], "answer": "Short reference answer"}
]
Make the questions test understanding of "%s", not just recall. Count your
questions to ensure you have exactly %d.`, count, topic, topic, count)

	raw, err := s.generate(ctx, apiKey, prompt)
	if err != nil {
		return nil, err
	}

	cleaned := stripCodeFences(raw)
	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		log.Warn().Err(err).Str("raw", raw).Msg("Failed to parse generated quiz questions")
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, "AI provider returned unparseable questions", err)
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

func (s *geminiLLMService) GradeFreeTextAnswer(ctx context.Context, apiKey, question, correctAnswer, userAnswer string) (bool, error) {
	prompt := fmt.Sprintf(`You are an educational evaluator. Determine if the student's answer is correct for the given question.

Question: %s
Correct Answer: %s
Student's Answer: %s

Evaluate if the student's answer demonstrates understanding of the concept, even if the wording is different.
Respond with ONLY "YES" if correct or "NO" if incorrect. No explanations.`, question, correctAnswer, userAnswer)

	resp, err := s.generate(ctx, apiKey, prompt)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(resp)), "YES"), nil
}

func (s *geminiLLMService) JudgeRelevance(ctx context.Context, apiKey, topic, message string) (bool, error) {
	prompt := fmt.Sprintf(`A tutoring chat is strictly bound to the topic "%s".
Decide whether the following student message belongs in that chat. Greetings,
thanks and follow-up questions about the topic are on-topic; questions about
unrelated subjects are not.

Message: %s

Respond with ONLY "YES" if the message is on-topic or "NO" otherwise.`, topic, message)

	resp, err := s.generate(ctx, apiKey, prompt)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(resp)), "YES"), nil
}

// stripCodeFences removes a wrapping markdown code block, which Gemini adds
// even when told to return bare JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
