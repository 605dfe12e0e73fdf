package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"khoj/internal/apperr"
	"khoj/internal/dto"
	"khoj/internal/model"
	"khoj/internal/repository"
)

// questionsPerThreeMinutes: one question per three minutes of quiz time,
// with a floor of one.
const minutesPerQuestion = 3

// QuizService drives the quiz lifecycle: active -> completed, one active
// quiz per chat, scoring on submission.
type QuizService interface {
	StartQuiz(ctx context.Context, apiKey string, req dto.StartQuizRequest) (*dto.StartQuizResponse, error)
	GetQuiz(quizID uint) (*dto.QuizDetailResponse, error)
	SubmitQuiz(ctx context.Context, apiKey string, req dto.SubmitQuizRequest) (*dto.QuizResultResponse, error)
}

type quizService struct {
	chatRepo repository.ChatRepository
	quizRepo repository.QuizRepository
	llm      GeminiLLMService
}

func NewQuizService(chatRepo repository.ChatRepository, quizRepo repository.QuizRepository, llm GeminiLLMService) QuizService {
	return &quizService{chatRepo: chatRepo, quizRepo: quizRepo, llm: llm}
}

func (s *quizService) StartQuiz(ctx context.Context, apiKey string, req dto.StartQuizRequest) (*dto.StartQuizResponse, error) {
	if req.Duration <= 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "duration must be positive")
	}

	chat, err := s.chatRepo.FindByID(req.ChatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "chat not found")
		}
		return nil, fmt.Errorf("error looking up chat: %w", err)
	}
	if chat.UserID != req.UserID {
		return nil, apperr.New(apperr.KindNotFound, "chat not found or unauthorized")
	}

	if active, err := s.quizRepo.FindActiveByChat(req.ChatID); err == nil {
		return &dto.StartQuizResponse{
			QuizID:         active.ID,
			Topic:          active.Topic,
			TotalQuestions: active.TotalQuestions,
			Existing:       true,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error looking up active quiz: %w", err)
	}

	count := req.Duration / minutesPerQuestion
	if count < 1 {
		count = 1
	}

	generated, err := s.llm.GenerateQuizQuestions(ctx, apiKey, req.Topic, count)
	if err != nil {
		log.Warn().Err(err).Str("topic", req.Topic).Msg("StartQuiz: generation failed, using fallback questions")
		generated = fallbackQuizQuestions(req.Topic, count)
	}
	if len(generated) < count {
		generated = append(generated, fallbackQuizQuestions(req.Topic, count-len(generated))...)
	}
	generated = generated[:count]

	quiz := &model.Quiz{
		UserID:          req.UserID,
		ChatID:          req.ChatID,
		Topic:           req.Topic,
		DurationMinutes: req.Duration,
		Status:          model.QuizStatusActive,
		TotalQuestions:  count,
	}
	for i, g := range generated {
		quiz.Questions = append(quiz.Questions, model.QuizQuestion{
			Question: g.Question,
			Answer:   g.Answer,
			Options:  datatypes.NewJSONSlice(g.Options),
			OrderNum: i + 1,
		})
	}

	if err := s.quizRepo.CreateWithQuestions(quiz); err != nil {
		// Concurrent start lost the partial-unique-index race; return the winner.
		if active, findErr := s.quizRepo.FindActiveByChat(req.ChatID); findErr == nil {
			return &dto.StartQuizResponse{
				QuizID:         active.ID,
				Topic:          active.Topic,
				TotalQuestions: active.TotalQuestions,
				Existing:       true,
			}, nil
		}
		log.Error().Err(err).Str("chat_id", req.ChatID).Msg("StartQuiz: failed to create quiz")
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	return &dto.StartQuizResponse{
		QuizID:         quiz.ID,
		Topic:          quiz.Topic,
		TotalQuestions: count,
		Existing:       false,
	}, nil
}

func (s *quizService) GetQuiz(quizID uint) (*dto.QuizDetailResponse, error) {
	quiz, err := s.quizRepo.FindByIDWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "quiz not found")
		}
		return nil, fmt.Errorf("error fetching quiz: %w", err)
	}

	var summary dto.QuizSummaryResponse
	if err := copier.Copy(&summary, quiz); err != nil {
		return nil, fmt.Errorf("error preparing quiz response: %w", err)
	}

	questions := make([]dto.QuizQuestionResponse, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = dto.QuizQuestionResponse{
			ID:       q.ID,
			Question: q.Question,
			Options:  []string(q.Options),
			OrderNum: q.OrderNum,
		}
	}

	return &dto.QuizDetailResponse{Quiz: summary, Questions: questions}, nil
}

// SubmitQuiz scores every question: exact label match for multiple choice,
// AI judgment for free text, unanswered counts as incorrect. The quiz
// transitions to completed exactly once.
func (s *quizService) SubmitQuiz(ctx context.Context, apiKey string, req dto.SubmitQuizRequest) (*dto.QuizResultResponse, error) {
	quiz, err := s.quizRepo.FindByIDWithQuestions(req.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "quiz not found")
		}
		return nil, fmt.Errorf("error fetching quiz: %w", err)
	}
	if quiz.Status == model.QuizStatusCompleted {
		return nil, apperr.New(apperr.KindAlreadySubmitted, "quiz already submitted")
	}

	score := 0
	results := make([]dto.QuestionResultResponse, len(quiz.Questions))
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		userAnswer := strings.TrimSpace(req.Answers[q.ID])

		var isCorrect bool
		switch {
		case userAnswer == "":
			isCorrect = false
		case q.IsMultipleChoice():
			isCorrect = strings.EqualFold(strings.TrimSpace(q.Answer), userAnswer)
		default:
			isCorrect = s.gradeFreeText(ctx, apiKey, q.Question, q.Answer, userAnswer)
		}
		if isCorrect {
			score++
		}

		q.UserAnswer = userAnswer
		q.IsCorrect = isCorrect
		results[i] = dto.QuestionResultResponse{
			QuestionID:    q.ID,
			Question:      q.Question,
			Options:       []string(q.Options),
			CorrectAnswer: q.Answer,
			UserAnswer:    userAnswer,
			IsCorrect:     isCorrect,
		}
	}

	now := time.Now()
	quiz.Status = model.QuizStatusCompleted
	quiz.Score = score
	quiz.CompletedAt = &now
	if err := s.quizRepo.Complete(quiz, quiz.Questions); err != nil {
		// A concurrent submission claimed the completed transition first;
		// its score stands.
		if errors.Is(err, repository.ErrQuizAlreadyCompleted) {
			return nil, apperr.New(apperr.KindAlreadySubmitted, "quiz already submitted")
		}
		log.Error().Err(err).Uint("quiz_id", quiz.ID).Msg("SubmitQuiz: failed to persist results")
		return nil, fmt.Errorf("failed to persist quiz results: %w", err)
	}

	total := len(quiz.Questions)
	percentage := 0.0
	if total > 0 {
		percentage = float64(score) / float64(total) * 100
	}

	return &dto.QuizResultResponse{
		Score:          score,
		TotalQuestions: total,
		Percentage:     percentage,
		Results:        results,
	}, nil
}

// gradeFreeText asks the AI for a boolean judgment and falls back to a
// case-insensitive containment check when the provider errors.
func (s *quizService) gradeFreeText(ctx context.Context, apiKey, question, correctAnswer, userAnswer string) bool {
	correct, err := s.llm.GradeFreeTextAnswer(ctx, apiKey, question, correctAnswer, userAnswer)
	if err != nil {
		log.Warn().Err(err).Msg("SubmitQuiz: AI grading unavailable, using containment fallback")
		lcCorrect := strings.ToLower(correctAnswer)
		lcUser := strings.ToLower(userAnswer)
		return strings.Contains(lcCorrect, lcUser) || strings.Contains(lcUser, lcCorrect)
	}
	return correct
}

// fallbackQuizQuestions keeps start_quiz honoring its question-count
// contract when the provider is down.
func fallbackQuizQuestions(topic string, count int) []GeneratedQuestion {
	templates := []GeneratedQuestion{
		{
			Question: fmt.Sprintf("What is the main topic of this quiz about %s?", topic),
			Options:  []string{topic, "A different topic", "An unrelated subject", "A random topic"},
			Answer:   "A",
		},
		{
			Question: fmt.Sprintf("Which of these is most relevant to %s?", topic),
			Options:  []string{fmt.Sprintf("%s concepts", topic), "Cooking recipes", "Sports news", "Weather forecasts"},
			Answer:   "A",
		},
		{
			Question: fmt.Sprintf("In your own words, describe one key idea from %s.", topic),
			Options:  nil,
			Answer:   topic,
		},
	}
	questions := make([]GeneratedQuestion, count)
	for i := 0; i < count; i++ {
		questions[i] = templates[i%len(templates)]
	}
	return questions
}
