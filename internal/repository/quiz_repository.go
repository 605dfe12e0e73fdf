package repository

import (
	"errors"

	"khoj/internal/model"

	"gorm.io/gorm"
)

// ErrQuizAlreadyCompleted reports that the quiz's terminal transition was
// already claimed by another submission.
var ErrQuizAlreadyCompleted = errors.New("quiz already completed")

type QuizRepository interface {
	// CreateWithQuestions persists the quiz and its questions in one
	// transaction. The partial unique index on (chat_id, status='active')
	// rejects a second active quiz under concurrency.
	CreateWithQuestions(quiz *model.Quiz) error
	FindActiveByChat(chatID string) (*model.Quiz, error)
	FindByIDWithQuestions(id uint) (*model.Quiz, error)
	// Complete writes the scored submission: per-question user answers and
	// correctness plus the quiz's terminal state, atomically. The status
	// flip is conditional on the quiz still being active, so a concurrent
	// submission that lost the race gets ErrQuizAlreadyCompleted instead
	// of overwriting the stored score.
	Complete(quiz *model.Quiz, questions []model.QuizQuestion) error
}

type quizRepository struct {
	db *gorm.DB
}

func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) CreateWithQuestions(quiz *model.Quiz) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// GORM creates the associated questions along with the quiz.
		return tx.Create(quiz).Error
	})
}

func (r *quizRepository) FindActiveByChat(chatID string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.db.Where("chat_id = ? AND status = ?", chatID, model.QuizStatusActive).
		Order("created_at DESC").First(&quiz).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *quizRepository) FindByIDWithQuestions(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("quiz_questions.order_num ASC")
	}).First(&quiz, id).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *quizRepository) Complete(quiz *model.Quiz, questions []model.QuizQuestion) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Claim the terminal transition first; it only succeeds once.
		res := tx.Model(&model.Quiz{}).
			Where("id = ? AND status = ?", quiz.ID, model.QuizStatusActive).
			Updates(map[string]interface{}{
				"status":       quiz.Status,
				"score":        quiz.Score,
				"completed_at": quiz.CompletedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrQuizAlreadyCompleted
		}
		for i := range questions {
			err := tx.Model(&model.QuizQuestion{}).
				Where("id = ?", questions[i].ID).
				Updates(map[string]interface{}{
					"user_answer": questions[i].UserAnswer,
					"is_correct":  questions[i].IsCorrect,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
