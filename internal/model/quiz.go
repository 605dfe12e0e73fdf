package model

import "time"

const (
	QuizStatusActive    = "active"
	QuizStatusCompleted = "completed"
)

// Quiz is a finite, scored question set derived from a chat's topic.
// The partial unique index on ChatID enforces one active quiz per chat.
type Quiz struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	UserID          int        `json:"user_id" gorm:"not null;index"`
	ChatID          string     `json:"chat_id" gorm:"not null;index;uniqueIndex:uniq_active_quiz_per_chat,where:status = 'active'"`
	Topic           string     `json:"topic" gorm:"not null"`
	DurationMinutes int        `json:"duration_minutes" gorm:"not null"`
	Status          string     `json:"status" gorm:"not null;default:'active'"`
	Score           int        `json:"score" gorm:"default:0"`
	TotalQuestions  int        `json:"total_questions" gorm:"not null"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	Questions []QuizQuestion `json:"questions,omitempty" gorm:"foreignKey:QuizID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
