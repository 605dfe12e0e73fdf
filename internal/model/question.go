package model

import "gorm.io/datatypes"

// QuizQuestion is immutable once generated, except for the submission
// fields (UserAnswer, IsCorrect) written when the quiz is scored.
// Empty Options means a free-text question graded by the AI.
type QuizQuestion struct {
	ID         uint                        `gorm:"primarykey" json:"id"`
	QuizID     uint                        `json:"quiz_id" gorm:"not null;index"`
	Question   string                      `json:"question" gorm:"type:text;not null"`
	Answer     string                      `json:"-" gorm:"type:text;not null"`
	Options    datatypes.JSONSlice[string] `json:"options"`
	UserAnswer string                      `json:"user_answer,omitempty"`
	IsCorrect  bool                        `json:"is_correct,omitempty"`
	OrderNum   int                         `json:"order_num" gorm:"not null"`
}

// IsMultipleChoice reports whether the question is scored by label match.
func (q *QuizQuestion) IsMultipleChoice() bool {
	return len(q.Options) > 0
}
