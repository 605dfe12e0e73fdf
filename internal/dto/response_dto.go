package dto

import "time"

type ErrorResponse struct {
	Error         string `json:"error"`
	RequiredTopic string `json:"required_topic,omitempty"` // set on off-topic rejections
}

type StartChatResponse struct {
	ChatID   string `json:"chat_id"`
	Existing bool   `json:"existing"`
}

type ChatSummaryResponse struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageResponse struct {
	Reply string `json:"reply"`
}

type StartQuizResponse struct {
	QuizID         uint   `json:"quiz_id"`
	Topic          string `json:"topic"`
	TotalQuestions int    `json:"total_questions"`
	Existing       bool   `json:"existing"`
}

// QuizQuestionResponse is the display form of a question: the correct
// answer is never exposed on the fetch path.
type QuizQuestionResponse struct {
	ID       uint     `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	OrderNum int      `json:"order_num"`
}

type QuizSummaryResponse struct {
	ID              uint       `json:"id"`
	ChatID          string     `json:"chat_id"`
	Topic           string     `json:"topic"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	TotalQuestions  int        `json:"total_questions"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type QuizDetailResponse struct {
	Quiz      QuizSummaryResponse    `json:"quiz"`
	Questions []QuizQuestionResponse `json:"questions"`
}

// QuestionResultResponse is the per-question review entry, in original
// question order.
type QuestionResultResponse struct {
	QuestionID    uint     `json:"question_id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	UserAnswer    string   `json:"user_answer"`
	IsCorrect     bool     `json:"is_correct"`
}

type QuizResultResponse struct {
	Score          int                      `json:"score"`
	TotalQuestions int                      `json:"total_questions"`
	Percentage     float64                  `json:"percentage"`
	Results        []QuestionResultResponse `json:"results"`
}

type ScheduleResponse struct {
	ScheduleID     uint   `json:"schedule_id"`
	Topic          string `json:"topic"`
	RecurrenceType string `json:"recurrence_type"`
	ReminderTime   string `json:"reminder_time,omitempty"`
	NextReminder   string `json:"next_reminder"` // RFC3339
}

type ScheduleSummaryResponse struct {
	ID             uint      `json:"id"`
	ChatID         string    `json:"chat_id"`
	Topic          string    `json:"topic"`
	RecurrenceType string    `json:"recurrence_type"`
	ReminderTime   string    `json:"reminder_time,omitempty"`
	DaysOfWeek     string    `json:"days_of_week,omitempty"`
	ScheduledTime  time.Time `json:"scheduled_time"`
	Active         bool      `json:"active"`
}
