package dto

// StartChatRequest creates (or finds) the chat bound to (user, topic).
type StartChatRequest struct {
	UserID int    `json:"user_id" binding:"required"`
	Topic  string `json:"topic" binding:"required"`
}

type SendMessageRequest struct {
	UserID  int    `json:"user_id" binding:"required"`
	ChatID  string `json:"chat_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type DeleteChatRequest struct {
	UserID int `json:"user_id" binding:"required"`
}

type StartQuizRequest struct {
	UserID   int    `json:"user_id" binding:"required"`
	ChatID   string `json:"chat_id" binding:"required"`
	Topic    string `json:"topic" binding:"required"`
	Duration int    `json:"duration" binding:"required"` // minutes
}

// SubmitQuizRequest maps question id -> submitted value (an option label
// for multiple choice, free text otherwise).
type SubmitQuizRequest struct {
	QuizID  uint            `json:"quiz_id" binding:"required"`
	Answers map[uint]string `json:"answers" binding:"required"`
}

type CreateScheduleRequest struct {
	UserID          int    `json:"user_id" binding:"required"`
	ChatID          string `json:"chat_id" binding:"required"`
	RecurrenceType  string `json:"recurrence_type" binding:"required,oneof=once daily weekly"`
	ScheduledTime   string `json:"scheduled_time,omitempty"` // ISO 8601, once only
	ReminderTime    string `json:"reminder_time,omitempty"`  // "HH:MM", recurring only
	ReminderTimeEnd string `json:"reminder_time_end,omitempty"`
	DaysOfWeek      string `json:"days_of_week,omitempty"` // "1,3,5", weekly only
}

type TriggerReminderRequest struct {
	ScheduleID uint `json:"schedule_id" binding:"required"`
}
