package model

import "time"

const (
	RecurrenceOnce   = "once"
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
)

// Schedule is a quiz reminder rule tied to a chat. Execution belongs to the
// external scheduler; this service validates the rule and tracks the next
// occurrence.
type Schedule struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserID        int       `json:"user_id" gorm:"not null;index"`
	ChatID        string    `json:"chat_id" gorm:"not null;index"`
	Topic         string    `json:"topic" gorm:"not null"`
	ScheduledTime time.Time `json:"scheduled_time" gorm:"not null"`
	Active        bool      `json:"active" gorm:"default:true"`
	CreatedAt     time.Time `json:"created_at"`

	RecurrenceType  string `json:"recurrence_type" gorm:"not null"`
	ReminderTime    string `json:"reminder_time"`                   // "HH:MM", recurring rules only
	ReminderTimeEnd string `json:"reminder_time_end,omitempty"`     // optional range end
	DaysOfWeek      string `json:"days_of_week,omitempty"`          // "1,3,5", 0=Sunday, weekly only
}
