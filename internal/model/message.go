package model

import "time"

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is one turn in a chat. Append-only; user/bot turns are always
// written as a pair inside one transaction.
type Message struct {
	ID        string    `gorm:"primarykey" json:"id"`
	ChatID    string    `json:"chat_id" gorm:"not null;index"`
	Role      string    `json:"role" gorm:"not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
