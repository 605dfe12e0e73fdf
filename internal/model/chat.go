package model

import (
	"strings"
	"time"
)

// Chat is a topic-bound conversation between one user and the tutor bot.
// At most one chat may exist per (user, normalized topic) pair.
type Chat struct {
	ID        string    `gorm:"primarykey" json:"id"`
	UserID    int       `json:"user_id" gorm:"not null;index;uniqueIndex:uniq_chats_user_topic"`
	Topic     string    `json:"topic" gorm:"not null"`
	TopicKey  string    `json:"-" gorm:"not null;uniqueIndex:uniq_chats_user_topic"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages  []Message  `json:"messages,omitempty" gorm:"foreignKey:ChatID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Quizzes   []Quiz     `json:"quizzes,omitempty" gorm:"foreignKey:ChatID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Schedules []Schedule `json:"schedules,omitempty" gorm:"foreignKey:ChatID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// NormalizeTopic produces the comparison key for a topic. The display form
// is stored separately and never altered.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
