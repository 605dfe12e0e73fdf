package repository

import (
	"time"

	"khoj/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	FindByChatID(chatID string) ([]model.Message, error)
	// CreateExchange persists a user/bot message pair atomically and
	// advances the chat's updated_at. Concurrent sends against the same
	// chat serialize on the chat row lock; the pair's timestamps are
	// assigned under that lock so serialized exchanges never interleave
	// in created_at order.
	CreateExchange(chatID string, userMsg, botMsg *model.Message) error
	// Create appends a single bot message (reminder injection path).
	Create(msg *model.Message) error
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) FindByChatID(chatID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("chat_id = ?", chatID).Order("created_at ASC").Find(&messages).Error
	return messages, err
}

func (r *messageRepository) CreateExchange(chatID string, userMsg, botMsg *model.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var chat model.Chat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&chat, "id = ?", chatID).Error; err != nil {
			return err
		}
		// The chat's updated_at carries the previous exchange's bot
		// timestamp, so stamping past it keeps created_at strictly
		// increasing across serialized exchanges.
		now := time.Now()
		if !now.After(chat.UpdatedAt) {
			now = chat.UpdatedAt.Add(time.Microsecond)
		}
		userMsg.CreatedAt = now
		botMsg.CreatedAt = now.Add(time.Microsecond)
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		if err := tx.Create(botMsg).Error; err != nil {
			return err
		}
		return tx.Model(&chat).Update("updated_at", botMsg.CreatedAt).Error
	})
}

func (r *messageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}
