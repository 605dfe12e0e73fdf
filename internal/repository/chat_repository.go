package repository

import (
	"khoj/internal/model"

	"gorm.io/gorm"
)

type ChatRepository interface {
	Create(chat *model.Chat) error
	FindByID(id string) (*model.Chat, error)
	FindByUserAndTopicKey(userID int, topicKey string) (*model.Chat, error)
	FindAllByUser(userID int) ([]model.Chat, error)
	Delete(chat *model.Chat) error
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(chat *model.Chat) error {
	return r.db.Create(chat).Error
}

func (r *chatRepository) FindByID(id string) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.First(&chat, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) FindByUserAndTopicKey(userID int, topicKey string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.Where("user_id = ? AND topic_key = ?", userID, topicKey).First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) FindAllByUser(userID int) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&chats).Error
	return chats, err
}

// Delete removes the chat; messages, quizzes, questions and schedules go
// with it through the FK cascade.
func (r *chatRepository) Delete(chat *model.Chat) error {
	return r.db.Delete(chat).Error
}
