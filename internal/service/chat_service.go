package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"khoj/internal/apperr"
	"khoj/internal/dto"
	"khoj/internal/model"
	"khoj/internal/repository"
)

// ChatService is the chat session registry: it owns chat identity, the
// topic binding, and the guarded message exchange.
type ChatService interface {
	StartChat(userID int, topic string) (*dto.StartChatResponse, error)
	ListChats(userID int) ([]dto.ChatSummaryResponse, error)
	GetHistory(chatID string) ([]dto.MessageResponse, error)
	DeleteChat(userID int, chatID string) error
	SendMessage(ctx context.Context, apiKey string, req dto.SendMessageRequest) (*dto.SendMessageResponse, error)
}

type chatService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	topicGuard  TopicGuardService
	llm         GeminiLLMService
}

func NewChatService(
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	topicGuard TopicGuardService,
	llm GeminiLLMService,
) ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		topicGuard:  topicGuard,
		llm:         llm,
	}
}

// StartChat is an idempotent create: a second start for the same (user,
// normalized topic) returns the existing chat untouched.
func (s *chatService) StartChat(userID int, topic string) (*dto.StartChatResponse, error) {
	display := strings.TrimSpace(topic)
	if display == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "topic must not be empty")
	}
	key := model.NormalizeTopic(display)

	if existing, err := s.chatRepo.FindByUserAndTopicKey(userID, key); err == nil {
		return &dto.StartChatResponse{ChatID: existing.ID, Existing: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error looking up chat for topic: %w", err)
	}

	chat := &model.Chat{
		ID:       uuid.NewString(),
		UserID:   userID,
		Topic:    display,
		TopicKey: key,
	}
	if err := s.chatRepo.Create(chat); err != nil {
		// A concurrent start may have won the unique index race; the
		// surviving row is authoritative.
		if winner, findErr := s.chatRepo.FindByUserAndTopicKey(userID, key); findErr == nil {
			return &dto.StartChatResponse{ChatID: winner.ID, Existing: true}, nil
		}
		log.Error().Err(err).Int("user_id", userID).Msg("StartChat: failed to create chat")
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	return &dto.StartChatResponse{ChatID: chat.ID, Existing: false}, nil
}

func (s *chatService) ListChats(userID int) ([]dto.ChatSummaryResponse, error) {
	chats, err := s.chatRepo.FindAllByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("error fetching chats: %w", err)
	}
	summaries := make([]dto.ChatSummaryResponse, len(chats))
	for i := range chats {
		if err := copier.Copy(&summaries[i], &chats[i]); err != nil {
			return nil, fmt.Errorf("error preparing chat summaries: %w", err)
		}
	}
	return summaries, nil
}

func (s *chatService) GetHistory(chatID string) ([]dto.MessageResponse, error) {
	if _, err := s.chatRepo.FindByID(chatID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "chat not found")
		}
		return nil, fmt.Errorf("error looking up chat: %w", err)
	}

	messages, err := s.messageRepo.FindByChatID(chatID)
	if err != nil {
		return nil, fmt.Errorf("error fetching messages: %w", err)
	}
	history := make([]dto.MessageResponse, len(messages))
	for i := range messages {
		if err := copier.Copy(&history[i], &messages[i]); err != nil {
			return nil, fmt.Errorf("error preparing history: %w", err)
		}
	}
	return history, nil
}

func (s *chatService) DeleteChat(userID int, chatID string) error {
	chat, err := s.chatRepo.FindByID(chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "chat not found")
		}
		return fmt.Errorf("error looking up chat: %w", err)
	}
	if chat.UserID != userID {
		return apperr.New(apperr.KindNotFound, "chat not found or unauthorized")
	}
	if err := s.chatRepo.Delete(chat); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("DeleteChat: failed to delete chat")
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

// SendMessage runs the topic guard, generates the reply, and persists the
// user/bot pair atomically. A rejected or failed send leaves no trace.
func (s *chatService) SendMessage(ctx context.Context, apiKey string, req dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "message must not be empty")
	}

	chat, err := s.chatRepo.FindByID(req.ChatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "chat not found")
		}
		return nil, fmt.Errorf("error looking up chat: %w", err)
	}
	if chat.UserID != req.UserID {
		return nil, apperr.New(apperr.KindNotFound, "chat not found or unauthorized")
	}

	allowed, err := s.topicGuard.Check(ctx, apiKey, chat, message)
	if err != nil {
		return nil, fmt.Errorf("topic guard failed: %w", err)
	}
	if !allowed {
		return nil, apperr.OffTopic(chat.Topic)
	}

	history, err := s.messageRepo.FindByChatID(chat.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading history for reply: %w", err)
	}

	reply, err := s.llm.GenerateReply(ctx, apiKey, chat.Topic, history, message)
	if err != nil {
		return nil, err
	}

	// Timestamps are left to CreateExchange, which assigns them under the
	// chat row lock.
	userMsg := &model.Message{
		ID:      uuid.NewString(),
		ChatID:  chat.ID,
		Role:    model.RoleUser,
		Content: message,
	}
	botMsg := &model.Message{
		ID:      uuid.NewString(),
		ChatID:  chat.ID,
		Role:    model.RoleBot,
		Content: reply,
	}
	if err := s.messageRepo.CreateExchange(chat.ID, userMsg, botMsg); err != nil {
		log.Error().Err(err).Str("chat_id", chat.ID).Msg("SendMessage: failed to persist message pair")
		return nil, fmt.Errorf("failed to persist message exchange: %w", err)
	}

	return &dto.SendMessageResponse{Reply: reply}, nil
}
