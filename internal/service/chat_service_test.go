package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"khoj/internal/apperr"
	"khoj/internal/dto"
	"khoj/internal/model"
)

func newChatServiceForTest(guard TopicGuardService, llm GeminiLLMService) (ChatService, *fakeChatRepo, *fakeMessageRepo) {
	chats := newFakeChatRepo()
	messages := newFakeMessageRepo(chats)
	if guard == nil {
		guard = &fakeGuard{allow: true}
	}
	if llm == nil {
		llm = &fakeLLM{reply: "Here is an explanation."}
	}
	return NewChatService(chats, messages, guard, llm), chats, messages
}

func seedChat(t *testing.T, chats *fakeChatRepo, userID int, topic string) *model.Chat {
	t.Helper()
	chat := &model.Chat{
		ID:       uuid.NewString(),
		UserID:   userID,
		Topic:    topic,
		TopicKey: model.NormalizeTopic(topic),
	}
	if err := chats.Create(chat); err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	return chat
}

func TestStartChatCreatesOncePerNormalizedTopic(t *testing.T) {
	svc, chats, _ := newChatServiceForTest(nil, nil)

	first, err := svc.StartChat(1, "  Go Routines ")
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if first.Existing {
		t.Fatalf("first start should create, got existing=true")
	}

	second, err := svc.StartChat(1, "go routines")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !second.Existing {
		t.Fatalf("second start should resolve to the existing chat")
	}
	if second.ChatID != first.ChatID {
		t.Fatalf("chat id changed across starts: %s vs %s", first.ChatID, second.ChatID)
	}
	if len(chats.chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats.chats))
	}
	// Display form keeps the original casing, only whitespace trimmed.
	if got := chats.chats[first.ChatID].Topic; got != "Go Routines" {
		t.Fatalf("display topic = %q", got)
	}
}

func TestStartChatSameTopicDifferentUsers(t *testing.T) {
	svc, _, _ := newChatServiceForTest(nil, nil)

	a, err := svc.StartChat(1, "calculus")
	if err != nil {
		t.Fatalf("user 1 start: %v", err)
	}
	b, err := svc.StartChat(2, "calculus")
	if err != nil {
		t.Fatalf("user 2 start: %v", err)
	}
	if b.Existing || a.ChatID == b.ChatID {
		t.Fatalf("users must get independent chats for the same topic")
	}
}

func TestStartChatEmptyTopic(t *testing.T) {
	svc, _, _ := newChatServiceForTest(nil, nil)

	if _, err := svc.StartChat(1, "   "); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestStartChatLostCreateRaceReturnsWinner(t *testing.T) {
	svc, chats, _ := newChatServiceForTest(nil, nil)

	// A concurrent start inserts the same (user, topic) right before ours.
	winner := &model.Chat{ID: uuid.NewString(), UserID: 1, Topic: "algebra", TopicKey: "algebra"}
	chats.onCreate = func() {
		chats.onCreate = nil
		chats.chats[winner.ID] = winner
	}

	resp, err := svc.StartChat(1, "algebra")
	if err != nil {
		t.Fatalf("start after lost race: %v", err)
	}
	if !resp.Existing || resp.ChatID != winner.ID {
		t.Fatalf("expected winner chat %s, got %+v", winner.ID, resp)
	}
}

func TestSendMessagePersistsPairInOrder(t *testing.T) {
	llm := &fakeLLM{reply: "A goroutine is a lightweight thread."}
	svc, chats, messages := newChatServiceForTest(nil, llm)
	chat := seedChat(t, chats, 1, "goroutines")

	resp, err := svc.SendMessage(context.Background(), "", dto.SendMessageRequest{
		UserID: 1, ChatID: chat.ID, Message: "what is a goroutine?",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Reply != llm.reply {
		t.Fatalf("reply = %q", resp.Reply)
	}

	history, err := messages.FindByChatID(chat.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user/bot pair, got %d messages", len(history))
	}
	if history[0].Role != model.RoleUser || history[1].Role != model.RoleBot {
		t.Fatalf("pair order wrong: %s then %s", history[0].Role, history[1].Role)
	}
	if !history[0].CreatedAt.Before(history[1].CreatedAt) {
		t.Fatalf("bot message must sort after the user message")
	}
}

func TestSendMessageOffTopicLeavesNoTrace(t *testing.T) {
	svc, chats, messages := newChatServiceForTest(&fakeGuard{allow: false}, nil)
	chat := seedChat(t, chats, 1, "photosynthesis")

	_, err := svc.SendMessage(context.Background(), "", dto.SendMessageRequest{
		UserID: 1, ChatID: chat.ID, Message: "who won the world cup?",
	})
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindOffTopic {
		t.Fatalf("expected off-topic rejection, got %v", err)
	}
	if e.Topic != "photosynthesis" {
		t.Fatalf("rejection must carry the bound topic, got %q", e.Topic)
	}
	if len(messages.messages) != 0 {
		t.Fatalf("rejected message must not be persisted")
	}
}

func TestSendMessageProviderFailurePersistsNothing(t *testing.T) {
	llm := &fakeLLM{replyErr: apperr.New(apperr.KindProviderUnavailable, "AI provider request failed")}
	svc, chats, messages := newChatServiceForTest(nil, llm)
	chat := seedChat(t, chats, 1, "chemistry")

	_, err := svc.SendMessage(context.Background(), "", dto.SendMessageRequest{
		UserID: 1, ChatID: chat.ID, Message: "explain titration",
	})
	if apperr.KindOf(err) != apperr.KindProviderUnavailable {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
	if len(messages.messages) != 0 {
		t.Fatalf("failed exchange must not be persisted")
	}
}

func TestSendMessagePairsNeverInterleave(t *testing.T) {
	svc, chats, messages := newChatServiceForTest(nil, nil)
	chat := seedChat(t, chats, 1, "goroutines")

	// Rapid back-to-back sends; the pair timestamps are assigned at
	// persistence time, so history must stay strictly paired.
	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(context.Background(), "", dto.SendMessageRequest{
			UserID: 1, ChatID: chat.ID, Message: "more about goroutines please",
		})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	history, err := messages.FindByChatID(chat.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 10 {
		t.Fatalf("expected 10 messages, got %d", len(history))
	}
	for i, m := range history {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleBot
		}
		if m.Role != want {
			t.Fatalf("message %d role = %q, want %q", i, m.Role, want)
		}
		if i > 0 && !history[i-1].CreatedAt.Before(m.CreatedAt) {
			t.Fatalf("created_at not strictly increasing at message %d", i)
		}
	}
}

func TestSendMessageRepoFailureIsNotNotFound(t *testing.T) {
	svc, chats, _ := newChatServiceForTest(nil, nil)
	chats.findErr = errors.New("connection refused")

	_, err := svc.SendMessage(context.Background(), "", dto.SendMessageRequest{
		UserID: 1, ChatID: "c-1", Message: "hello",
	})
	if err == nil || apperr.KindOf(err) == apperr.KindNotFound {
		t.Fatalf("infrastructure failure must not map to not found, got %v", err)
	}
}

func TestDeleteChatRepoFailureIsNotNotFound(t *testing.T) {
	svc, chats, _ := newChatServiceForTest(nil, nil)
	chats.findErr = errors.New("connection refused")

	err := svc.DeleteChat(1, "c-1")
	if err == nil || apperr.KindOf(err) == apperr.KindNotFound {
		t.Fatalf("infrastructure failure must not map to not found, got %v", err)
	}
}

func TestSendMessageOwnership(t *testing.T) {
	svc, chats, _ := newChatServiceForTest(nil, nil)
	chat := seedChat(t, chats, 1, "history")

	_, err := svc.SendMessage(context.Background(), "", dto.SendMessageRequest{
		UserID: 2, ChatID: chat.ID, Message: "hello history",
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("foreign chat must look like not found, got %v", err)
	}
}

func TestSendMessageEmpty(t *testing.T) {
	svc, chats, _ := newChatServiceForTest(nil, nil)
	chat := seedChat(t, chats, 1, "history")

	_, err := svc.SendMessage(context.Background(), "", dto.SendMessageRequest{
		UserID: 1, ChatID: chat.ID, Message: "   ",
	})
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGetHistoryOrdersOldestFirst(t *testing.T) {
	svc, chats, messages := newChatServiceForTest(nil, nil)
	chat := seedChat(t, chats, 1, "biology")

	base := time.Now()
	messages.messages = []model.Message{
		{ID: "m2", ChatID: chat.ID, Role: model.RoleBot, Content: "second", CreatedAt: base.Add(time.Second)},
		{ID: "m1", ChatID: chat.ID, Role: model.RoleUser, Content: "first", CreatedAt: base},
		{ID: "x", ChatID: "other", Role: model.RoleUser, Content: "noise", CreatedAt: base},
	}

	history, err := svc.GetHistory(chat.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].ID != "m1" || history[1].ID != "m2" {
		t.Fatalf("history out of order: %s, %s", history[0].ID, history[1].ID)
	}
}

func TestGetHistoryUnknownChat(t *testing.T) {
	svc, _, _ := newChatServiceForTest(nil, nil)

	if _, err := svc.GetHistory("missing"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteChatOwnership(t *testing.T) {
	svc, chats, _ := newChatServiceForTest(nil, nil)
	chat := seedChat(t, chats, 1, "physics")

	if err := svc.DeleteChat(2, chat.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("foreign delete must fail as not found, got %v", err)
	}
	if err := svc.DeleteChat(1, chat.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := chats.FindByID(chat.ID); err == nil {
		t.Fatalf("chat should be gone")
	}
}

func TestListChatsMostRecentFirst(t *testing.T) {
	svc, chats, _ := newChatServiceForTest(nil, nil)
	older := seedChat(t, chats, 1, "older topic")
	newer := seedChat(t, chats, 1, "newer topic")
	seedChat(t, chats, 2, "someone else")

	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer.UpdatedAt = time.Now()

	list, err := svc.ListChats(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("chats out of order: %s, %s", list[0].ID, list[1].ID)
	}
}

func TestListChatsEmpty(t *testing.T) {
	svc, _, _ := newChatServiceForTest(nil, nil)

	list, err := svc.ListChats(42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}
