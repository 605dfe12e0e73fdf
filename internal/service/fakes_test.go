package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"khoj/internal/model"
	"khoj/internal/repository"
)

// In-memory repository fakes so service behavior is testable without a
// database. Missing rows surface as gorm.ErrRecordNotFound, matching the
// real repositories.

var errDuplicateKey = errors.New("duplicate key value violates unique constraint")

type fakeChatRepo struct {
	chats map[string]*model.Chat
	// onCreate runs before the insert; tests use it to slip a concurrent
	// winner in under the unique index.
	onCreate func()
	// findErr simulates an infrastructure failure on lookups.
	findErr error
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[string]*model.Chat)}
}

func (r *fakeChatRepo) Create(chat *model.Chat) error {
	if r.onCreate != nil {
		r.onCreate()
	}
	for _, c := range r.chats {
		if c.UserID == chat.UserID && c.TopicKey == chat.TopicKey {
			return errDuplicateKey
		}
	}
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepo) FindByID(id string) (*model.Chat, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	chat, ok := r.chats[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return chat, nil
}

func (r *fakeChatRepo) FindByUserAndTopicKey(userID int, topicKey string) (*model.Chat, error) {
	for _, c := range r.chats {
		if c.UserID == userID && c.TopicKey == topicKey {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeChatRepo) FindAllByUser(userID int) ([]model.Chat, error) {
	var chats []model.Chat
	for _, c := range r.chats {
		if c.UserID == userID {
			chats = append(chats, *c)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (r *fakeChatRepo) Delete(chat *model.Chat) error {
	delete(r.chats, chat.ID)
	return nil
}

type fakeMessageRepo struct {
	messages    []model.Message
	chats       *fakeChatRepo
	exchangeErr error
}

func newFakeMessageRepo(chats *fakeChatRepo) *fakeMessageRepo {
	return &fakeMessageRepo{chats: chats}
}

func (r *fakeMessageRepo) FindByChatID(chatID string) ([]model.Message, error) {
	var out []model.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeMessageRepo) CreateExchange(chatID string, userMsg, botMsg *model.Message) error {
	if r.exchangeErr != nil {
		return r.exchangeErr
	}
	chat, ok := r.chats.chats[chatID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	// Timestamps are assigned here, as the real repository does under the
	// chat row lock, keeping created_at strictly increasing per chat.
	now := time.Now()
	if !now.After(chat.UpdatedAt) {
		now = chat.UpdatedAt.Add(time.Microsecond)
	}
	userMsg.CreatedAt = now
	botMsg.CreatedAt = now.Add(time.Microsecond)
	chat.UpdatedAt = botMsg.CreatedAt
	r.messages = append(r.messages, *userMsg, *botMsg)
	return nil
}

func (r *fakeMessageRepo) Create(msg *model.Message) error {
	r.messages = append(r.messages, *msg)
	return nil
}

type fakeQuizRepo struct {
	quizzes  map[uint]*model.Quiz
	nextID   uint
	nextQID  uint
	onCreate func()
}

func newFakeQuizRepo() *fakeQuizRepo {
	return &fakeQuizRepo{quizzes: make(map[uint]*model.Quiz), nextID: 1, nextQID: 1}
}

func (r *fakeQuizRepo) CreateWithQuestions(quiz *model.Quiz) error {
	if r.onCreate != nil {
		r.onCreate()
	}
	for _, q := range r.quizzes {
		if q.ChatID == quiz.ChatID && q.Status == model.QuizStatusActive {
			return errDuplicateKey
		}
	}
	quiz.ID = r.nextID
	r.nextID++
	for i := range quiz.Questions {
		quiz.Questions[i].ID = r.nextQID
		quiz.Questions[i].QuizID = quiz.ID
		r.nextQID++
	}
	quiz.CreatedAt = time.Now()
	r.quizzes[quiz.ID] = quiz
	return nil
}

func (r *fakeQuizRepo) FindActiveByChat(chatID string) (*model.Quiz, error) {
	for _, q := range r.quizzes {
		if q.ChatID == chatID && q.Status == model.QuizStatusActive {
			return q, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeQuizRepo) FindByIDWithQuestions(id uint) (*model.Quiz, error) {
	quiz, ok := r.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	// Copy so callers see a fresh read, the way Preload does.
	cp := *quiz
	cp.Questions = append([]model.QuizQuestion(nil), quiz.Questions...)
	sort.Slice(cp.Questions, func(i, j int) bool {
		return cp.Questions[i].OrderNum < cp.Questions[j].OrderNum
	})
	return &cp, nil
}

func (r *fakeQuizRepo) Complete(quiz *model.Quiz, questions []model.QuizQuestion) error {
	stored, ok := r.quizzes[quiz.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Status != model.QuizStatusActive {
		return repository.ErrQuizAlreadyCompleted
	}
	for _, q := range questions {
		for i := range stored.Questions {
			if stored.Questions[i].ID == q.ID {
				stored.Questions[i].UserAnswer = q.UserAnswer
				stored.Questions[i].IsCorrect = q.IsCorrect
			}
		}
	}
	stored.Status = quiz.Status
	stored.Score = quiz.Score
	stored.CompletedAt = quiz.CompletedAt
	return nil
}

type fakeScheduleRepo struct {
	schedules map[uint]*model.Schedule
	nextID    uint
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[uint]*model.Schedule), nextID: 1}
}

func (r *fakeScheduleRepo) Create(schedule *model.Schedule) error {
	schedule.ID = r.nextID
	r.nextID++
	schedule.CreatedAt = time.Now()
	r.schedules[schedule.ID] = schedule
	return nil
}

func (r *fakeScheduleRepo) FindByID(id uint) (*model.Schedule, error) {
	schedule, ok := r.schedules[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return schedule, nil
}

func (r *fakeScheduleRepo) FindActiveByUser(userID int) ([]model.Schedule, error) {
	var out []model.Schedule
	for _, s := range r.schedules {
		if s.UserID == userID && s.Active {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out, nil
}

func (r *fakeScheduleRepo) FindDue(since, until time.Time) ([]model.Schedule, error) {
	var out []model.Schedule
	for _, s := range r.schedules {
		if s.Active && !s.ScheduledTime.After(until) && !s.ScheduledTime.Before(since) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out, nil
}

func (r *fakeScheduleRepo) Update(schedule *model.Schedule) error {
	if _, ok := r.schedules[schedule.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.schedules[schedule.ID] = schedule
	return nil
}

// fakeLLM scripts the AI provider's behavior per call type.
type fakeLLM struct {
	reply    string
	replyErr error

	questions    []GeneratedQuestion
	questionsErr error

	gradeResult bool
	gradeErr    error
	gradeCalls  int

	relevant       bool
	relevanceErr   error
	relevanceCalls int
}

func (f *fakeLLM) GenerateReply(ctx context.Context, apiKey, topic string, history []model.Message, message string) (string, error) {
	if f.replyErr != nil {
		return "", f.replyErr
	}
	return f.reply, nil
}

func (f *fakeLLM) GenerateQuizQuestions(ctx context.Context, apiKey, topic string, count int) ([]GeneratedQuestion, error) {
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	return f.questions, nil
}

func (f *fakeLLM) GradeFreeTextAnswer(ctx context.Context, apiKey, question, correctAnswer, userAnswer string) (bool, error) {
	f.gradeCalls++
	if f.gradeErr != nil {
		return false, f.gradeErr
	}
	return f.gradeResult, nil
}

func (f *fakeLLM) JudgeRelevance(ctx context.Context, apiKey, topic, message string) (bool, error) {
	f.relevanceCalls++
	if f.relevanceErr != nil {
		return false, f.relevanceErr
	}
	return f.relevant, nil
}

// fakeGuard bypasses the real topic guard in chat service tests.
type fakeGuard struct {
	allow bool
	err   error
}

func (f *fakeGuard) Check(ctx context.Context, apiKey string, chat *model.Chat, message string) (bool, error) {
	return f.allow, f.err
}
