package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"khoj/internal/apperr"
	"khoj/internal/dto"
	"khoj/internal/model"
	"khoj/internal/repository"
)

// ScheduleService validates and persists quiz reminder rules. Rule
// execution belongs to the external scheduler, which polls DueSchedules
// and calls TriggerReminder.
type ScheduleService interface {
	CreateSchedule(req dto.CreateScheduleRequest) (*dto.ScheduleResponse, error)
	ListUserSchedules(userID int) ([]dto.ScheduleSummaryResponse, error)
	CancelSchedule(userID int, scheduleID uint) error
	DueSchedules() ([]dto.ScheduleSummaryResponse, error)
	TriggerReminder(scheduleID uint) (*dto.ScheduleSummaryResponse, error)
}

type scheduleService struct {
	chatRepo     repository.ChatRepository
	scheduleRepo repository.ScheduleRepository
	messageRepo  repository.MessageRepository
}

func NewScheduleService(
	chatRepo repository.ChatRepository,
	scheduleRepo repository.ScheduleRepository,
	messageRepo repository.MessageRepository,
) ScheduleService {
	return &scheduleService{chatRepo: chatRepo, scheduleRepo: scheduleRepo, messageRepo: messageRepo}
}

func (s *scheduleService) CreateSchedule(req dto.CreateScheduleRequest) (*dto.ScheduleResponse, error) {
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

	now := time.Now()
	next, err := nextOccurrence(now, req.RecurrenceType, req.ScheduledTime, req.ReminderTime, req.DaysOfWeek)
	if err != nil {
		return nil, err
	}
	if next.Before(now) {
		return nil, apperr.New(apperr.KindInvalidInput, "scheduled time must be in the future")
	}

	schedule := &model.Schedule{
		UserID:          req.UserID,
		ChatID:          req.ChatID,
		Topic:           chat.Topic,
		ScheduledTime:   next,
		Active:          true,
		RecurrenceType:  req.RecurrenceType,
		ReminderTime:    req.ReminderTime,
		ReminderTimeEnd: req.ReminderTimeEnd,
		DaysOfWeek:      req.DaysOfWeek,
	}
	if err := s.scheduleRepo.Create(schedule); err != nil {
		log.Error().Err(err).Str("chat_id", req.ChatID).Msg("CreateSchedule: failed to create schedule")
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	return &dto.ScheduleResponse{
		ScheduleID:     schedule.ID,
		Topic:          chat.Topic,
		RecurrenceType: schedule.RecurrenceType,
		ReminderTime:   schedule.ReminderTime,
		NextReminder:   next.Format(time.RFC3339),
	}, nil
}

func (s *scheduleService) ListUserSchedules(userID int) ([]dto.ScheduleSummaryResponse, error) {
	schedules, err := s.scheduleRepo.FindActiveByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("error fetching schedules: %w", err)
	}
	return toScheduleSummaries(schedules)
}

func (s *scheduleService) CancelSchedule(userID int, scheduleID uint) error {
	schedule, err := s.scheduleRepo.FindByID(scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "schedule not found")
		}
		return fmt.Errorf("error looking up schedule: %w", err)
	}
	if schedule.UserID != userID {
		return apperr.New(apperr.KindNotFound, "schedule not found or unauthorized")
	}
	schedule.Active = false
	if err := s.scheduleRepo.Update(schedule); err != nil {
		return fmt.Errorf("failed to cancel schedule: %w", err)
	}
	return nil
}

// DueSchedules returns rules due within the last hour, for the external
// scheduler's polling loop.
func (s *scheduleService) DueSchedules() ([]dto.ScheduleSummaryResponse, error) {
	now := time.Now()
	schedules, err := s.scheduleRepo.FindDue(now.Add(-time.Hour), now)
	if err != nil {
		return nil, fmt.Errorf("error fetching due schedules: %w", err)
	}
	return toScheduleSummaries(schedules)
}

// TriggerReminder injects the reminder bot message into the schedule's chat
// and advances recurring rules to their next occurrence. One-time rules
// deactivate after firing.
func (s *scheduleService) TriggerReminder(scheduleID uint) (*dto.ScheduleSummaryResponse, error) {
	schedule, err := s.scheduleRepo.FindByID(scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "schedule not found")
		}
		return nil, fmt.Errorf("error looking up schedule: %w", err)
	}
	if !schedule.Active {
		return nil, apperr.New(apperr.KindNotFound, "schedule not found or inactive")
	}

	reminder := &model.Message{
		ID:     uuid.NewString(),
		ChatID: schedule.ChatID,
		Role:   model.RoleBot,
		Content: fmt.Sprintf(
			"Time for your quiz! Take a quiz on '%s' for today, or head to the dashboard when you're ready.",
			schedule.Topic,
		),
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(reminder); err != nil {
		log.Error().Err(err).Uint("schedule_id", scheduleID).Msg("TriggerReminder: failed to post reminder message")
		return nil, fmt.Errorf("failed to post reminder: %w", err)
	}

	now := time.Now()
	switch schedule.RecurrenceType {
	case model.RecurrenceOnce:
		schedule.Active = false
	default:
		// Computing from just past now skips the occurrence that fired
		// while keeping the result on a configured day.
		next, err := nextOccurrence(now.Add(time.Minute), schedule.RecurrenceType, "", schedule.ReminderTime, schedule.DaysOfWeek)
		if err != nil {
			log.Warn().Err(err).Uint("schedule_id", scheduleID).Msg("TriggerReminder: could not advance schedule, deactivating")
			schedule.Active = false
		} else {
			schedule.ScheduledTime = next
		}
	}
	if err := s.scheduleRepo.Update(schedule); err != nil {
		return nil, fmt.Errorf("failed to update schedule after trigger: %w", err)
	}

	var summary dto.ScheduleSummaryResponse
	if err := copier.Copy(&summary, schedule); err != nil {
		return nil, fmt.Errorf("error preparing schedule response: %w", err)
	}
	return &summary, nil
}

func toScheduleSummaries(schedules []model.Schedule) ([]dto.ScheduleSummaryResponse, error) {
	summaries := make([]dto.ScheduleSummaryResponse, len(schedules))
	for i := range schedules {
		if err := copier.Copy(&summaries[i], &schedules[i]); err != nil {
			return nil, fmt.Errorf("error preparing schedule summaries: %w", err)
		}
	}
	return summaries, nil
}

// nextOccurrence computes the first firing time for a rule, relative to now.
func nextOccurrence(now time.Time, recurrenceType, scheduledTime, reminderTime, daysOfWeek string) (time.Time, error) {
	switch recurrenceType {
	case model.RecurrenceOnce:
		t, err := parseScheduledTime(scheduledTime)
		if err != nil {
			return time.Time{}, apperr.New(apperr.KindInvalidInput, "invalid scheduled_time, use ISO 8601 (e.g. 2025-10-31T14:30:00Z)")
		}
		return t, nil
	case model.RecurrenceDaily:
		hour, minute, err := parseClock(reminderTime)
		if err != nil {
			return time.Time{}, apperr.New(apperr.KindInvalidInput, "invalid reminder_time, use HH:MM (e.g. 14:30)")
		}
		return nextDaily(now, hour, minute), nil
	case model.RecurrenceWeekly:
		hour, minute, err := parseClock(reminderTime)
		if err != nil {
			return time.Time{}, apperr.New(apperr.KindInvalidInput, "invalid reminder_time, use HH:MM (e.g. 14:30)")
		}
		days := parseDaysOfWeek(daysOfWeek)
		if len(days) == 0 {
			return time.Time{}, apperr.New(apperr.KindInvalidInput, "days_of_week required for weekly reminders")
		}
		return nextWeekly(now, days, hour, minute), nil
	default:
		return time.Time{}, apperr.New(apperr.KindInvalidInput, "invalid recurrence_type, use 'once', 'daily' or 'weekly'")
	}
}

func parseScheduledTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", raw)
}

func parseClock(raw string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// parseDaysOfWeek reads "1,3,5" (0=Sunday) ignoring invalid entries.
func parseDaysOfWeek(raw string) []int {
	var days []int
	for _, part := range strings.Split(raw, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil && day >= 0 && day <= 6 {
			days = append(days, day)
		}
	}
	return days
}

// nextDaily picks today's reminder time when it has not passed, otherwise
// tomorrow's.
func nextDaily(now time.Time, hour, minute int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !today.Before(now) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// nextWeekly finds the closest matching weekday at the reminder time.
func nextWeekly(now time.Time, days []int, hour, minute int) time.Time {
	currentWeekday := int(now.Weekday())

	best := time.Time{}
	for _, day := range days {
		daysUntil := (day - currentWeekday + 7) % 7
		candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()).
			AddDate(0, 0, daysUntil)
		if candidate.Before(now) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}
	return best
}
