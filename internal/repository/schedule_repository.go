package repository

import (
	"time"

	"khoj/internal/model"

	"gorm.io/gorm"
)

type ScheduleRepository interface {
	Create(schedule *model.Schedule) error
	FindByID(id uint) (*model.Schedule, error)
	FindActiveByUser(userID int) ([]model.Schedule, error)
	// FindDue returns active schedules whose next occurrence falls inside
	// [since, until], oldest first.
	FindDue(since, until time.Time) ([]model.Schedule, error)
	Update(schedule *model.Schedule) error
}

type scheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(schedule *model.Schedule) error {
	return r.db.Create(schedule).Error
}

func (r *scheduleRepository) FindByID(id uint) (*model.Schedule, error) {
	var schedule model.Schedule
	if err := r.db.First(&schedule, id).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) FindActiveByUser(userID int) ([]model.Schedule, error) {
	var schedules []model.Schedule
	err := r.db.Where("user_id = ? AND active = ?", userID, true).
		Order("scheduled_time ASC").Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepository) FindDue(since, until time.Time) ([]model.Schedule, error) {
	var schedules []model.Schedule
	err := r.db.Where("active = ? AND scheduled_time <= ? AND scheduled_time >= ?", true, until, since).
		Order("scheduled_time ASC").Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepository) Update(schedule *model.Schedule) error {
	return r.db.Save(schedule).Error
}
