package repository

import (
	"context"
	"errors"
	"time"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"gorm.io/gorm"
)

type StaffShiftGormRepository struct {
	db *gorm.DB
}

func NewStaffShiftGormRepository(db *gorm.DB) *StaffShiftGormRepository {
	return &StaffShiftGormRepository{db: db}
}

func (r *StaffShiftGormRepository) FindOnDuty(ctx context.Context, at time.Time) (model.StaffShift, error) {
	day := at.Format("2006-01-02")
	clock := at.Format("15:04:05")

	var s model.StaffShift
	err := r.db.WithContext(ctx).
		Where("shift_date = ? AND status = ? AND start_time <= ? AND end_time >= ?",
			day, model.StaffShiftScheduled, clock, clock).
		Order("start_time asc").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.StaffShift{}, repo.ErrNotFound
	}
	if err != nil {
		return model.StaffShift{}, err
	}
	return s, nil
}
