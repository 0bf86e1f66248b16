package model

import "time"

type StaffShiftStatus string

const (
	StaffShiftScheduled StaffShiftStatus = "scheduled"
	StaffShiftCompleted StaffShiftStatus = "completed"
	StaffShiftCanceled  StaffShiftStatus = "canceled"
)

// shift_dateはYYYY-MM-DD、start/endはHH:MM:SS（ローカル時刻）
type StaffShift struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffID   int64            `gorm:"not null;index" json:"staff_id"`
	ShiftDate string           `gorm:"type:date;not null;index" json:"shift_date"`
	StartTime string           `gorm:"type:time;not null" json:"start_time"`
	EndTime   string           `gorm:"type:time;not null" json:"end_time"`
	Status    StaffShiftStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
