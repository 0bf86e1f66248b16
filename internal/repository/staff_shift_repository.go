package repository

import (
	"context"
	"time"

	"fatfood/internal/domain/model"
)

type StaffShiftRepository interface {
	//atの時点で勤務中（scheduled）のシフトを開始時刻の早い順で1件
	FindOnDuty(ctx context.Context, at time.Time) (model.StaffShift, error)
}
