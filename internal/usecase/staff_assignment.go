package usecase

import (
	"context"
	"errors"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"
)

// 今勤務中のスタッフ（開始が早い順の1人目）に注文を割り当てる
type StaffAssignment struct {
	shifts repo.StaffShiftRepository
	orders repo.OrderRepository
	audit  AuditLogger
	clock  Clock
}

func NewStaffAssignment(shifts repo.StaffShiftRepository, orders repo.OrderRepository, audit AuditLogger, clock Clock) *StaffAssignment {
	return &StaffAssignment{shifts: shifts, orders: orders, audit: audit, clock: clock}
}

func (s *StaffAssignment) AssignOrderToOnDutyStaff(ctx context.Context, order model.Order) (bool, error) {
	//すでに誰か付いていれば触らない
	if order.AssignedStaffID != nil {
		return false, nil
	}

	shift, err := s.shifts.FindOnDuty(ctx, s.clock.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := s.orders.AssignStaffIfEmpty(ctx, order.ID, shift.StaffID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	s.audit.LogAction(ctx, nil, model.AuditActionAssignStaff, model.AuditResourceOrder, order.ID, map[string]interface{}{
		"staff_id": shift.StaffID,
		"shift_id": shift.ID,
	})
	return true, nil
}
