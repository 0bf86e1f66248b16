package repository

import (
	"context"
	"errors"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) (model.Payment, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByTxnRef(ctx context.Context, provider model.PaymentProvider, txnRef string) (model.Payment, error) {
	return r.findByTxnRef(r.db.WithContext(ctx), provider, txnRef)
}

func (r *PaymentGormRepository) FindByTxnRefForUpdate(ctx context.Context, provider model.PaymentProvider, txnRef string) (model.Payment, error) {
	return r.findByTxnRef(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), provider, txnRef)
}

func (r *PaymentGormRepository) findByTxnRef(q *gorm.DB, provider model.PaymentProvider, txnRef string) (model.Payment, error) {
	var p model.Payment
	err := q.Where("provider = ? AND txn_ref = ?", provider, txnRef).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindLatestByOrder(ctx context.Context, orderID int64, provider model.PaymentProvider) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND provider = ?", orderID, provider).
		Order("created_at desc, id desc").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error) {
	var items []model.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.Payment{}, err
	}
	return items, nil
}

func (r *PaymentGormRepository) HasOtherSuccess(ctx context.Context, orderID int64, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("order_id = ? AND id <> ? AND status = ?", orderID, excludeID, model.PaymentStatusSuccess).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PaymentGormRepository) UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus, meta datatypes.JSONMap) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentStatusInitiated).
		Updates(map[string]interface{}{
			"status": status,
			"meta":   meta,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	//行が無いのか、すでに終端なのか
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Payment{}).Where("id = ?", paymentID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return repo.ErrNotFound
	}
	return repo.ErrPaymentNotInitiated
}

func (r *PaymentGormRepository) UpdateMeta(ctx context.Context, paymentID int64, meta datatypes.JSONMap) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", paymentID).
		Update("meta", meta)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
