package usecase

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"fatfood/internal/config"
	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"go.uber.org/zap"
)

// 振込確認はお客さんの申告だけ。銀行側の照合はしていない
const TrustLevelCustomerAsserted = "customer_asserted"

const vietqrImageBase = "https://img.vietqr.io/image/"

type VietQRUsecase struct {
	cfg      config.VietQRConfig
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	ids      IDGenerator
	clock    Clock
	log      *zap.Logger
}

func NewVietQRUsecase(cfg config.VietQRConfig, orders repo.OrderRepository, payments repo.PaymentRepository, ids IDGenerator, clock Clock, log *zap.Logger) *VietQRUsecase {
	return &VietQRUsecase{
		cfg:      cfg,
		orders:   orders,
		payments: payments,
		ids:      ids,
		clock:    clock,
		log:      log.With(zap.String("provider", string(model.PaymentProviderVietQR))),
	}
}

type VietQRCreateOutput struct {
	PaymentID  int64  `json:"payment_id"`
	OrderID    int64  `json:"order_id"`
	Amount     string `json:"amount"`
	AddInfo    string `json:"add_info"`
	QRImageURL string `json:"qr_image_url"`
	TxnRef     string `json:"txn_ref"`
}

type VietQRConfirmOutput struct {
	PaymentID       int64               `json:"payment_id"`
	OrderID         int64               `json:"order_id"`
	PaymentStatus   model.PaymentStatus `json:"payment_status"`
	UserConfirmed   bool                `json:"user_confirmed"`
	UserConfirmedAt string              `json:"user_confirmed_at"`
	TrustLevel      string              `json:"trust_level"`
}

func BuildVietQRImageURL(bank, accountNo, accountName string, amount int64, addInfo string) string {
	q := url.Values{}
	if amount > 0 {
		q.Set("amount", strconv.FormatInt(amount, 10))
	}
	if addInfo != "" {
		q.Set("addInfo", addInfo)
	}
	if accountName != "" {
		q.Set("accountName", accountName)
	}
	base := vietqrImageBase + url.PathEscape(bank) + "-" + url.PathEscape(accountNo) + "-qr_only.png"
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

func (u *VietQRUsecase) Create(ctx context.Context, actor Actor, orderID int64) (VietQRCreateOutput, error) {
	if !u.cfg.Ready() {
		return VietQRCreateOutput{}, configurationError("VIETQR_CONFIG_MISSING", "vietqr is not configured")
	}
	o, err := loadPayableOrder(ctx, u.orders, actor, orderID)
	if err != nil {
		return VietQRCreateOutput{}, err
	}

	addInfo := "FATFOOD-" + strconv.FormatInt(o.ID, 10)
	qrURL := BuildVietQRImageURL(u.cfg.BankCode, u.cfg.AccountNo, u.cfg.AccountName, o.TotalAmount.Round(0).IntPart(), addInfo)
	txnRef := addInfo + "-" + u.ids.NewID()

	p, err := u.payments.Create(ctx, model.Payment{
		OrderID:  o.ID,
		Provider: model.PaymentProviderVietQR,
		Amount:   o.TotalAmount,
		Currency: "VND",
		TxnRef:   txnRef,
		Status:   model.PaymentStatusInitiated,
		Meta: model.MergeMeta(nil, map[string]interface{}{
			"bank":         u.cfg.BankCode,
			"account_no":   u.cfg.AccountNo,
			"account_name": u.cfg.AccountName,
			"add_info":     addInfo,
			"qr_image_url": qrURL,
		}),
	})
	if err != nil {
		return VietQRCreateOutput{}, dbError(err)
	}

	return VietQRCreateOutput{
		PaymentID:  p.ID,
		OrderID:    o.ID,
		Amount:     o.TotalAmount.String(),
		AddInfo:    addInfo,
		QRImageURL: qrURL,
		TxnRef:     txnRef,
	}, nil
}

// 「振り込みました」の申告を記録するだけでsuccessにはしない
func (u *VietQRUsecase) Confirm(ctx context.Context, actor Actor, orderID int64) (VietQRConfirmOutput, error) {
	if orderID <= 0 {
		return VietQRConfirmOutput{}, validationError("invalid order_id")
	}
	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return VietQRConfirmOutput{}, notFoundError("order not found")
	}
	if err != nil {
		return VietQRConfirmOutput{}, dbError(err)
	}
	if !actor.CanAccess(o) {
		return VietQRConfirmOutput{}, forbiddenError("forbidden")
	}

	latest, err := u.payments.FindLatestByOrder(ctx, orderID, model.PaymentProviderVietQR)
	if errors.Is(err, repo.ErrNotFound) {
		return VietQRConfirmOutput{}, notFoundError("vietqr payment not found")
	}
	if err != nil {
		return VietQRConfirmOutput{}, dbError(err)
	}

	at := u.clock.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	meta := model.MergeMeta(latest.Meta, map[string]interface{}{
		"user_confirmed":    true,
		"user_confirmed_at": at,
		"trust_level":       TrustLevelCustomerAsserted,
	})
	if err := u.payments.UpdateMeta(ctx, latest.ID, meta); err != nil {
		return VietQRConfirmOutput{}, dbError(err)
	}
	u.log.Info("customer asserted transfer",
		zap.Int64("order_id", orderID),
		zap.Int64("payment_id", latest.ID),
	)

	return VietQRConfirmOutput{
		PaymentID:       latest.ID,
		OrderID:         orderID,
		PaymentStatus:   latest.Status,
		UserConfirmed:   true,
		UserConfirmedAt: at,
		TrustLevel:      TrustLevelCustomerAsserted,
	}, nil
}
