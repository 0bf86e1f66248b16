package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"fatfood/internal/config"
	"fatfood/internal/domain/model"
	"fatfood/internal/payment/vnpay"
	repo "fatfood/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IPNの応答コード
const (
	VNPayRspSuccess          = "00"
	VNPayRspOrderNotFound    = "01"
	VNPayRspAlreadyConfirmed = "02"
	VNPayRspInvalidAmount    = "04"
	VNPayRspInvalidSignature = "97"
	VNPayRspUnknown          = "99"
)

var hundred = decimal.NewFromInt(100)

type VNPayUsecase struct {
	cfg        config.VNPayConfig
	orders     repo.OrderRepository
	payments   repo.PaymentRepository
	reconciler *Reconciler
	clock      Clock
	loc        *time.Location
	log        *zap.Logger
}

func NewVNPayUsecase(
	cfg config.VNPayConfig,
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	reconciler *Reconciler,
	clock Clock,
	log *zap.Logger,
) *VNPayUsecase {
	return &VNPayUsecase{
		cfg:        cfg,
		orders:     orders,
		payments:   payments,
		reconciler: reconciler,
		clock:      clock,
		loc:        vnpay.LoadLocation(cfg.TimeZone),
		log:        log.With(zap.String("provider", string(model.PaymentProviderVNPay))),
	}
}

type VNPayCreateInput struct {
	OrderID  int64
	BankCode string
	Locale   string
	ClientIP string
}

type VNPayCreateOutput struct {
	PayURL    string `json:"pay_url"`
	TxnRef    string `json:"txn_ref"`
	PaymentID int64  `json:"payment_id"`
	Amount    string `json:"amount"`
}

type VNPayReturnOutput struct {
	OK            bool                `json:"ok"`
	Code          string              `json:"code"`
	Message       string              `json:"message"`
	TxnRef        string              `json:"txn_ref"`
	OrderID       int64               `json:"order_id,omitempty"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	OrderStatus   model.OrderStatus   `json:"order_status,omitempty"`
}

type VNPayIPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

func (u *VNPayUsecase) ensureConfig() error {
	if !u.cfg.Ready() {
		return configurationError("VNPAY_CONFIG_MISSING", "vnpay is not configured")
	}
	return nil
}

func (u *VNPayUsecase) CreatePaymentURL(ctx context.Context, actor Actor, in VNPayCreateInput) (VNPayCreateOutput, error) {
	if err := u.ensureConfig(); err != nil {
		return VNPayCreateOutput{}, err
	}
	o, err := loadPayableOrder(ctx, u.orders, actor, in.OrderID)
	if err != nil {
		return VNPayCreateOutput{}, err
	}

	locale := strings.TrimSpace(in.Locale)
	if locale == "" {
		locale = "vn"
	}
	now := u.clock.Now()
	orderID := strconv.FormatInt(o.ID, 10)
	txnRef := vnpay.TxnRef(orderID, now, u.loc)
	ip := vnpay.NormalizeIP(in.ClientIP)

	params := map[string]string{
		"vnp_Version":    vnpay.Version,
		"vnp_Command":    vnpay.CommandPay,
		"vnp_TmnCode":    u.cfg.TmnCode,
		"vnp_Locale":     locale,
		"vnp_CurrCode":   vnpay.CurrencyVND,
		"vnp_TxnRef":     txnRef,
		"vnp_OrderInfo":  "Thanh toan cho ma GD:" + orderID,
		"vnp_OrderType":  vnpay.OrderType,
		"vnp_Amount":     o.TotalAmount.Mul(hundred).Round(0).String(),
		"vnp_ReturnUrl":  u.cfg.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": vnpay.FormatTime(now, u.loc),
	}
	if bank := strings.TrimSpace(in.BankCode); bank != "" {
		params["vnp_BankCode"] = bank
	}

	payURL := vnpay.BuildURL(u.cfg.URL, params, u.cfg.HashSecret)
	if u.cfg.DebugSign {
		u.log.Debug("vnpay sign",
			zap.String("sign_data", vnpay.SignData(params)),
			zap.String("txn_ref", txnRef),
		)
	}

	p, err := u.payments.Create(ctx, model.Payment{
		OrderID:  o.ID,
		Provider: model.PaymentProviderVNPay,
		Amount:   o.TotalAmount,
		Currency: vnpay.CurrencyVND,
		TxnRef:   txnRef,
		Status:   model.PaymentStatusInitiated,
		Meta: model.MergeMeta(nil, map[string]interface{}{
			"bank_code": in.BankCode,
			"locale":    locale,
			"ip_addr":   ip,
		}),
	})
	if err != nil {
		return VNPayCreateOutput{}, dbError(err)
	}

	return VNPayCreateOutput{
		PayURL:    payURL,
		TxnRef:    txnRef,
		PaymentID: p.ID,
		Amount:    o.TotalAmount.String(),
	}, nil
}

func (u *VNPayUsecase) verify(params map[string]string, stage string) bool {
	ok := vnpay.Verify(params, u.cfg.HashSecret)
	if u.cfg.DebugSign {
		u.log.Debug("vnpay verify",
			zap.String("stage", stage),
			zap.String("sign_data", vnpay.SignData(params)),
			zap.String("expected", vnpay.Sign(params, u.cfg.HashSecret)),
			zap.String("received", params[vnpay.ParamSecureHash]),
		)
	}
	return ok
}

// vnp_Amount（×100）を元の金額に戻す
func claimedAmount(params map[string]string) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(params["vnp_Amount"])
	if raw == "" {
		return nil, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, false
	}
	d = d.Div(hundred)
	return &d, true
}

func callbackMeta(params map[string]string) map[string]interface{} {
	vnp := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k == vnpay.ParamSecureHash || k == vnpay.ParamSecureHashType {
			continue
		}
		vnp[k] = v
	}
	return map[string]interface{}{"vnp": vnp}
}

// 署名不正のときの台帳記録
func (u *VNPayUsecase) rejectSignature(ctx context.Context, p model.Payment, params map[string]string) model.PaymentStatus {
	status, err := u.reconciler.Reject(ctx, model.PaymentProviderVNPay, p.TxnRef, "INVALID_SIGNATURE", callbackMeta(params))
	if err != nil {
		u.log.Error("record invalid signature failed", zap.String("txn_ref", p.TxnRef), zap.Error(err))
		return p.Status
	}
	return status
}

// ブラウザが戻ってくるURL
func (u *VNPayUsecase) HandleReturn(ctx context.Context, params map[string]string) (VNPayReturnOutput, error) {
	if err := u.ensureConfig(); err != nil {
		return VNPayReturnOutput{}, err
	}

	txnRef := params["vnp_TxnRef"]
	out := VNPayReturnOutput{TxnRef: txnRef}

	p, err := u.payments.FindByTxnRef(ctx, model.PaymentProviderVNPay, txnRef)
	if errors.Is(err, repo.ErrNotFound) {
		return VNPayReturnOutput{}, notFoundError("payment not found").withMeta(map[string]interface{}{"txn_ref": txnRef})
	}
	if err != nil {
		return VNPayReturnOutput{}, dbError(err)
	}
	out.OrderID = p.OrderID

	if !u.verify(params, "return") {
		out.Code = VNPayRspInvalidSignature
		out.Message = "invalid signature"
		out.PaymentStatus = u.rejectSignature(ctx, p, params)
		return out, nil
	}

	amount, _ := claimedAmount(params)
	rsp := params["vnp_ResponseCode"]
	outcome := Outcome{
		Provider:      model.PaymentProviderVNPay,
		TxnRef:        txnRef,
		Success:       rsp == VNPayRspSuccess,
		ClaimedAmount: amount,
		FailureCode:   rsp,
		Meta:          callbackMeta(params),
	}
	res, err := u.reconciler.Apply(ctx, outcome)
	if errors.Is(err, ErrAmountMismatch) {
		out.Code = VNPayRspInvalidAmount
		out.Message = "invalid amount"
		out.PaymentStatus = p.Status
		return out, nil
	}
	if err != nil {
		return VNPayReturnOutput{}, err
	}

	out.Code = rsp
	out.PaymentStatus = res.PaymentStatus
	out.OrderStatus = res.OrderStatus
	switch {
	case res.PaymentStatus == model.PaymentStatusSuccess:
		out.OK = true
		out.Message = "payment success"
	default:
		out.Message = "payment failed"
	}
	return out, nil
}

// サーバー間通知。例外は投げずコードで返す
func (u *VNPayUsecase) HandleIPN(ctx context.Context, params map[string]string) VNPayIPNResponse {
	if err := u.ensureConfig(); err != nil {
		u.log.Error("ipn received without config")
		return VNPayIPNResponse{RspCode: VNPayRspUnknown, Message: "Unknown error"}
	}

	txnRef := params["vnp_TxnRef"]
	log := u.log.With(zap.String("txn_ref", txnRef))

	p, err := u.payments.FindByTxnRef(ctx, model.PaymentProviderVNPay, txnRef)
	if errors.Is(err, repo.ErrNotFound) {
		return VNPayIPNResponse{RspCode: VNPayRspOrderNotFound, Message: "Order not found"}
	}
	if err != nil {
		log.Error("ipn lookup failed", zap.Error(err))
		return VNPayIPNResponse{RspCode: VNPayRspUnknown, Message: "Unknown error"}
	}

	if !u.verify(params, "ipn") {
		u.rejectSignature(ctx, p, params)
		return VNPayIPNResponse{RspCode: VNPayRspInvalidSignature, Message: "Invalid signature"}
	}

	amount, ok := claimedAmount(params)
	if !ok || !amount.Equal(p.Amount) {
		log.Warn("ipn amount mismatch", zap.String("expected", p.Amount.String()), zap.String("received", params["vnp_Amount"]))
		return VNPayIPNResponse{RspCode: VNPayRspInvalidAmount, Message: "Invalid amount"}
	}

	if p.Status.IsTerminal() {
		return VNPayIPNResponse{RspCode: VNPayRspAlreadyConfirmed, Message: "Order already confirmed"}
	}

	rsp := params["vnp_ResponseCode"]
	res, err := u.reconciler.Apply(ctx, Outcome{
		Provider:      model.PaymentProviderVNPay,
		TxnRef:        txnRef,
		Success:       rsp == VNPayRspSuccess,
		ClaimedAmount: amount,
		FailureCode:   rsp,
		Meta:          callbackMeta(params),
	})
	switch {
	case errors.Is(err, ErrAmountMismatch):
		return VNPayIPNResponse{RspCode: VNPayRspInvalidAmount, Message: "Invalid amount"}
	case errors.Is(err, ErrNotFound):
		return VNPayIPNResponse{RspCode: VNPayRspOrderNotFound, Message: "Order not found"}
	case err != nil:
		return VNPayIPNResponse{RspCode: VNPayRspUnknown, Message: "Unknown error"}
	}

	//同時に届いた別通知が先に確定させていた
	if errors.Is(res.Err(), ErrDuplicateEvent) || res.Reason == ReasonPaymentFailed {
		return VNPayIPNResponse{RspCode: VNPayRspAlreadyConfirmed, Message: "Order already confirmed"}
	}
	if rsp == VNPayRspSuccess {
		return VNPayIPNResponse{RspCode: VNPayRspSuccess, Message: "Confirm Success"}
	}
	if rsp == "" {
		rsp = VNPayRspUnknown
	}
	return VNPayIPNResponse{RspCode: rsp, Message: "Payment failed"}
}

func (u *VNPayUsecase) Status(ctx context.Context, actor Actor, txnRef string) (PaymentStatusOutput, error) {
	return lookupPaymentStatus(ctx, u.orders, u.payments, actor, model.PaymentProviderVNPay, strings.TrimSpace(txnRef))
}
