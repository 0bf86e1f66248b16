package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fatfood/internal/config"
	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"github.com/plutov/paypal/v4"
	"go.uber.org/zap"
)

const (
	//承認だけでキャプチャ前でもpaidにする。キャプチャされないまま残る注文はpaidのまま（未解決）
	paypalEventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	paypalEventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
	paypalStatusCompleted      = "COMPLETED"
	paypalVerifySuccess        = "SUCCESS"
)

// *paypal.Client が満たす
type PaypalAPI interface {
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, captureOrderRequest paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
	VerifyWebhookSignature(ctx context.Context, httpReq *http.Request, webhookID string) (*paypal.VerifyWebhookResponse, error)
}

type PaypalUsecase struct {
	cfg        config.PayPalConfig
	client     PaypalAPI
	orders     repo.OrderRepository
	payments   repo.PaymentRepository
	reconciler *Reconciler
	log        *zap.Logger
}

func NewPaypalUsecase(
	cfg config.PayPalConfig,
	client PaypalAPI,
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	reconciler *Reconciler,
	log *zap.Logger,
) *PaypalUsecase {
	return &PaypalUsecase{
		cfg:        cfg,
		client:     client,
		orders:     orders,
		payments:   payments,
		reconciler: reconciler,
		log:        log.With(zap.String("provider", string(model.PaymentProviderPayPal))),
	}
}

type PaypalCreateOutput struct {
	ApprovalURL   string `json:"approval_url"`
	PaypalOrderID string `json:"paypal_order_id"`
	PaymentID     int64  `json:"payment_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type PaypalResultOutput struct {
	OK            bool                `json:"ok"`
	PaypalOrderID string              `json:"paypal_order_id"`
	OrderID       int64               `json:"order_id,omitempty"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	OrderStatus   model.OrderStatus   `json:"order_status,omitempty"`
	Duplicate     bool                `json:"duplicate,omitempty"`
	Ignored       bool                `json:"ignored,omitempty"`
}

func (u *PaypalUsecase) ensureConfig() error {
	if !u.cfg.Ready() || u.client == nil {
		return configurationError("PAYPAL_CONFIG_MISSING", "paypal is not configured")
	}
	return nil
}

func (u *PaypalUsecase) CreateOrder(ctx context.Context, actor Actor, orderID int64) (PaypalCreateOutput, error) {
	if err := u.ensureConfig(); err != nil {
		return PaypalCreateOutput{}, err
	}
	o, err := loadPayableOrder(ctx, u.orders, actor, orderID)
	if err != nil {
		return PaypalCreateOutput{}, err
	}

	currency := u.cfg.Currency
	value := o.TotalAmount.StringFixed(2)

	created, err := u.client.CreateOrder(ctx, paypal.OrderIntentCapture,
		[]paypal.PurchaseUnitRequest{{
			ReferenceID: "ORDER-" + strconv.FormatInt(o.ID, 10),
			Amount: &paypal.PurchaseUnitAmount{
				Currency: currency,
				Value:    value,
			},
		}},
		nil,
		&paypal.ApplicationContext{
			ReturnURL:  u.cfg.ReturnURL,
			CancelURL:  u.cfg.CancelURL,
			UserAction: paypal.UserActionPayNow,
		},
	)
	if err != nil {
		u.log.Error("create order failed", zap.Int64("order_id", o.ID), zap.Error(err))
		return PaypalCreateOutput{}, providerError("paypal create order failed", err)
	}

	approval := ""
	for _, l := range created.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approval = l.Href
			break
		}
	}
	if created.ID == "" || approval == "" {
		return PaypalCreateOutput{}, providerError("paypal approval link missing", nil)
	}

	p, err := u.payments.Create(ctx, model.Payment{
		OrderID:  o.ID,
		Provider: model.PaymentProviderPayPal,
		Amount:   o.TotalAmount,
		Currency: currency,
		TxnRef:   created.ID,
		Status:   model.PaymentStatusInitiated,
		Meta: model.MergeMeta(nil, map[string]interface{}{
			"paypal_status": created.Status,
			"approval_url":  approval,
		}),
	})
	if err != nil {
		return PaypalCreateOutput{}, dbError(err)
	}

	return PaypalCreateOutput{
		ApprovalURL:   approval,
		PaypalOrderID: created.ID,
		PaymentID:     p.ID,
		Amount:        value,
		Currency:      currency,
	}, nil
}

// return URL。?token= がPayPalの注文ID
func (u *PaypalUsecase) CaptureReturn(ctx context.Context, paypalOrderID string) (PaypalResultOutput, error) {
	if err := u.ensureConfig(); err != nil {
		return PaypalResultOutput{}, err
	}
	paypalOrderID = strings.TrimSpace(paypalOrderID)
	if paypalOrderID == "" {
		return PaypalResultOutput{}, validationError("token required")
	}

	p, err := u.payments.FindByTxnRef(ctx, model.PaymentProviderPayPal, paypalOrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return PaypalResultOutput{}, notFoundError("payment not found")
	}
	if err != nil {
		return PaypalResultOutput{}, dbError(err)
	}

	//リロードや戻るボタンで再度来た。終端なら再キャプチャしない
	if p.Status.IsTerminal() {
		out := PaypalResultOutput{
			OK:            p.Status == model.PaymentStatusSuccess,
			PaypalOrderID: paypalOrderID,
			OrderID:       p.OrderID,
			PaymentStatus: p.Status,
			Duplicate:     true,
		}
		if o, err := u.orders.FindByID(ctx, p.OrderID); err == nil {
			out.OrderStatus = o.Status
		}
		u.log.Info("capture skipped", zap.String("paypal_order_id", paypalOrderID), zap.String("payment_status", string(p.Status)))
		return out, nil
	}

	captured, err := u.client.CaptureOrder(ctx, paypalOrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		u.log.Error("capture failed", zap.String("paypal_order_id", paypalOrderID), zap.Error(err))
		return PaypalResultOutput{}, providerError("paypal capture failed", err)
	}

	res, err := u.reconciler.Apply(ctx, Outcome{
		Provider:    model.PaymentProviderPayPal,
		TxnRef:      paypalOrderID,
		Success:     captured.Status == paypalStatusCompleted,
		FailureCode: "CAPTURE_" + captured.Status,
		Meta: map[string]interface{}{
			"capture_id":     captured.ID,
			"capture_status": captured.Status,
		},
	})
	if err != nil {
		return PaypalResultOutput{}, err
	}
	return toPaypalResult(paypalOrderID, res), nil
}

// cancel URL。ユーザーが支払いをやめた
func (u *PaypalUsecase) Cancel(ctx context.Context, paypalOrderID string) (PaypalResultOutput, error) {
	paypalOrderID = strings.TrimSpace(paypalOrderID)
	if paypalOrderID == "" {
		return PaypalResultOutput{}, validationError("token required")
	}
	res, err := u.reconciler.Apply(ctx, Outcome{
		Provider:    model.PaymentProviderPayPal,
		TxnRef:      paypalOrderID,
		Success:     false,
		FailureCode: "CANCELED_BY_USER",
	})
	if err != nil {
		return PaypalResultOutput{}, err
	}
	return toPaypalResult(paypalOrderID, res), nil
}

type paypalWebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// キャプチャイベントのresource.idはキャプチャIDなので関連注文IDを優先する
func (e paypalWebhookEvent) orderID() string {
	if id := e.Resource.SupplementaryData.RelatedIDs.OrderID; id != "" {
		return id
	}
	return e.Resource.ID
}

// req.Body は body と同じ内容に戻してから渡すこと
func (u *PaypalUsecase) HandleWebhook(ctx context.Context, req *http.Request, body []byte) (PaypalResultOutput, error) {
	if err := u.ensureConfig(); err != nil {
		return PaypalResultOutput{}, err
	}
	if u.cfg.WebhookID == "" {
		return PaypalResultOutput{}, configurationError("PAYPAL_WEBHOOK_ID_MISSING", "paypal webhook id is not configured")
	}

	verified, err := u.client.VerifyWebhookSignature(ctx, req, u.cfg.WebhookID)
	if err != nil {
		u.log.Warn("webhook verification call failed", zap.Error(err))
		return PaypalResultOutput{}, signatureError("invalid webhook signature").withCause(err)
	}
	if verified == nil || verified.VerificationStatus != paypalVerifySuccess {
		return PaypalResultOutput{}, signatureError("invalid webhook signature")
	}

	var ev paypalWebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return PaypalResultOutput{}, validationError("invalid webhook body")
	}

	ppOrderID := ev.orderID()
	if ev.EventType != paypalEventOrderApproved && ev.EventType != paypalEventCaptureComplete {
		u.log.Info("webhook ignored", zap.String("event_type", ev.EventType))
		return PaypalResultOutput{PaypalOrderID: ppOrderID, Ignored: true}, nil
	}
	if ppOrderID == "" {
		return PaypalResultOutput{}, validationError("paypal order id missing")
	}

	res, err := u.reconciler.Apply(ctx, Outcome{
		Provider: model.PaymentProviderPayPal,
		TxnRef:   ppOrderID,
		Success:  true,
		Meta: map[string]interface{}{
			"webhook_event_id":   ev.ID,
			"webhook_event_type": ev.EventType,
			"resource_id":        ev.Resource.ID,
		},
	})
	if err != nil {
		return PaypalResultOutput{}, err
	}
	return toPaypalResult(ppOrderID, res), nil
}

func toPaypalResult(ppOrderID string, res ReconcileResult) PaypalResultOutput {
	return PaypalResultOutput{
		OK:            res.PaymentStatus == model.PaymentStatusSuccess,
		PaypalOrderID: ppOrderID,
		OrderID:       res.OrderID,
		PaymentStatus: res.PaymentStatus,
		OrderStatus:   res.OrderStatus,
		Duplicate:     res.Duplicate,
	}
}
