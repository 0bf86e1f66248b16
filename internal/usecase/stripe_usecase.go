package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"fatfood/internal/config"
	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const (
	stripeEventSucceeded = "payment_intent.succeeded"
	stripeEventFailed    = "payment_intent.payment_failed"
)

// 小数点のない通貨（最小単位＝1）
var zeroDecimalCurrencies = map[string]bool{
	"vnd": true,
	"jpy": true,
	"krw": true,
}

// client.API の PaymentIntents が満たす
type StripeIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	d := decimal.NewFromInt(amount)
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return d
	}
	return d.Div(hundred)
}

type StripeUsecase struct {
	cfg        config.StripeConfig
	intents    StripeIntents
	orders     repo.OrderRepository
	payments   repo.PaymentRepository
	reconciler *Reconciler
	log        *zap.Logger
}

func NewStripeUsecase(
	cfg config.StripeConfig,
	intents StripeIntents,
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	reconciler *Reconciler,
	log *zap.Logger,
) *StripeUsecase {
	return &StripeUsecase{
		cfg:        cfg,
		intents:    intents,
		orders:     orders,
		payments:   payments,
		reconciler: reconciler,
		log:        log.With(zap.String("provider", string(model.PaymentProviderStripe))),
	}
}

type StripeCreateOutput struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	PaymentID       int64  `json:"payment_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

type StripeWebhookOutput struct {
	Received      bool                `json:"received"`
	EventType     string              `json:"event_type"`
	Ignored       bool                `json:"ignored,omitempty"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	OrderStatus   model.OrderStatus   `json:"order_status,omitempty"`
	Duplicate     bool                `json:"duplicate,omitempty"`
}

func (u *StripeUsecase) CreateIntent(ctx context.Context, actor Actor, orderID int64) (StripeCreateOutput, error) {
	if !u.cfg.Ready() || u.intents == nil {
		return StripeCreateOutput{}, configurationError("STRIPE_CONFIG_MISSING", "stripe is not configured")
	}
	o, err := loadPayableOrder(ctx, u.orders, actor, orderID)
	if err != nil {
		return StripeCreateOutput{}, err
	}

	currency := u.cfg.Currency
	amount := ToMinorUnits(o.TotalAmount, currency)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", strconv.FormatInt(o.ID, 10))
	params.Context = ctx

	pi, err := u.intents.New(params)
	if err != nil {
		u.log.Error("create intent failed", zap.Int64("order_id", o.ID), zap.Error(err))
		return StripeCreateOutput{}, providerError("stripe create intent failed", err)
	}

	p, err := u.payments.Create(ctx, model.Payment{
		OrderID:  o.ID,
		Provider: model.PaymentProviderStripe,
		Amount:   o.TotalAmount,
		Currency: strings.ToUpper(currency),
		TxnRef:   pi.ID,
		Status:   model.PaymentStatusInitiated,
		Meta: model.MergeMeta(nil, map[string]interface{}{
			"intent_status": string(pi.Status),
			"amount_minor":  amount,
		}),
	})
	if err != nil {
		return StripeCreateOutput{}, dbError(err)
	}

	return StripeCreateOutput{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
		PaymentID:       p.ID,
		Amount:          amount,
		Currency:        currency,
	}, nil
}

type stripeIntentObject struct {
	ID               string `json:"id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// payloadは受け取ったままの生body
func (u *StripeUsecase) HandleWebhook(ctx context.Context, payload []byte, signature string) (StripeWebhookOutput, error) {
	if u.cfg.WebhookSecret == "" {
		return StripeWebhookOutput{}, configurationError("STRIPE_WEBHOOK_SECRET_MISSING", "stripe webhook secret is not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, u.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		u.log.Warn("webhook signature rejected", zap.Error(err))
		return StripeWebhookOutput{}, signatureError("invalid stripe signature").withCause(err)
	}

	eventType := string(event.Type)
	out := StripeWebhookOutput{Received: true, EventType: eventType}
	if eventType != stripeEventSucceeded && eventType != stripeEventFailed {
		out.Ignored = true
		return out, nil
	}
	if event.Data == nil {
		return StripeWebhookOutput{}, validationError("event data missing")
	}

	var pi stripeIntentObject
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil || pi.ID == "" {
		return StripeWebhookOutput{}, validationError("invalid payment intent object")
	}

	outcome := Outcome{
		Provider: model.PaymentProviderStripe,
		TxnRef:   pi.ID,
		Success:  eventType == stripeEventSucceeded,
		Meta: map[string]interface{}{
			"event_id":      event.ID,
			"event_type":    eventType,
			"intent_status": pi.Status,
		},
	}
	if outcome.Success && pi.Currency != "" {
		claimed := FromMinorUnits(pi.Amount, pi.Currency)
		outcome.ClaimedAmount = &claimed
	}
	if !outcome.Success {
		outcome.FailureCode = "PAYMENT_FAILED"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Code != "" {
			outcome.FailureCode = pi.LastPaymentError.Code
			outcome.Meta["failure_message"] = pi.LastPaymentError.Message
		}
	}

	res, err := u.reconciler.Apply(ctx, outcome)
	if err != nil {
		return StripeWebhookOutput{}, err
	}
	out.PaymentStatus = res.PaymentStatus
	out.OrderStatus = res.OrderStatus
	out.Duplicate = res.Duplicate
	return out, nil
}
