package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"fatfood/internal/config"
	"fatfood/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

const testStripeWebhookSecret = "whsec_test_123"

func testStripeConfig() config.StripeConfig {
	return config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testStripeWebhookSecret,
		Currency:      "vnd",
	}
}

func newStripeForTest(t *testing.T, cfg config.StripeConfig) (*memStore, *EffectsMock, *StripeIntentsMock, *StripeUsecase) {
	t.Helper()
	store, effects, rec := newReconcilerForTest(t)
	intents := &StripeIntentsMock{}
	return store, effects, intents, NewStripeUsecase(cfg, intents, memOrders{store}, memPayments{store}, rec, nopLog())
}

// Stripe-Signature: t=<unix>,v1=<hex(HMAC-SHA256("t.payload"))>
func stripeSignature(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventType string, intent string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":%q,"data":{"object":%s}}`, eventType, intent))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(100000), ToMinorUnits(decimal.RequireFromString("100000"), "vnd"))
	assert.Equal(t, int64(100000), ToMinorUnits(decimal.RequireFromString("100000"), "VND"))
	assert.Equal(t, int64(1234), ToMinorUnits(decimal.RequireFromString("12.34"), "usd"))
	assert.Equal(t, int64(1235), ToMinorUnits(decimal.RequireFromString("12.345"), "usd"))

	assert.True(t, decimal.RequireFromString("12.34").Equal(FromMinorUnits(1234, "usd")))
	assert.True(t, decimal.RequireFromString("100000").Equal(FromMinorUnits(100000, "vnd")))
}

// =====================
// CreateIntent
// =====================

func TestStripe_CreateIntent(t *testing.T) {
	store, _, intents, uc := newStripeForTest(t, testStripeConfig())
	o := store.seedOrder(1, "100000", model.OrderStatusPending)

	intents.On("New", mock.MatchedBy(func(p *stripe.PaymentIntentParams) bool {
		return *p.Amount == 100000 &&
			*p.Currency == "vnd" &&
			p.Metadata["order_id"] == fmt.Sprint(o.ID)
	})).Return(&stripe.PaymentIntent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret_abc",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil).Once()

	out, err := uc.CreateIntent(context.Background(), Actor{UserID: 1, Role: model.RoleCustomer}, o.ID)
	require.NoError(t, err)

	assert.Equal(t, "pi_1_secret_abc", out.ClientSecret)
	assert.Equal(t, "pi_1", out.PaymentIntentID)
	assert.Equal(t, int64(100000), out.Amount)

	p, err := memPayments{store}.FindByTxnRef(context.Background(), model.PaymentProviderStripe, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusInitiated, p.Status)
	assert.Equal(t, "VND", p.Currency)
	intents.AssertExpectations(t)
}

func TestStripe_CreateIntent_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		cfg := testStripeConfig()
		cfg.SecretKey = ""
		store, _, intents, uc := newStripeForTest(t, cfg)
		o := store.seedOrder(1, "100000", model.OrderStatusPending)

		_, err := uc.CreateIntent(context.Background(), Actor{UserID: 1, Role: model.RoleCustomer}, o.ID)
		assert.True(t, errors.Is(err, ErrConfiguration))
		intents.AssertNotCalled(t, "New", mock.Anything)
	})

	t.Run("stripe error", func(t *testing.T) {
		store, _, intents, uc := newStripeForTest(t, testStripeConfig())
		o := store.seedOrder(1, "100000", model.OrderStatusPending)
		intents.On("New", mock.Anything).Return(nil, errors.New("card_declined")).Once()

		_, err := uc.CreateIntent(context.Background(), Actor{UserID: 1, Role: model.RoleCustomer}, o.ID)
		assert.True(t, errors.Is(err, ErrProvider))
		assert.Len(t, store.payments, 0)
	})
}

// =====================
// Webhook
// =====================

func TestStripe_Webhook_Succeeded(t *testing.T) {
	store, effects, _, uc := newStripeForTest(t, testStripeConfig())
	o := store.seedOrder(1, "100000", model.OrderStatusPending)
	p := store.seedPayment(o.ID, model.PaymentProviderStripe, "pi_1", "100000", model.PaymentStatusInitiated)

	payload := stripeEvent("payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent","amount":100000,"currency":"vnd","status":"succeeded"}`)
	out, err := uc.HandleWebhook(context.Background(), payload, stripeSignature(payload, testStripeWebhookSecret))
	require.NoError(t, err)

	assert.True(t, out.Received)
	assert.Equal(t, model.PaymentStatusSuccess, out.PaymentStatus)
	assert.Equal(t, model.OrderStatusPaid, store.orders[o.ID].Status)
	assert.Equal(t, "evt_1", store.payments[p.ID].Meta["event_id"])

	again, err := uc.HandleWebhook(context.Background(), payload, stripeSignature(payload, testStripeWebhookSecret))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	effects.AssertNumberOfCalls(t, "OnOrderPaid", 1)
}

func TestStripe_Webhook_PaymentFailed(t *testing.T) {
	store, _, _, uc := newStripeForTest(t, testStripeConfig())
	o := store.seedOrder(1, "100000", model.OrderStatusPending)
	p := store.seedPayment(o.ID, model.PaymentProviderStripe, "pi_1", "100000", model.PaymentStatusInitiated)

	payload := stripeEvent("payment_intent.payment_failed",
		`{"id":"pi_1","object":"payment_intent","amount":100000,"currency":"vnd","status":"requires_payment_method","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}`)
	out, err := uc.HandleWebhook(context.Background(), payload, stripeSignature(payload, testStripeWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, model.PaymentStatusFailed, out.PaymentStatus)
	assert.Equal(t, "card_declined", store.payments[p.ID].Meta["reason"])
	assert.Equal(t, model.OrderStatusPending, store.orders[o.ID].Status)
}

func TestStripe_Webhook_AmountMismatch(t *testing.T) {
	store, _, _, uc := newStripeForTest(t, testStripeConfig())
	o := store.seedOrder(1, "100000", model.OrderStatusPending)
	p := store.seedPayment(o.ID, model.PaymentProviderStripe, "pi_1", "100000", model.PaymentStatusInitiated)

	payload := stripeEvent("payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent","amount":1000,"currency":"vnd","status":"succeeded"}`)
	_, err := uc.HandleWebhook(context.Background(), payload, stripeSignature(payload, testStripeWebhookSecret))
	assert.True(t, errors.Is(err, ErrAmountMismatch))
	assert.Equal(t, model.PaymentStatusInitiated, store.payments[p.ID].Status)
}

func TestStripe_Webhook_Rejections(t *testing.T) {
	payload := stripeEvent("payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent","amount":100000,"currency":"vnd"}`)

	t.Run("wrong secret leaves ledger untouched", func(t *testing.T) {
		store, effects, _, uc := newStripeForTest(t, testStripeConfig())
		o := store.seedOrder(1, "100000", model.OrderStatusPending)
		p := store.seedPayment(o.ID, model.PaymentProviderStripe, "pi_1", "100000", model.PaymentStatusInitiated)

		_, err := uc.HandleWebhook(context.Background(), payload, stripeSignature(payload, "whsec_other"))
		assert.True(t, errors.Is(err, ErrSignatureInvalid))
		assert.Equal(t, model.PaymentStatusInitiated, store.payments[p.ID].Status)
		assert.Empty(t, store.payments[p.ID].Meta)
		effects.AssertNotCalled(t, "OnPaymentRejected", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing header", func(t *testing.T) {
		_, _, _, uc := newStripeForTest(t, testStripeConfig())
		_, err := uc.HandleWebhook(context.Background(), payload, "")
		assert.True(t, errors.Is(err, ErrSignatureInvalid))
	})

	t.Run("secret not configured", func(t *testing.T) {
		cfg := testStripeConfig()
		cfg.WebhookSecret = ""
		_, _, _, uc := newStripeForTest(t, cfg)
		_, err := uc.HandleWebhook(context.Background(), payload, stripeSignature(payload, testStripeWebhookSecret))
		he, ok := AsHTTPError(err)
		require.True(t, ok)
		assert.Equal(t, "STRIPE_WEBHOOK_SECRET_MISSING", he.Code)
	})

	t.Run("unhandled event acknowledged", func(t *testing.T) {
		_, _, _, uc := newStripeForTest(t, testStripeConfig())
		other := stripeEvent("charge.refunded", `{"id":"ch_1","object":"charge"}`)
		out, err := uc.HandleWebhook(context.Background(), other, stripeSignature(other, testStripeWebhookSecret))
		require.NoError(t, err)
		assert.True(t, out.Received)
		assert.True(t, out.Ignored)
	})
}
