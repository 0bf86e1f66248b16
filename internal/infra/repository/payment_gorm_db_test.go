package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"fatfood/internal/domain/model"
	"fatfood/internal/infra/db"
	repo "fatfood/internal/repository"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TEST_DATABASE_DSN が無ければスキップ（CIではdocker composeのPostgresを向ける）
func openTestDB(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	gdb, err := db.Connect(dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb, dsn
}

func seedOrder(t *testing.T, gdb *gorm.DB, total string) int64 {
	t.Helper()
	id, err := NewOrderGormRepository(gdb).Create(context.Background(), model.Order{
		UserID:      9001,
		Status:      model.OrderStatusPending,
		TotalAmount: decimal.RequireFromString(total),
	})
	require.NoError(t, err)
	return id
}

func TestPaymentGorm_TxnRefIsUniquePerProvider(t *testing.T) {
	gdb, _ := openTestDB(t)
	ctx := context.Background()
	payments := NewPaymentGormRepository(gdb)
	orderID := seedOrder(t, gdb, "100000")
	ref := "it-" + uuid.NewString()

	p := model.Payment{
		OrderID:  orderID,
		Provider: model.PaymentProviderVNPay,
		Amount:   decimal.RequireFromString("100000"),
		Currency: "VND",
		TxnRef:   ref,
		Status:   model.PaymentStatusInitiated,
		Meta:     datatypes.JSONMap{"bank_code": "NCB"},
	}
	created, err := payments.Create(ctx, p)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = payments.Create(ctx, p)
	assert.Error(t, err)

	//別プロバイダなら同じtxn_refでもよい
	p.Provider = model.PaymentProviderStripe
	_, err = payments.Create(ctx, p)
	assert.NoError(t, err)

	got, err := payments.FindByTxnRef(ctx, model.PaymentProviderVNPay, ref)
	require.NoError(t, err)
	assert.Equal(t, "NCB", got.Meta["bank_code"])
	assert.True(t, decimal.RequireFromString("100000").Equal(got.Amount))

	_, err = payments.FindByTxnRef(ctx, model.PaymentProviderPayPal, ref)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestTxManagerGorm_RollbackAndCommit(t *testing.T) {
	gdb, _ := openTestDB(t)
	ctx := context.Background()
	tm := NewTxManagerGorm(gdb)
	orderID := seedOrder(t, gdb, "50000")
	ref := "it-" + uuid.NewString()

	created, err := NewPaymentGormRepository(gdb).Create(ctx, model.Payment{
		OrderID: orderID, Provider: model.PaymentProviderVNPay, Amount: decimal.RequireFromString("50000"),
		Currency: "VND", TxnRef: ref, Status: model.PaymentStatusInitiated,
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tm.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByTxnRefForUpdate(ctx, model.PaymentProviderVNPay, ref)
		if err != nil {
			return err
		}
		if err := r.Payments().UpdateStatus(ctx, p.ID, model.PaymentStatusSuccess, model.MergeMeta(p.Meta, map[string]interface{}{"x": 1})); err != nil {
			return err
		}
		if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusPaid); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	o, err := NewOrderGormRepository(gdb).FindByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, o.Status)

	err = tm.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Payments().UpdateStatus(ctx, created.ID, model.PaymentStatusSuccess, datatypes.JSONMap{"confirmed": true}); err != nil {
			return err
		}
		return r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusPaid)
	})
	require.NoError(t, err)

	other, err := NewPaymentGormRepository(gdb).HasOtherSuccess(ctx, orderID, created.ID+1_000_000)
	require.NoError(t, err)
	assert.True(t, other)
	self, err := NewPaymentGormRepository(gdb).HasOtherSuccess(ctx, orderID, created.ID)
	require.NoError(t, err)
	assert.False(t, self)

	//successになった行はfailedに戻せない
	err = NewPaymentGormRepository(gdb).UpdateStatus(ctx, created.ID, model.PaymentStatusFailed, datatypes.JSONMap{"reason": "INVALID_SIGNATURE"})
	assert.ErrorIs(t, err, repo.ErrPaymentNotInitiated)
	p, err := NewPaymentGormRepository(gdb).FindByTxnRef(ctx, model.PaymentProviderVNPay, ref)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSuccess, p.Status)

	err = NewPaymentGormRepository(gdb).UpdateStatus(ctx, created.ID+1_000_000, model.PaymentStatusFailed, nil)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestOrderGorm_AssignStaffIfEmpty(t *testing.T) {
	gdb, _ := openTestDB(t)
	ctx := context.Background()
	orders := NewOrderGormRepository(gdb)
	orderID := seedOrder(t, gdb, "10")

	ok, err := orders.AssignStaffIfEmpty(ctx, orderID, 501)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = orders.AssignStaffIfEmpty(ctx, orderID, 502)
	require.NoError(t, err)
	assert.False(t, ok)

	o, err := orders.FindByID(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, o.AssignedStaffID)
	assert.Equal(t, int64(501), *o.AssignedStaffID)
}

// audit_logsは生SQLでも確認する
func TestAuditLogGorm_RowIsWritten(t *testing.T) {
	gdb, dsn := openTestDB(t)
	ctx := context.Background()
	orderID := seedOrder(t, gdb, "10")

	require.NoError(t, NewAuditLogGormRepository(gdb).Create(ctx, model.AuditLog{
		Action:       model.AuditActionPaymentConfirmed,
		ResourceType: model.AuditResourcePayment,
		ResourceID:   orderID,
		Metadata:     datatypes.JSONMap{"provider": "vnpay"},
	}))

	sqldb, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer func() { _ = sqldb.Close() }()

	var action, provider string
	err = sqldb.QueryRowContext(ctx,
		`SELECT action, metadata->>'provider' FROM audit_logs WHERE resource_id = $1 AND resource_type = $2 ORDER BY id DESC LIMIT 1`,
		orderID, string(model.AuditResourcePayment),
	).Scan(&action, &provider)
	require.NoError(t, err)
	assert.Equal(t, "PAYMENT_CONFIRMED", action)
	assert.Equal(t, "vnpay", provider)
}
