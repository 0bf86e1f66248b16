package usecase

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// =====================
// in-memory store（WithinTxはエラーで巻き戻す）
// =====================

type memStore struct {
	txMu sync.Mutex

	nextID    int64
	orders    map[int64]model.Order
	items     map[int64][]model.OrderItem
	payments  map[int64]model.Payment
	products  map[int64]model.Product
	carts     map[int64]model.Cart
	cartItems map[int64][]model.CartItem
	shifts    []model.StaffShift
	audits    []model.AuditLog

	failPaymentUpdate error
}

func newMemStore() *memStore {
	return &memStore{
		nextID:    100,
		orders:    map[int64]model.Order{},
		items:     map[int64][]model.OrderItem{},
		payments:  map[int64]model.Payment{},
		products:  map[int64]model.Product{},
		carts:     map[int64]model.Cart{},
		cartItems: map[int64][]model.CartItem{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	nextID   int64
	orders   map[int64]model.Order
	items    map[int64][]model.OrderItem
	payments map[int64]model.Payment
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		nextID:   s.nextID,
		orders:   map[int64]model.Order{},
		items:    map[int64][]model.OrderItem{},
		payments: map[int64]model.Payment{},
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.items {
		snap.items[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.payments {
		v.Meta = model.MergeMeta(v.Meta, nil)
		snap.payments[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.nextID = snap.nextID
	s.orders = snap.orders
	s.items = snap.items
	s.payments = snap.payments
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(memTxRepos{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memTxRepos struct{ s *memStore }

func (r memTxRepos) Orders() repo.OrderRepository           { return memOrders{r.s} }
func (r memTxRepos) OrderItems() repo.OrderItemRepository   { return memOrderItems{r.s} }
func (r memTxRepos) Payments() repo.PaymentRepository       { return memPayments{r.s} }
func (r memTxRepos) Products() repo.ProductRepository       { return memProducts{r.s} }
func (r memTxRepos) Carts() repo.CartRepository             { return memCarts{r.s} }
func (r memTxRepos) StaffShifts() repo.StaffShiftRepository { return memShifts{r.s} }

// ---- orders

type memOrders struct{ s *memStore }

func (r memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, id int64) (model.Order, error) {
	return r.FindByID(ctx, id)
}

func (r memOrders) ListByUserID(ctx context.Context, userID int64, status string, page int, limit int) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range r.s.orders {
		if o.UserID != userID {
			continue
		}
		if status != "" && status != "all" && string(o.Status) != status {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	o.ID = r.s.id()
	r.s.orders[o.ID] = o
	return o.ID, nil
}

func (r memOrders) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	r.s.orders[id] = o
	return nil
}

func (r memOrders) AssignStaffIfEmpty(ctx context.Context, orderID int64, staffID int64) (bool, error) {
	o, ok := r.s.orders[orderID]
	if !ok || o.AssignedStaffID != nil {
		return false, nil
	}
	o.AssignedStaffID = &staffID
	r.s.orders[orderID] = o
	return true, nil
}

// ---- order items

type memOrderItems struct{ s *memStore }

func (r memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = r.s.id()
		it.OrderID = orderID
		r.s.items[orderID] = append(r.s.items[orderID], it)
	}
	return nil
}

func (r memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, r.s.items[orderID]...), nil
}

// ---- payments

type memPayments struct{ s *memStore }

func (r memPayments) Create(ctx context.Context, p model.Payment) (model.Payment, error) {
	for _, ex := range r.s.payments {
		if ex.Provider == p.Provider && ex.TxnRef == p.TxnRef {
			return model.Payment{}, errDuplicateKey
		}
	}
	p.ID = r.s.id()
	r.s.payments[p.ID] = p
	return p, nil
}

func (r memPayments) FindByTxnRef(ctx context.Context, provider model.PaymentProvider, txnRef string) (model.Payment, error) {
	for _, p := range r.s.payments {
		if p.Provider == provider && p.TxnRef == txnRef {
			return p, nil
		}
	}
	return model.Payment{}, repo.ErrNotFound
}

func (r memPayments) FindByTxnRefForUpdate(ctx context.Context, provider model.PaymentProvider, txnRef string) (model.Payment, error) {
	return r.FindByTxnRef(ctx, provider, txnRef)
}

func (r memPayments) FindLatestByOrder(ctx context.Context, orderID int64, provider model.PaymentProvider) (model.Payment, error) {
	var latest *model.Payment
	for _, p := range r.s.payments {
		p := p
		if p.OrderID != orderID || p.Provider != provider {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			latest = &p
		}
	}
	if latest == nil {
		return model.Payment{}, repo.ErrNotFound
	}
	return *latest, nil
}

func (r memPayments) ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error) {
	out := []model.Payment{}
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPayments) HasOtherSuccess(ctx context.Context, orderID int64, excludeID int64) (bool, error) {
	for _, p := range r.s.payments {
		if p.OrderID == orderID && p.ID != excludeID && p.Status == model.PaymentStatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (r memPayments) UpdateStatus(ctx context.Context, id int64, status model.PaymentStatus, meta datatypes.JSONMap) error {
	if r.s.failPaymentUpdate != nil {
		return r.s.failPaymentUpdate
	}
	p, ok := r.s.payments[id]
	if !ok {
		return repo.ErrNotFound
	}
	if p.Status != model.PaymentStatusInitiated {
		return repo.ErrPaymentNotInitiated
	}
	p.Status = status
	p.Meta = meta
	r.s.payments[id] = p
	return nil
}

func (r memPayments) UpdateMeta(ctx context.Context, id int64, meta datatypes.JSONMap) error {
	p, ok := r.s.payments[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.Meta = meta
	r.s.payments[id] = p
	return nil
}

// ---- products

type memProducts struct{ s *memStore }

func (r memProducts) FindActiveByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	out := []model.Product{}
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// ---- carts

type memCarts struct{ s *memStore }

func (r memCarts) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	for _, c := range r.s.carts {
		if c.UserID == userID && c.Status == model.CartStatusActive {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r memCarts) ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	return append([]model.CartItem{}, r.s.cartItems[cartID]...), nil
}

func (r memCarts) Clear(ctx context.Context, cartID int64) error {
	delete(r.s.cartItems, cartID)
	return nil
}

// ---- shifts

type memShifts struct{ s *memStore }

func (r memShifts) FindOnDuty(ctx context.Context, at time.Time) (model.StaffShift, error) {
	day := at.Format("2006-01-02")
	clock := at.Format("15:04:05")
	var found []model.StaffShift
	for _, sh := range r.s.shifts {
		if sh.ShiftDate == day && sh.Status == model.StaffShiftScheduled && sh.StartTime <= clock && sh.EndTime >= clock {
			found = append(found, sh)
		}
	}
	if len(found) == 0 {
		return model.StaffShift{}, repo.ErrNotFound
	}
	sort.Slice(found, func(i, j int) bool { return found[i].StartTime < found[j].StartTime })
	return found[0], nil
}

// ---- audit

type memAudit struct{ s *memStore }

func (r memAudit) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = r.s.id()
	r.s.audits = append(r.s.audits, log)
	return nil
}

type dupKeyError struct{}

func (dupKeyError) Error() string { return "duplicate key value violates unique constraint" }

var errDuplicateKey error = dupKeyError{}

// ---- seed helpers

func (s *memStore) seedOrder(userID int64, total string, status model.OrderStatus) model.Order {
	o := model.Order{
		ID:          s.id(),
		UserID:      userID,
		Status:      status,
		TotalAmount: decimal.RequireFromString(total),
	}
	s.orders[o.ID] = o
	return o
}

func (s *memStore) seedPayment(orderID int64, provider model.PaymentProvider, txnRef string, amount string, status model.PaymentStatus) model.Payment {
	p := model.Payment{
		ID:       s.id(),
		OrderID:  orderID,
		Provider: provider,
		Amount:   decimal.RequireFromString(amount),
		Currency: "VND",
		TxnRef:   txnRef,
		Status:   status,
		Meta:     datatypes.JSONMap{},
	}
	s.payments[p.ID] = p
	return p
}

// =====================
// fixed clock / ids
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return "uuid-" + strconv.Itoa(g.n)
}

var testNow = time.Date(2025, 1, 1, 3, 30, 0, 0, time.UTC) // 10:30 ICT

func nopLog() *zap.Logger { return zap.NewNop() }

// =====================
// testify mocks
// =====================

type EffectsMock struct{ mock.Mock }

func (m *EffectsMock) OnOrderPaid(ctx context.Context, order model.Order, payment model.Payment) {
	m.Called(ctx, order, payment)
}

func (m *EffectsMock) OnPaymentRejected(ctx context.Context, payment model.Payment, reason string) {
	m.Called(ctx, payment, reason)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) NotifyUser(ctx context.Context, userID int64, event string, payload interface{}) error {
	args := m.Called(ctx, userID, event, payload)
	return args.Error(0)
}

func (m *NotifierMock) NotifyRole(ctx context.Context, role model.Role, event string, payload interface{}) error {
	args := m.Called(ctx, role, event, payload)
	return args.Error(0)
}

type AuditLoggerMock struct{ mock.Mock }

func (m *AuditLoggerMock) LogAction(ctx context.Context, actorUserID *int64, action model.AuditAction, resource model.AuditResourceType, resourceID int64, metadata map[string]interface{}) {
	m.Called(ctx, actorUserID, action, resource, resourceID, metadata)
}

type StaffAssignerMock struct{ mock.Mock }

func (m *StaffAssignerMock) AssignOrderToOnDutyStaff(ctx context.Context, order model.Order) (bool, error) {
	args := m.Called(ctx, order)
	return args.Bool(0), args.Error(1)
}

type CartClearerMock struct{ mock.Mock }

func (m *CartClearerMock) ClearCart(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type PaypalAPIMock struct{ mock.Mock }

func (m *PaypalAPIMock) CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error) {
	args := m.Called(ctx, intent, purchaseUnits, payer, appContext)
	o, _ := args.Get(0).(*paypal.Order)
	return o, args.Error(1)
}

func (m *PaypalAPIMock) CaptureOrder(ctx context.Context, orderID string, req paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error) {
	args := m.Called(ctx, orderID, req)
	r, _ := args.Get(0).(*paypal.CaptureOrderResponse)
	return r, args.Error(1)
}

func (m *PaypalAPIMock) VerifyWebhookSignature(ctx context.Context, httpReq *http.Request, webhookID string) (*paypal.VerifyWebhookResponse, error) {
	args := m.Called(ctx, httpReq, webhookID)
	r, _ := args.Get(0).(*paypal.VerifyWebhookResponse)
	return r, args.Error(1)
}

type StripeIntentsMock struct{ mock.Mock }

func (m *StripeIntentsMock) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(params)
	pi, _ := args.Get(0).(*stripe.PaymentIntent)
	return pi, args.Error(1)
}
