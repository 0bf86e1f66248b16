package usecase

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"fatfood/internal/domain/model"
	repo "fatfood/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx       repo.TransactionManager
	audit    AuditLogger
	notifier Notifier
	clock    Clock
	log      *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, audit AuditLogger, notifier Notifier, clock Clock, log *zap.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, audit: audit, notifier: notifier, clock: clock, log: log}
}

type PlaceOrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type PlaceOrderInput struct {
	Items                []PlaceOrderItem
	Note                 string
	ExpectedDeliveryTime *time.Time
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderOutput struct {
	ID                   int64             `json:"id"`
	UserID               int64             `json:"user_id"`
	Status               string            `json:"status"`
	TotalAmount          decimal.Decimal   `json:"total_amount"`
	AssignedStaffID      *int64            `json:"assigned_staff_id,omitempty"`
	ExpectedDeliveryTime *time.Time        `json:"expected_delivery_time,omitempty"`
	Note                 string            `json:"note"`
	CreatedAt            time.Time         `json:"created_at"`
	Items                []OrderItemOutput `json:"items"`
}

type OrderDetailOutput struct {
	OrderOutput
	Payments []model.Payment `json:"payments"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

const maxNoteLength = 500

func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.Items) == 0 {
		return OrderOutput{}, validationError("items required")
	}
	note := strings.TrimSpace(in.Note)
	if len(note) > maxNoteLength {
		return OrderOutput{}, validationError("note too long")
	}

	//同じ商品はまとめる
	qty := map[int64]int64{}
	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return OrderOutput{}, validationError("invalid product_id")
		}
		if it.Quantity <= 0 {
			return OrderOutput{}, validationError("quantity must be >= 1")
		}
		if _, ok := qty[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out OrderOutput

	//注文処理はトランザクション
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		products, err := r.Products().FindActiveByIDs(ctx, ids)
		if err != nil {
			return dbError(err)
		}
		byID := make(map[int64]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}
		missing := []int64{}
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return notFoundError("product not found").withMeta(map[string]interface{}{
				"product_ids": missing,
			})
		}

		//価格はこの時点のスナップショット
		now := u.clock.Now()
		items := make([]model.OrderItem, 0, len(ids))
		total := decimal.Zero
		for _, id := range ids {
			p := byID[id]
			it := model.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Price:       p.Price,
				Quantity:    qty[id],
				CreatedAt:   now,
			}
			items = append(items, it)
			total = total.Add(it.LineTotal())
		}

		order := model.Order{
			UserID:               userID,
			Status:               model.OrderStatusPending,
			TotalAmount:          total,
			ExpectedDeliveryTime: in.ExpectedDeliveryTime,
			Note:                 note,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return dbError(err)
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return dbError(err)
		}

		order.ID = orderID
		out = toOrderOutput(order, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	actor := userID
	u.audit.LogAction(ctx, &actor, model.AuditActionCreateOrder, model.AuditResourceOrder, out.ID, map[string]interface{}{
		"total_amount": out.TotalAmount.String(),
		"item_count":   len(out.Items),
	})
	if err := u.notifier.NotifyRole(ctx, model.RoleStaff, EventOrderCreated, map[string]interface{}{
		"order_id": out.ID,
		"status":   out.Status,
	}); err != nil {
		u.log.Warn("notify staff failed", zap.Int64("order_id", out.ID), zap.Error(err))
	}

	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, status string, page int, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && status != "all" && !model.OrderStatus(status).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	out := OrderListOutput{Page: page, Limit: limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, status, page, limit)
		if err != nil {
			return dbError(err)
		}

		out.Total = total
		out.Items = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return dbError(err)
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, actor Actor, orderID int64) (OrderDetailOutput, error) {
	if actor.UserID <= 0 {
		return OrderDetailOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderDetailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderDetailOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("order not found")
		}
		if err != nil {
			return dbError(err)
		}
		if !actor.CanAccess(o) {
			//他人の注文は「存在しない扱い」にする
			return notFoundError("order not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		payments, err := r.Payments().ListByOrderID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}

		out = OrderDetailOutput{OrderOutput: toOrderOutput(o, items), Payments: payments}
		return nil
	})
	if err != nil {
		return OrderDetailOutput{}, err
	}
	return out, nil
}

// completed / canceled / refunded 以外ならcanceledにする
func (u *OrderUsecase) CancelOrder(ctx context.Context, actor Actor, orderID int64, reason string) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		out    OrderOutput
		before model.OrderStatus
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("order not found")
		}
		if err != nil {
			return dbError(err)
		}
		if !actor.CanAccess(o) {
			return notFoundError("order not found")
		}
		if !o.Status.CanCancel() {
			return invalidStateError(http.StatusConflict, "order cannot be canceled").withMeta(map[string]interface{}{
				"status": string(o.Status),
			})
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusCanceled); err != nil {
			return dbError(err)
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}

		before = o.Status
		o.Status = model.OrderStatusCanceled
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	actorID := actor.UserID
	u.audit.LogAction(ctx, &actorID, model.AuditActionCancelOrder, model.AuditResourceOrder, orderID, map[string]interface{}{
		"before": string(before),
		"after":  string(model.OrderStatusCanceled),
		"reason": strings.TrimSpace(reason),
	})

	payload := map[string]interface{}{"order_id": orderID, "status": out.Status}
	if err := u.notifier.NotifyRole(ctx, model.RoleStaff, EventOrderCanceled, payload); err != nil {
		u.log.Warn("notify staff failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	if out.UserID != actor.UserID {
		if err := u.notifier.NotifyUser(ctx, out.UserID, EventOrderCanceled, payload); err != nil {
			u.log.Warn("notify user failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Price:     it.Price,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}

	return OrderOutput{
		ID:                   o.ID,
		UserID:               o.UserID,
		Status:               string(o.Status),
		TotalAmount:          o.TotalAmount,
		AssignedStaffID:      o.AssignedStaffID,
		ExpectedDeliveryTime: o.ExpectedDeliveryTime,
		Note:                 o.Note,
		CreatedAt:            o.CreatedAt,
		Items:                outItems,
	}
}
