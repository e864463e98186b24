package service

import (
	"context"
	"time"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// UserStore defines the user data access needed by services.
type UserStore interface {
	GetByExternalID(ctx context.Context, externalUserID string) (*model.User, error)
	GetByID(ctx context.Context, q database.TxQuerier, userID int64) (*model.User, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, externalUserID string) (*model.User, error)
	GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, userID int64) (*model.User, error)
	UpdatePoint(ctx context.Context, tx database.TxQuerier, userID int64, point int64) error
}

// ProductStore defines the product data access needed by services.
type ProductStore interface {
	GetForUpdate(ctx context.Context, tx database.TxQuerier, ids []int64) (map[int64]*model.Product, error)
	UpdateStock(ctx context.Context, tx database.TxQuerier, productID int64, stock int) error
}

// OrderStore defines the order data access needed by services.
type OrderStore interface {
	Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error
	GetByID(ctx context.Context, q database.TxQuerier, id int64) (*model.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Order, error)
	AdvanceStatus(ctx context.Context, tx database.TxQuerier, orderID int64, to string) (bool, error)
}

// PaymentStore defines the payment data access needed by services.
type PaymentStore interface {
	Insert(ctx context.Context, tx database.TxQuerier, p *model.Payment) error
	GetByOrderID(ctx context.Context, q database.TxQuerier, orderID int64) (*model.Payment, error)
	GetByOrderIDForUpdate(ctx context.Context, tx database.TxQuerier, orderID int64) (*model.Payment, error)
	MarkSuccess(ctx context.Context, tx database.TxQuerier, paymentID int64, transactionKey string, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx database.TxQuerier, paymentID int64, reason string, completedAt time.Time) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error)
}

// CouponStore defines the coupon data access needed by services.
type CouponStore interface {
	GetCoupon(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error)
	GetUserCoupon(ctx context.Context, q database.TxQuerier, userID int64, code string) (*model.UserCoupon, error)
	MarkUsed(ctx context.Context, tx database.TxQuerier, userCouponID int64, version int64) error
}

// OutboxStore defines the outbox data access needed by services.
type OutboxStore interface {
	Append(ctx context.Context, tx database.TxQuerier, ev *model.OutboxEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
}
