package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/scalable-order-system/internal/gateway"
	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error

	committed  bool
	rolledBack bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	m.rolledBack = true
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockPool is a mock implementation of database.Pool. Begin hands out
// mockTx values; direct query methods are stubs because all data access in
// these tests goes through mocked stores.
type mockPool struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

// mockUserStore is a mock implementation of UserStore.
type mockUserStore struct {
	getByExternalIDFn  func(ctx context.Context, externalUserID string) (*model.User, error)
	getByIDFn          func(ctx context.Context, q database.TxQuerier, userID int64) (*model.User, error)
	getForUpdateFn     func(ctx context.Context, tx database.TxQuerier, externalUserID string) (*model.User, error)
	getByIDForUpdateFn func(ctx context.Context, tx database.TxQuerier, userID int64) (*model.User, error)
	updatePointFn      func(ctx context.Context, tx database.TxQuerier, userID int64, point int64) error
}

func (m *mockUserStore) GetByExternalID(ctx context.Context, externalUserID string) (*model.User, error) {
	if m.getByExternalIDFn != nil {
		return m.getByExternalIDFn(ctx, externalUserID)
	}
	return nil, ErrUserNotFound
}

func (m *mockUserStore) GetByID(ctx context.Context, q database.TxQuerier, userID int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, q, userID)
	}
	return nil, ErrUserNotFound
}

func (m *mockUserStore) GetForUpdate(ctx context.Context, tx database.TxQuerier, externalUserID string) (*model.User, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, externalUserID)
	}
	return nil, ErrUserNotFound
}

func (m *mockUserStore) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, userID int64) (*model.User, error) {
	if m.getByIDForUpdateFn != nil {
		return m.getByIDForUpdateFn(ctx, tx, userID)
	}
	return nil, ErrUserNotFound
}

func (m *mockUserStore) UpdatePoint(ctx context.Context, tx database.TxQuerier, userID int64, point int64) error {
	if m.updatePointFn != nil {
		return m.updatePointFn(ctx, tx, userID, point)
	}
	return nil
}

// mockProductStore is a mock implementation of ProductStore.
type mockProductStore struct {
	getForUpdateFn func(ctx context.Context, tx database.TxQuerier, ids []int64) (map[int64]*model.Product, error)
	updateStockFn  func(ctx context.Context, tx database.TxQuerier, productID int64, stock int) error
}

func (m *mockProductStore) GetForUpdate(ctx context.Context, tx database.TxQuerier, ids []int64) (map[int64]*model.Product, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, ids)
	}
	return nil, ErrProductNotFound
}

func (m *mockProductStore) UpdateStock(ctx context.Context, tx database.TxQuerier, productID int64, stock int) error {
	if m.updateStockFn != nil {
		return m.updateStockFn(ctx, tx, productID, stock)
	}
	return nil
}

// mockOrderStore is a mock implementation of OrderStore.
type mockOrderStore struct {
	insertFn        func(ctx context.Context, tx database.TxQuerier, o *model.Order) error
	getByIDFn       func(ctx context.Context, q database.TxQuerier, id int64) (*model.Order, error)
	listByUserFn    func(ctx context.Context, userID int64) ([]*model.Order, error)
	advanceStatusFn func(ctx context.Context, tx database.TxQuerier, orderID int64, to string) (bool, error)
}

func (m *mockOrderStore) Insert(ctx context.Context, tx database.TxQuerier, o *model.Order) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, o)
	}
	o.ID = 1
	return nil
}

func (m *mockOrderStore) GetByID(ctx context.Context, q database.TxQuerier, id int64) (*model.Order, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, q, id)
	}
	return nil, ErrOrderNotFound
}

func (m *mockOrderStore) ListByUser(ctx context.Context, userID int64) ([]*model.Order, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return []*model.Order{}, nil
}

func (m *mockOrderStore) AdvanceStatus(ctx context.Context, tx database.TxQuerier, orderID int64, to string) (bool, error) {
	if m.advanceStatusFn != nil {
		return m.advanceStatusFn(ctx, tx, orderID, to)
	}
	return true, nil
}

// mockPaymentStore is a mock implementation of PaymentStore.
type mockPaymentStore struct {
	insertFn                func(ctx context.Context, tx database.TxQuerier, p *model.Payment) error
	getByOrderIDFn          func(ctx context.Context, q database.TxQuerier, orderID int64) (*model.Payment, error)
	getByOrderIDForUpdateFn func(ctx context.Context, tx database.TxQuerier, orderID int64) (*model.Payment, error)
	markSuccessFn           func(ctx context.Context, tx database.TxQuerier, paymentID int64, transactionKey string, completedAt time.Time) (bool, error)
	markFailedFn            func(ctx context.Context, tx database.TxQuerier, paymentID int64, reason string, completedAt time.Time) (bool, error)
	listPendingBeforeFn     func(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error)
}

func (m *mockPaymentStore) Insert(ctx context.Context, tx database.TxQuerier, p *model.Payment) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, p)
	}
	p.ID = 1
	return nil
}

func (m *mockPaymentStore) GetByOrderID(ctx context.Context, q database.TxQuerier, orderID int64) (*model.Payment, error) {
	if m.getByOrderIDFn != nil {
		return m.getByOrderIDFn(ctx, q, orderID)
	}
	return nil, ErrPaymentNotFound
}

func (m *mockPaymentStore) GetByOrderIDForUpdate(ctx context.Context, tx database.TxQuerier, orderID int64) (*model.Payment, error) {
	if m.getByOrderIDForUpdateFn != nil {
		return m.getByOrderIDForUpdateFn(ctx, tx, orderID)
	}
	return m.GetByOrderID(ctx, tx, orderID)
}

func (m *mockPaymentStore) MarkSuccess(ctx context.Context, tx database.TxQuerier, paymentID int64, transactionKey string, completedAt time.Time) (bool, error) {
	if m.markSuccessFn != nil {
		return m.markSuccessFn(ctx, tx, paymentID, transactionKey, completedAt)
	}
	return true, nil
}

func (m *mockPaymentStore) MarkFailed(ctx context.Context, tx database.TxQuerier, paymentID int64, reason string, completedAt time.Time) (bool, error) {
	if m.markFailedFn != nil {
		return m.markFailedFn(ctx, tx, paymentID, reason, completedAt)
	}
	return true, nil
}

func (m *mockPaymentStore) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error) {
	if m.listPendingBeforeFn != nil {
		return m.listPendingBeforeFn(ctx, cutoff, limit)
	}
	return []*model.Payment{}, nil
}

// mockCouponStore is a mock implementation of CouponStore.
type mockCouponStore struct {
	getCouponFn     func(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error)
	getUserCouponFn func(ctx context.Context, q database.TxQuerier, userID int64, code string) (*model.UserCoupon, error)
	markUsedFn      func(ctx context.Context, tx database.TxQuerier, userCouponID int64, version int64) error
}

func (m *mockCouponStore) GetCoupon(ctx context.Context, q database.TxQuerier, code string) (*model.Coupon, error) {
	if m.getCouponFn != nil {
		return m.getCouponFn(ctx, q, code)
	}
	return nil, ErrCouponNotFound
}

func (m *mockCouponStore) GetUserCoupon(ctx context.Context, q database.TxQuerier, userID int64, code string) (*model.UserCoupon, error) {
	if m.getUserCouponFn != nil {
		return m.getUserCouponFn(ctx, q, userID, code)
	}
	return nil, ErrCouponNotFound
}

func (m *mockCouponStore) MarkUsed(ctx context.Context, tx database.TxQuerier, userCouponID int64, version int64) error {
	if m.markUsedFn != nil {
		return m.markUsedFn(ctx, tx, userCouponID, version)
	}
	return nil
}

// mockOutboxStore is a mock implementation of OutboxStore. Appended events
// are recorded in order for assertion.
type mockOutboxStore struct {
	appendFn          func(ctx context.Context, tx database.TxQuerier, ev *model.OutboxEvent) error
	listUnpublishedFn func(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	markPublishedFn   func(ctx context.Context, id int64, at time.Time) error

	appended []*model.OutboxEvent
}

func (m *mockOutboxStore) Append(ctx context.Context, tx database.TxQuerier, ev *model.OutboxEvent) error {
	if m.appendFn != nil {
		return m.appendFn(ctx, tx, ev)
	}
	ev.ID = int64(len(m.appended) + 1)
	m.appended = append(m.appended, ev)
	return nil
}

func (m *mockOutboxStore) ListUnpublished(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if m.listUnpublishedFn != nil {
		return m.listUnpublishedFn(ctx, limit)
	}
	return []*model.OutboxEvent{}, nil
}

func (m *mockOutboxStore) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	if m.markPublishedFn != nil {
		return m.markPublishedFn(ctx, id, at)
	}
	return nil
}

// eventTypes extracts the appended event types in order.
func (m *mockOutboxStore) eventTypes() []string {
	types := make([]string, 0, len(m.appended))
	for _, ev := range m.appended {
		types = append(types, ev.EventType)
	}
	return types
}

// mockPGClient is a mock implementation of gateway.Client.
type mockPGClient struct {
	requestPaymentFn         func(ctx context.Context, cmd gateway.PaymentCommand) (*gateway.RequestResult, error)
	getStatusByOrderFn       func(ctx context.Context, externalUserID, paddedOrderID string) (gateway.Status, error)
	getStatusByTransactionFn func(ctx context.Context, externalUserID, transactionKey string) (*gateway.TransactionDetail, error)
}

func (m *mockPGClient) RequestPayment(ctx context.Context, cmd gateway.PaymentCommand) (*gateway.RequestResult, error) {
	if m.requestPaymentFn != nil {
		return m.requestPaymentFn(ctx, cmd)
	}
	return &gateway.RequestResult{Success: true, TransactionKey: "tx_mock"}, nil
}

func (m *mockPGClient) GetStatusByOrder(ctx context.Context, externalUserID, paddedOrderID string) (gateway.Status, error) {
	if m.getStatusByOrderFn != nil {
		return m.getStatusByOrderFn(ctx, externalUserID, paddedOrderID)
	}
	return gateway.StatusPending, nil
}

func (m *mockPGClient) GetStatusByTransaction(ctx context.Context, externalUserID, transactionKey string) (*gateway.TransactionDetail, error) {
	if m.getStatusByTransactionFn != nil {
		return m.getStatusByTransactionFn(ctx, externalUserID, transactionKey)
	}
	return nil, gateway.ErrNoRecord
}
