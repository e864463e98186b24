package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

func TestReservation_DecreaseStock(t *testing.T) {
	var savedStock int
	products := &mockProductStore{
		updateStockFn: func(ctx context.Context, tx database.TxQuerier, productID int64, stock int) error {
			savedStock = stock
			return nil
		},
	}
	r := NewReservation(&mockUserStore{}, products)
	p := &model.Product{ID: 10, Stock: 5}

	err := r.DecreaseStock(context.Background(), &mockTx{}, p, 3)

	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, 2, savedStock)
}

func TestReservation_DecreaseStock_Insufficient(t *testing.T) {
	saved := false
	products := &mockProductStore{
		updateStockFn: func(ctx context.Context, tx database.TxQuerier, productID int64, stock int) error {
			saved = true
			return nil
		},
	}
	r := NewReservation(&mockUserStore{}, products)
	p := &model.Product{ID: 10, Stock: 2}

	err := r.DecreaseStock(context.Background(), &mockTx{}, p, 3)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 2, p.Stock, "stock untouched on rejection")
	assert.False(t, saved)
}

func TestReservation_DecreaseStock_ExactDrain(t *testing.T) {
	r := NewReservation(&mockUserStore{}, &mockProductStore{})
	p := &model.Product{ID: 10, Stock: 3}

	err := r.DecreaseStock(context.Background(), &mockTx{}, p, 3)

	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock, "stock may reach exactly zero")
}

func TestReservation_DecreaseStock_InvalidQuantity(t *testing.T) {
	r := NewReservation(&mockUserStore{}, &mockProductStore{})
	p := &model.Product{ID: 10, Stock: 5}

	for _, qty := range []int{0, -1} {
		err := r.DecreaseStock(context.Background(), &mockTx{}, p, qty)
		require.Error(t, err, "quantity %d", qty)
		assert.True(t, errors.Is(err, ErrInvalidQuantity))
	}
}

func TestReservation_RestoreStock(t *testing.T) {
	r := NewReservation(&mockUserStore{}, &mockProductStore{})
	p := &model.Product{ID: 10, Stock: 2}

	err := r.RestoreStock(context.Background(), &mockTx{}, p, 3)

	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestReservation_DeductPoint(t *testing.T) {
	var savedPoint int64
	users := &mockUserStore{
		updatePointFn: func(ctx context.Context, tx database.TxQuerier, userID int64, point int64) error {
			savedPoint = point
			return nil
		},
	}
	r := NewReservation(users, &mockProductStore{})
	u := &model.User{ID: 1, Point: 5000}

	err := r.DeductPoint(context.Background(), &mockTx{}, u, 2000)

	require.NoError(t, err)
	assert.Equal(t, int64(3000), u.Point)
	assert.Equal(t, int64(3000), savedPoint)
}

func TestReservation_DeductPoint_Insufficient(t *testing.T) {
	r := NewReservation(&mockUserStore{}, &mockProductStore{})
	u := &model.User{ID: 1, Point: 100}

	err := r.DeductPoint(context.Background(), &mockTx{}, u, 200)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientPoint))
	assert.Equal(t, int64(100), u.Point)
}

func TestReservation_DeductPoint_ZeroIsFine(t *testing.T) {
	r := NewReservation(&mockUserStore{}, &mockProductStore{})
	u := &model.User{ID: 1, Point: 100}

	err := r.DeductPoint(context.Background(), &mockTx{}, u, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(100), u.Point)
}

func TestReservation_ReceivePoint(t *testing.T) {
	r := NewReservation(&mockUserStore{}, &mockProductStore{})
	u := &model.User{ID: 1, Point: 100}

	err := r.ReceivePoint(context.Background(), &mockTx{}, u, 400)

	require.NoError(t, err)
	assert.Equal(t, int64(500), u.Point)
}

func TestReservation_ReceivePoint_NegativeRejected(t *testing.T) {
	r := NewReservation(&mockUserStore{}, &mockProductStore{})
	u := &model.User{ID: 1, Point: 100}

	err := r.ReceivePoint(context.Background(), &mockTx{}, u, -1)

	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
}
