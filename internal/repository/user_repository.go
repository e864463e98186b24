package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/internal/service"
	"github.com/fairyhunter13/scalable-order-system/pkg/database"
)

// UserRepository provides data access for users using pgx.
type UserRepository struct {
	pool database.TxQuerier
}

// NewUserRepository creates a new UserRepository with the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// NewUserRepositoryWithQuerier creates a UserRepository with a custom querier.
// Primarily used for testing.
func NewUserRepositoryWithQuerier(q database.TxQuerier) *UserRepository {
	return &UserRepository{pool: q}
}

const userColumns = `id, external_user_id, email, birth_date, gender, point, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.ExternalUserID, &u.Email, &u.BirthDate, &u.Gender, &u.Point, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByExternalID retrieves a user by the unique external token.
// Returns service.ErrUserNotFound if the user doesn't exist.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalUserID string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_user_id = $1`, externalUserID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", externalUserID, err)
	}
	return u, nil
}

// GetByID retrieves a user by internal ID.
// Returns service.ErrUserNotFound if the user doesn't exist.
func (r *UserRepository) GetByID(ctx context.Context, q database.TxQuerier, userID int64) (*model.User, error) {
	u, err := scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return u, nil
}

// GetByIDForUpdate retrieves a user by internal ID with a row lock.
// Used by cancellation, which knows the owner only by ID.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, userID int64) (*model.User, error) {
	u, err := scanUser(tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user for update %d: %w", userID, err)
	}
	return u, nil
}

// GetForUpdate retrieves a user with a row lock (SELECT FOR UPDATE).
// Lock-ordering invariant: the user row is always locked before any
// product rows within the same transaction.
// Returns service.ErrUserNotFound if the user doesn't exist.
func (r *UserRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, externalUserID string) (*model.User, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_user_id = $1 FOR UPDATE`, externalUserID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user for update %s: %w", externalUserID, err)
	}
	return u, nil
}

// UpdatePoint persists a new point balance. Must be called within a
// transaction after locking the row.
func (r *UserRepository) UpdatePoint(ctx context.Context, tx database.TxQuerier, userID int64, point int64) error {
	_, err := tx.Exec(ctx, `UPDATE users SET point = $1 WHERE id = $2`, point, userID)
	if err != nil {
		return fmt.Errorf("update point for user %d: %w", userID, err)
	}
	return nil
}
