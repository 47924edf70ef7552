package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"billingsync/internal/types"
)

// CustomerRepo maps auth users to provider customers.
type CustomerRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewCustomerRepo creates a CustomerRepo.
func NewCustomerRepo(db DBTX, logger *slog.Logger) *CustomerRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerRepo{db: db, logger: logger}
}

// GetStripeCustomerID returns the provider customer id for userID, or a
// not_found_customer AppError.
func (r *CustomerRepo) GetStripeCustomerID(ctx context.Context, userID string) (string, error) {
	var customerID string
	err := r.db.QueryRow(ctx,
		`SELECT stripe_customer_id FROM customers WHERE user_id = $1`,
		userID,
	).Scan(&customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeNotFoundCustomer, "no customer for user", err)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to look up customer", err)
	}
	return customerID, nil
}

// Upsert stores the mapping, replacing the customer id if the user already
// has one.
func (r *CustomerRepo) Upsert(ctx context.Context, userID, stripeCustomerID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO customers (user_id, stripe_customer_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET stripe_customer_id = EXCLUDED.stripe_customer_id`,
		userID,
		stripeCustomerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodePersistence, "failed to save customer mapping", err)
	}

	r.logger.DebugContext(ctx, "customer mapping saved",
		slog.String("user_id", userID),
		slog.String("customer_id", stripeCustomerID),
	)
	return nil
}
