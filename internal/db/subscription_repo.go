package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"billingsync/internal/types"
)

// SubscriptionRepo mirrors provider subscriptions into the subscriptions
// table. stripe_subscription_id is the only write key; rows are never deleted.
type SubscriptionRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepo creates a SubscriptionRepo.
func NewSubscriptionRepo(db DBTX, logger *slog.Logger) *SubscriptionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepo{db: db, logger: logger}
}

const subscriptionColumns = `s.stripe_subscription_id, s.stripe_customer_id, s.price_id, s.status,
	s.current_period_start, s.current_period_end, s.plan_name,
	s.latest_invoice_id, s.invoice_pdf, s.email, s.created_at, s.updated_at`

// Insert writes a new row. A row that already exists for the subscription id
// is left untouched and reported as inserted=false, which makes redelivered
// creation events a no-op.
func (r *SubscriptionRepo) Insert(ctx context.Context, sub *types.Subscription) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (
			stripe_subscription_id, stripe_customer_id, price_id, status,
			current_period_start, current_period_end, plan_name, email,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (stripe_subscription_id) DO NOTHING`,
		sub.StripeSubscriptionID,
		sub.StripeCustomerID,
		nullIfEmpty(sub.PriceID),
		string(sub.Status),
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		nullIfEmpty(sub.PlanName),
		nullIfEmpty(sub.Email),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodePersistence, "failed to insert subscription", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.InfoContext(ctx, "subscription already recorded, insert skipped",
			slog.String("subscription_id", sub.StripeSubscriptionID),
		)
		return false, nil
	}
	return true, nil
}

// Update applies the non-nil fields of u. Nil fields keep the stored value.
// It returns the number of rows matched; zero means the subscription is not
// known locally.
func (r *SubscriptionRepo) Update(ctx context.Context, u types.SubscriptionUpdate) (int64, error) {
	var status *string
	if u.Status != nil {
		s := string(*u.Status)
		status = &s
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status               = COALESCE($2, status),
		     price_id             = COALESCE($3, price_id),
		     plan_name            = COALESCE($4, plan_name),
		     current_period_start = COALESCE($5, current_period_start),
		     current_period_end   = COALESCE($6, current_period_end),
		     updated_at           = NOW()
		 WHERE stripe_subscription_id = $1`,
		u.StripeSubscriptionID,
		status,
		u.PriceID,
		u.PlanName,
		u.CurrentPeriodStart,
		u.CurrentPeriodEnd,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodePersistence, "failed to update subscription", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateStatus changes only the status column.
func (r *SubscriptionRepo) UpdateStatus(ctx context.Context, subscriptionID string, status types.SubscriptionStatus) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $2, updated_at = NOW()
		 WHERE stripe_subscription_id = $1`,
		subscriptionID,
		string(status),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodePersistence, "failed to update subscription status", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateInvoice records the latest paid invoice. A nil PDF link or email
// keeps the stored value.
func (r *SubscriptionRepo) UpdateInvoice(ctx context.Context, u types.InvoiceUpdate) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET latest_invoice_id = $2,
		     invoice_pdf       = COALESCE($3, invoice_pdf),
		     email             = COALESCE($4, email),
		     updated_at        = NOW()
		 WHERE stripe_subscription_id = $1`,
		u.StripeSubscriptionID,
		u.InvoiceID,
		u.InvoicePDF,
		u.Email,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodePersistence, "failed to record invoice", err)
	}
	return tag.RowsAffected(), nil
}

// GetBySubscriptionID returns the row for a provider subscription id.
func (r *SubscriptionRepo) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.stripe_subscription_id = $1`,
		subscriptionID,
	)
	return r.scanOne(row, subscriptionID)
}

// GetByUserID returns the user's most relevant subscription: an entitled one
// if any, otherwise the most recently updated.
func (r *SubscriptionRepo) GetByUserID(ctx context.Context, userID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 JOIN customers c ON c.stripe_customer_id = s.stripe_customer_id
		 WHERE c.user_id = $1
		 ORDER BY (s.status IN ('active', 'trialing')) DESC, s.updated_at DESC
		 LIMIT 1`,
		userID,
	)
	return r.scanOne(row, userID)
}

func (r *SubscriptionRepo) scanOne(row pgx.Row, key string) (*types.Subscription, error) {
	var (
		sub                                             types.Subscription
		status                                          string
		priceID, planName, invoiceID, invoicePDF, email *string
		periodStart, periodEnd                          *time.Time
	)
	err := row.Scan(
		&sub.StripeSubscriptionID,
		&sub.StripeCustomerID,
		&priceID,
		&status,
		&periodStart,
		&periodEnd,
		&planName,
		&invoiceID,
		&invoicePDF,
		&email,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundSubscription, "subscription not found", err,
				map[string]any{"key": key})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load subscription", err)
	}

	sub.Status = types.SubscriptionStatus(status)
	sub.PriceID = deref(priceID)
	sub.PlanName = deref(planName)
	sub.LatestInvoiceID = deref(invoiceID)
	sub.InvoicePDF = deref(invoicePDF)
	sub.Email = deref(email)
	sub.CurrentPeriodStart = utcPtr(periodStart)
	sub.CurrentPeriodEnd = utcPtr(periodEnd)
	return &sub, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
