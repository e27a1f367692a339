package pgrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

const subscriptionColumns = `id, created_at, updated_at, product_id, vendor_id,
start_date, end_date, status, payment_status, total_amount,
expiry_notification_sent, previous_subscription_id, renewal_count, is_deleted`

type SubscriptionRepository struct {
	db uow.DBTX
}

func NewSubscriptionRepository(db uow.DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (s *SubscriptionRepository) Create(
	ctx context.Context,
	args repoargs.SubscriptionCreate,
) (*domain.ProductSubscription, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO product_subscriptions
			(product_id, vendor_id, start_date, end_date, status, payment_status,
			 total_amount, previous_subscription_id, renewal_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+subscriptionColumns,
		args.ProductID, args.VendorID, args.StartDate, args.EndDate,
		string(domain.SubscriptionPending), string(domain.PaymentPending),
		args.TotalAmount, args.PreviousSubscriptionID, args.RenewalCount)

	subscription, err := scanSubscription(row)
	if err != nil {
		return nil, convertErr(err, "creating subscription for product %d", args.ProductID)
	}
	return subscription, nil
}

func (s *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*domain.ProductSubscription, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM product_subscriptions WHERE id = $1`, id)
	subscription, err := scanSubscription(row)
	if err != nil {
		return nil, convertErr(err, "finding subscription by id %d", id)
	}
	return subscription, nil
}

func (s *SubscriptionRepository) GetByVendor(
	ctx context.Context,
	vendorID int64,
) ([]domain.ProductSubscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM product_subscriptions
		WHERE vendor_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC`,
		vendorID)
	if err != nil {
		return nil, convertErr(err, "getting subscriptions for vendor %d", vendorID)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// Activate переводит подписку pending -> active (оплата подтверждена). Guarded UPDATE:
// затрагивает строку только в статусе pending, повторный вызов вернет ErrRecordNotFound.
func (s *SubscriptionRepository) Activate(ctx context.Context, id int64) (*domain.ProductSubscription, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE product_subscriptions
		SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1 AND status = $4 AND NOT is_deleted
		RETURNING `+subscriptionColumns,
		id, string(domain.SubscriptionActive), string(domain.PaymentPaid),
		string(domain.SubscriptionPending))

	subscription, err := scanSubscription(row)
	if err != nil {
		return nil, convertErr(err, "activating subscription %d", id)
	}
	return subscription, nil
}

// Cancel переводит подписку pending|active -> cancelled и мягко удаляет запись.
func (s *SubscriptionRepository) Cancel(ctx context.Context, id int64) (*domain.ProductSubscription, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE product_subscriptions
		SET status = $2, is_deleted = true, updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING `+subscriptionColumns,
		id, string(domain.SubscriptionCancelled),
		string(domain.SubscriptionPending), string(domain.SubscriptionActive))

	subscription, err := scanSubscription(row)
	if err != nil {
		return nil, convertErr(err, "cancelling subscription %d", id)
	}
	return subscription, nil
}

// GetDueForExpiry возвращает активные подписки с истекшим end_date.
// Выборка шедулера: status=active гарантирует идемпотентность свипа.
func (s *SubscriptionRepository) GetDueForExpiry(
	ctx context.Context,
	now time.Time,
	limit uint,
) ([]domain.ProductSubscription, error) {
	safeLimit, limitErr := safeConvertUintToInt32(limit)
	if limitErr != nil {
		return nil, convertErr(limitErr, "converting limit to int32")
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM product_subscriptions
		WHERE status = $1 AND end_date <= $2 AND NOT is_deleted
		ORDER BY end_date
		LIMIT $3`,
		string(domain.SubscriptionActive), now, safeLimit)
	if err != nil {
		return nil, convertErr(err, "getting subscriptions due for expiry")
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// MarkExpired переводит подписку active -> expired. Повторный вызов на уже истекшей
// подписке не затрагивает строк и возвращает ErrRecordNotFound.
func (s *SubscriptionRepository) MarkExpired(ctx context.Context, id int64) (*domain.ProductSubscription, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE product_subscriptions
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3 AND NOT is_deleted
		RETURNING `+subscriptionColumns,
		id, string(domain.SubscriptionExpired), string(domain.SubscriptionActive))

	subscription, err := scanSubscription(row)
	if err != nil {
		return nil, convertErr(err, "marking subscription %d expired", id)
	}
	return subscription, nil
}

// MarkNotified помечает, что уведомление об истечении отправлено. Возвращает false,
// если флаг уже стоял - вторая отправка не нужна.
func (s *SubscriptionRepository) MarkNotified(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE product_subscriptions
		SET expiry_notification_sent = true, updated_at = now()
		WHERE id = $1 AND NOT expiry_notification_sent`,
		id)
	if err != nil {
		return false, convertErr(err, "marking subscription %d notified", id)
	}
	return tag.RowsAffected() > 0, nil
}

// GetExpiringWithin возвращает активные подписки, истекающие в пределах window от now.
// Read-only выборка для напоминаний, статусы не меняет.
func (s *SubscriptionRepository) GetExpiringWithin(
	ctx context.Context,
	now time.Time,
	window time.Duration,
) ([]domain.ProductSubscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM product_subscriptions
		WHERE status = $1 AND end_date > $2 AND end_date <= $3 AND NOT is_deleted
		ORDER BY end_date`,
		string(domain.SubscriptionActive), now, now.Add(window))
	if err != nil {
		return nil, convertErr(err, "getting subscriptions expiring within %s", window)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]domain.ProductSubscription, error) {
	var subscriptions []domain.ProductSubscription
	for rows.Next() {
		subscription, scanErr := scanSubscription(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning subscription row")
		}
		subscriptions = append(subscriptions, *subscription)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "collecting subscription rows")
	}
	return subscriptions, nil
}

func scanSubscription(row pgx.Row) (*domain.ProductSubscription, error) {
	var m domain.ProductSubscription
	var status, paymentStatus string

	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.ProductID, &m.VendorID,
		&m.StartDate, &m.EndDate, &status, &paymentStatus, &m.TotalAmount,
		&m.ExpiryNotificationSent, &m.PreviousSubscriptionID, &m.RenewalCount, &m.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	m.Status = domain.SubscriptionStatus(status)
	m.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return &m, nil
}
