// Package scheduler - периодический драйвер машины состояний подписок: ежечасный свип
// истечения и ежедневный свип напоминаний.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/notifier"
)

const (
	defaultExpiryInterval   = time.Hour
	defaultReminderInterval = 24 * time.Hour
	defaultReminderWindow   = 24 * time.Hour
	defaultSweepLimit       = 500
)

//go:generate mockgen -source=scheduler.go -destination=mocks/mocks.go -package=mocks

// SubscriptionServicer - срез SubscriptionService, нужный шедулеру.
type SubscriptionServicer interface {
	DueForExpiry(ctx context.Context, now time.Time, limit uint) ([]domain.ProductSubscription, error)
	Expire(ctx context.Context, id int64) (*domain.ProductSubscription, error)
	MarkNotified(ctx context.Context, id int64) (bool, error)
	ExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.ProductSubscription, error)
}

// AccountDirectory отдает получателей нотификаций.
type AccountDirectory interface {
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Account, error)
}

// Scheduler гоняет свипы по тикерам. Оба свипа выполняются один раз сразу при старте:
// истечения, случившиеся пока процесс лежал, подбираются без ожидания первого тика.
type Scheduler struct {
	svs      SubscriptionServicer
	accounts AccountDirectory
	notify   notifier.Notifier
	l        *logrus.Entry

	expiryInterval   time.Duration
	reminderInterval time.Duration
	reminderWindow   time.Duration
	sweepLimit       uint
	clock            func() time.Time
}

func New(svs SubscriptionServicer, accounts AccountDirectory, n notifier.Notifier, l *logrus.Logger) *Scheduler {
	loggerEntry := l.WithFields(logrus.Fields{
		"component": "scheduler",
	})

	return &Scheduler{
		svs:              svs,
		accounts:         accounts,
		notify:           n,
		l:                loggerEntry,
		expiryInterval:   defaultExpiryInterval,
		reminderInterval: defaultReminderInterval,
		reminderWindow:   defaultReminderWindow,
		sweepLimit:       defaultSweepLimit,
		clock:            time.Now,
	}
}

// SetExpiryInterval устанавливает период свипа истечения.
func (s *Scheduler) SetExpiryInterval(d time.Duration) *Scheduler {
	s.expiryInterval = d
	return s
}

// SetReminderInterval устанавливает период свипа напоминаний.
func (s *Scheduler) SetReminderInterval(d time.Duration) *Scheduler {
	s.reminderInterval = d
	return s
}

// SetSweepLimit устанавливает кол-во подписок, обрабатываемых за один свип.
func (s *Scheduler) SetSweepLimit(limit uint) *Scheduler {
	s.sweepLimit = limit
	return s
}

// SetClock подменяет источник времени. Для тестов.
func (s *Scheduler) SetClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Run запускает шедулер до отмены контекста. Оба свипа прогоняются немедленно
// (cold-start catch-up), дальше по тикерам.
func (s *Scheduler) Run(ctx context.Context) {
	s.l.WithFields(logrus.Fields{
		"expiryInterval":   s.expiryInterval.String(),
		"reminderInterval": s.reminderInterval.String(),
	}).Info("Starting")

	s.RunExpirySweep(ctx)
	s.RunReminderSweep(ctx)

	expiryTicker := time.NewTicker(s.expiryInterval)
	defer expiryTicker.Stop()
	reminderTicker := time.NewTicker(s.reminderInterval)
	defer reminderTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.l.Info("Got stop signal, exiting...")
			return
		case <-expiryTicker.C:
			s.RunExpirySweep(ctx)
		case <-reminderTicker.C:
			s.RunReminderSweep(ctx)
		}
	}
}

// RunExpirySweep выбирает активные подписки с истекшим сроком и переводит каждую
// в expired. Ошибка на одной подписке не прерывает свип - log-and-continue.
func (s *Scheduler) RunExpirySweep(ctx context.Context) {
	now := s.clock()
	due, dueErr := s.svs.DueForExpiry(ctx, now, s.sweepLimit)
	if dueErr != nil {
		s.l.WithError(dueErr).Error("expiry sweep: listing due subscriptions")
		return
	}
	if len(due) == 0 {
		return
	}
	s.l.WithField("count", len(due)).Info("expiry sweep")

	for _, subscription := range due {
		if err := s.expireOne(ctx, subscription); err != nil {
			s.l.WithError(err).
				WithField("subscriptionID", subscription.ID).
				Error("expiry sweep: processing subscription")
		}
	}
}

func (s *Scheduler) expireOne(ctx context.Context, subscription domain.ProductSubscription) error {
	expired, expireErr := s.svs.Expire(ctx, subscription.ID)
	if expireErr != nil {
		// Кто-то успел раньше (второй инстанс или повторный свип) - это no-op.
		if errors.Is(expireErr, domain.ErrSubscriptionTerminal) {
			return nil
		}
		return expireErr
	}

	// Нотификационная нога отдельно защищена флагом expiry_notification_sent:
	// переход и отправка не перезапускаются повторным свипом.
	marked, markErr := s.svs.MarkNotified(ctx, expired.ID)
	if markErr != nil {
		return markErr
	}
	if !marked {
		return nil
	}

	s.notifyExpiry(ctx, expired)
	return nil
}

// notifyExpiry шлет один батч: вендору и всем админам. Ошибки отправки логируются -
// переход уже закоммичен и не откатывается.
func (s *Scheduler) notifyExpiry(ctx context.Context, subscription *domain.ProductSubscription) {
	recipients := s.expiryRecipients(ctx, subscription)
	for _, recipient := range recipients {
		n := notifier.Notification{
			RecipientEmail: recipient,
			Event:          notifier.EventSubscriptionExpired,
			Subject:        "Product subscription expired",
			Body: fmt.Sprintf(
				"Subscription %d for product %d expired at %s, the product is no longer published.",
				subscription.ID, subscription.ProductID, subscription.EndDate.Format(time.RFC3339),
			),
		}
		if err := s.notify.Notify(ctx, n); err != nil {
			s.l.WithError(err).WithField("recipient", recipient).Error("sending expiry notification")
		}
	}
}

func (s *Scheduler) expiryRecipients(ctx context.Context, subscription *domain.ProductSubscription) []string {
	var recipients []string

	vendor, vendorErr := s.accounts.FindByID(ctx, subscription.VendorID)
	if vendorErr != nil {
		s.l.WithError(vendorErr).
			WithField("vendorID", subscription.VendorID).
			Error("resolving vendor for notification")
	} else {
		recipients = append(recipients, vendor.Email)
	}

	admins, adminsErr := s.accounts.ListByRole(ctx, domain.RoleAdmin)
	if adminsErr != nil {
		s.l.WithError(adminsErr).Error("resolving admins for notification")
	}
	for _, admin := range admins {
		recipients = append(recipients, admin.Email)
	}
	return recipients
}

// RunReminderSweep шлет напоминания об истекающих в ближайшее окно подписках.
// Read-only: состояния не трогает.
func (s *Scheduler) RunReminderSweep(ctx context.Context) {
	now := s.clock()
	expiring, err := s.svs.ExpiringWithin(ctx, now, s.reminderWindow)
	if err != nil {
		s.l.WithError(err).Error("reminder sweep: listing expiring subscriptions")
		return
	}

	for _, subscription := range expiring {
		vendor, vendorErr := s.accounts.FindByID(ctx, subscription.VendorID)
		if vendorErr != nil {
			s.l.WithError(vendorErr).
				WithField("subscriptionID", subscription.ID).
				Error("reminder sweep: resolving vendor")
			continue
		}

		n := notifier.Notification{
			RecipientEmail: vendor.Email,
			Event:          notifier.EventSubscriptionExpiring,
			Subject:        "Product subscription expires soon",
			Body: fmt.Sprintf(
				"Subscription %d for product %d expires at %s. Renew it to keep the product published.",
				subscription.ID, subscription.ProductID, subscription.EndDate.Format(time.RFC3339),
			),
		}
		if notifyErr := s.notify.Notify(ctx, n); notifyErr != nil {
			s.l.WithError(notifyErr).
				WithField("subscriptionID", subscription.ID).
				Error("reminder sweep: sending notification")
		}
	}
}
