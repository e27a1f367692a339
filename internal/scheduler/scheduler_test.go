package scheduler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/notifier"
)

// fakeSubscriptions повторяет контракт SubscriptionService поверх среза: guarded
// переходы статусов и одноразовый флаг нотификации.
type fakeSubscriptions struct {
	mu            sync.Mutex
	subscriptions map[int64]*domain.ProductSubscription
	expireErrs    map[int64]error
}

func newFakeSubscriptions(subs ...*domain.ProductSubscription) *fakeSubscriptions {
	byID := make(map[int64]*domain.ProductSubscription, len(subs))
	for _, sub := range subs {
		byID[sub.ID] = sub
	}
	return &fakeSubscriptions{
		subscriptions: byID,
		expireErrs:    make(map[int64]error),
	}
}

func (f *fakeSubscriptions) DueForExpiry(
	_ context.Context,
	now time.Time,
	limit uint,
) ([]domain.ProductSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []domain.ProductSubscription
	for _, sub := range f.subscriptions {
		if sub.Status == domain.SubscriptionActive && !sub.EndDate.After(now) && uint(len(due)) < limit {
			due = append(due, *sub)
		}
	}
	return due, nil
}

func (f *fakeSubscriptions) Expire(_ context.Context, id int64) (*domain.ProductSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.expireErrs[id]; err != nil {
		return nil, err
	}
	sub, ok := f.subscriptions[id]
	if !ok || sub.Status != domain.SubscriptionActive {
		return nil, domain.ErrSubscriptionTerminal
	}
	sub.Status = domain.SubscriptionExpired
	copied := *sub
	return &copied, nil
}

func (f *fakeSubscriptions) MarkNotified(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[id]
	if !ok || sub.ExpiryNotificationSent {
		return false, nil
	}
	sub.ExpiryNotificationSent = true
	return true, nil
}

func (f *fakeSubscriptions) ExpiringWithin(
	_ context.Context,
	now time.Time,
	window time.Duration,
) ([]domain.ProductSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deadline := now.Add(window)
	var expiring []domain.ProductSubscription
	for _, sub := range f.subscriptions {
		if sub.Status == domain.SubscriptionActive && sub.EndDate.After(now) && !sub.EndDate.After(deadline) {
			expiring = append(expiring, *sub)
		}
	}
	return expiring, nil
}

type fakeDirectory struct {
	accounts map[int64]*domain.Account
}

func (f *fakeDirectory) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return account, nil
}

func (f *fakeDirectory) ListByRole(_ context.Context, role domain.Role) ([]domain.Account, error) {
	var accounts []domain.Account
	for _, account := range f.accounts {
		if account.Role == role {
			accounts = append(accounts, *account)
		}
	}
	return accounts, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifier.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notifier.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) byEvent(event string) []notifier.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []notifier.Notification
	for _, n := range r.sent {
		if n.Event == event {
			matched = append(matched, n)
		}
	}
	return matched
}

type SchedulerTestSuite struct {
	suite.Suite
	now      time.Time
	vendor   *domain.Account
	admin    *domain.Account
	accounts *fakeDirectory
	notify   *recordingNotifier
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.vendor = &domain.Account{ID: 1, Email: "vendor@example.com", Role: domain.RoleVendor}
	s.admin = &domain.Account{ID: 2, Email: "admin@example.com", Role: domain.RoleAdmin}
	s.accounts = &fakeDirectory{accounts: map[int64]*domain.Account{
		s.vendor.ID: s.vendor,
		s.admin.ID:  s.admin,
	}}
	s.notify = &recordingNotifier{}
}

func (s *SchedulerTestSuite) newScheduler(subs *fakeSubscriptions) *Scheduler {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(subs, s.accounts, s.notify, l).
		SetClock(func() time.Time { return s.now })
}

func (s *SchedulerTestSuite) activeSubscription(id int64, endDate time.Time) *domain.ProductSubscription {
	return &domain.ProductSubscription{
		ID:        id,
		ProductID: id * 10,
		VendorID:  s.vendor.ID,
		Status:    domain.SubscriptionActive,
		EndDate:   endDate,
	}
}

func (s *SchedulerTestSuite) TestExpirySweepIsIdempotent() {
	sub := s.activeSubscription(1, s.now.Add(-time.Hour))
	subs := newFakeSubscriptions(sub)
	scheduler := s.newScheduler(subs)

	scheduler.RunExpirySweep(context.Background())
	scheduler.RunExpirySweep(context.Background())

	s.Equal(domain.SubscriptionExpired, sub.Status)

	// Ровно один переход и один батч нотификаций (вендор + админ) на два свипа.
	expired := s.notify.byEvent(notifier.EventSubscriptionExpired)
	s.Require().Len(expired, 2)
	recipients := []string{expired[0].RecipientEmail, expired[1].RecipientEmail}
	s.Contains(recipients, s.vendor.Email)
	s.Contains(recipients, s.admin.Email)
}

func (s *SchedulerTestSuite) TestExpirySweepSkipsNotDue() {
	sub := s.activeSubscription(1, s.now.Add(time.Hour))
	subs := newFakeSubscriptions(sub)
	scheduler := s.newScheduler(subs)

	scheduler.RunExpirySweep(context.Background())

	s.Equal(domain.SubscriptionActive, sub.Status)
	s.Empty(s.notify.sent)
}

func (s *SchedulerTestSuite) TestExpirySweepContinuesPastFailures() {
	broken := s.activeSubscription(1, s.now.Add(-2*time.Hour))
	healthy := s.activeSubscription(2, s.now.Add(-time.Hour))
	subs := newFakeSubscriptions(broken, healthy)
	subs.expireErrs[broken.ID] = domain.ErrUnknown
	scheduler := s.newScheduler(subs)

	scheduler.RunExpirySweep(context.Background())

	// Ошибка на одной подписке не прерывает свип.
	s.Equal(domain.SubscriptionActive, broken.Status)
	s.Equal(domain.SubscriptionExpired, healthy.Status)
}

func (s *SchedulerTestSuite) TestExpirySweepTreatsConcurrentExpiryAsNoop() {
	sub := s.activeSubscription(1, s.now.Add(-time.Hour))
	subs := newFakeSubscriptions(sub)
	subs.expireErrs[sub.ID] = domain.ErrSubscriptionTerminal
	scheduler := s.newScheduler(subs)

	// Второй инстанс успел раньше: терминальный ответ - не ошибка свипа.
	scheduler.RunExpirySweep(context.Background())
	s.Empty(s.notify.sent)
}

func (s *SchedulerTestSuite) TestReminderSweep() {
	expiringSoon := s.activeSubscription(1, s.now.Add(6*time.Hour))
	farAway := s.activeSubscription(2, s.now.Add(72*time.Hour))
	subs := newFakeSubscriptions(expiringSoon, farAway)
	scheduler := s.newScheduler(subs)

	scheduler.RunReminderSweep(context.Background())

	reminders := s.notify.byEvent(notifier.EventSubscriptionExpiring)
	s.Require().Len(reminders, 1)
	s.Equal(s.vendor.Email, reminders[0].RecipientEmail)

	// Свип напоминаний read-only: статусы не тронуты.
	s.Equal(domain.SubscriptionActive, expiringSoon.Status)
	s.Equal(domain.SubscriptionActive, farAway.Status)
}
