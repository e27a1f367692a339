// Package notifier - коллаборатор уведомлений. Вызовы fire-and-forget: ошибка отправки
// логируется и не откатывает уже закоммиченные переходы состояний.
package notifier

import (
	"context"

	"github.com/sirupsen/logrus"
)

const (
	EventSubscriptionExpired  = "subscription.expired"
	EventSubscriptionExpiring = "subscription.expiring"
)

type Notification struct {
	RecipientEmail string
	Event          string
	Subject        string
	Body           string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier пишет уведомления в лог. Используется когда SMTP не сконфигурирован
// (дев-окружение, тесты).
type LogNotifier struct {
	l *logrus.Entry
}

func NewLogNotifier(l *logrus.Logger) *LogNotifier {
	return &LogNotifier{
		l: l.WithField("component", "notifier"),
	}
}

func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.l.WithFields(logrus.Fields{
		"recipient": notification.RecipientEmail,
		"event":     notification.Event,
		"subject":   notification.Subject,
	}).Info(notification.Body)
	return nil
}
