package notifier

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/pkg/errors"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier отправляет уведомления письмом.
type SMTPNotifier struct {
	conf SMTPConfig
}

func NewSMTPNotifier(conf SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{conf: conf}
}

func (n *SMTPNotifier) Notify(_ context.Context, notification Notification) error {
	e := email.NewEmail()
	e.From = n.conf.From
	e.To = []string{notification.RecipientEmail}
	e.Subject = notification.Subject
	e.Text = []byte(notification.Body)
	e.Headers.Set("X-Event", notification.Event)

	addr := fmt.Sprintf("%s:%d", n.conf.Host, n.conf.Port)
	auth := smtp.PlainAuth("", n.conf.Username, n.conf.Password, n.conf.Host)

	if err := e.Send(addr, auth); err != nil {
		return errors.Wrapf(err, "sending `%s` notification to %s", notification.Event, notification.RecipientEmail)
	}
	return nil
}
