// Package notify delivers operational mail: order confirmations rendered
// by the worker and out-of-band alerts raised by the catalog price guard.
package notify

import (
	"context"
	"log/slog"
)

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers a rendered message. Delivery is always best-effort from
// the caller's point of view: a failed send never rolls back the state
// that triggered it.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the operational log instead of a real
// mail provider.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email sent", "to", msg.To, "from", msg.From, "subject", msg.Subject)
	return nil
}

// AlertMailer sends operator alerts, swallowing delivery failures after
// logging them.
type AlertMailer struct {
	mailer Mailer
	from   string
	to     string
	logger *slog.Logger
}

func NewAlertMailer(mailer Mailer, from, to string, logger *slog.Logger) *AlertMailer {
	return &AlertMailer{
		mailer: mailer,
		from:   from,
		to:     to,
		logger: logger,
	}
}

func (a *AlertMailer) Alert(ctx context.Context, subject, body string) {
	err := a.mailer.Send(ctx, Message{
		From:    a.from,
		To:      a.to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		a.logger.Error("failed to send alert mail", "error", err, "subject", subject)
	}
}
