package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Mailer dispatches account emails through whatever relay the deployment
// wires in. Callers treat dispatch failures as soft: registration and reset
// flows report success even when the mail could not be sent.
type Mailer interface {
	SendVerification(ctx context.Context, email, name, redirectURL string) error
	SendPasswordReset(ctx context.Context, email, redirectURL string) error
}

// LogMailer records outgoing mail instead of delivering it. Used in
// development and as the default until a relay is configured.
type LogMailer struct {
	logger *logrus.Logger
}

func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerification(ctx context.Context, email, name, redirectURL string) error {
	m.logger.WithFields(logrus.Fields{
		"to":          email,
		"name":        name,
		"redirect_to": redirectURL,
		"kind":        "verification",
	}).Info("Mail dispatched")
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, redirectURL string) error {
	m.logger.WithFields(logrus.Fields{
		"to":          email,
		"redirect_to": redirectURL,
		"kind":        "password_reset",
	}).Info("Mail dispatched")
	return nil
}
