package notify

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/finclass/bank-sim/internal/config"
	"github.com/finclass/bank-sim/internal/models"
)

// EmailSink delivers transaction notifications via SMTP. It is registered on
// the hub only when SMTP is configured.
type EmailSink struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewEmailSink creates a new email sink
func NewEmailSink(cfg *config.Config, logger *logrus.Logger) *EmailSink {
	return &EmailSink{
		cfg:    cfg,
		logger: logger,
	}
}

// Send mails one applied-transaction notice. Failures are returned for the
// hub to log and are never fatal.
func (s *EmailSink) Send(n models.Notification) error {
	if n.Email == "" {
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{n.Email}
	if n.Catchup {
		e.Subject = "Missed Transaction Applied"
	} else {
		e.Subject = "Transaction Applied"
	}

	body := fmt.Sprintf(
		"Dear %s,\n\n", n.AccountHolder,
	)
	body += fmt.Sprintf("%s\n", n.Description)
	if n.Catchup {
		body += "This transaction was due while the system was offline and has been applied with its original date.\n"
	}
	body += fmt.Sprintf("Current balance: %.2f\n", n.NewBalance)
	body += "\nBest regards,\nFinclass"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", n.Email, e.Subject)
	return nil
}
