// Package alert delivers operator notifications for conditions that need a
// human, such as the AI tiebreaker's circuit opening.
package alert

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Alerter sends one operator notification.
type Alerter interface {
	Alert(subject, message string) error
}

// Config holds SMTP delivery settings for EmailAlerter.
type Config struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// EmailAlerter implements Alerter over SMTP.
type EmailAlerter struct {
	cfg Config
}

// NewEmailAlerter creates an email alerter.
func NewEmailAlerter(cfg Config) *EmailAlerter {
	return &EmailAlerter{cfg: cfg}
}

// Alert sends the message to every configured recipient. A disabled or
// recipient-less config is a silent no-op.
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled || len(a.cfg.To) == 0 {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", strings.Join(a.cfg.To, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, a.cfg.From, a.cfg.To, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// NoOpAlerter discards alerts. Used when alerting is disabled.
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}
