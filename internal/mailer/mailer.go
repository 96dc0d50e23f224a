// Package mailer sends report emails over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// SendResult is the per-recipient outcome of one delivery attempt.
type SendResult struct {
	Recipient string
	Success   bool
	Error     string
}

// Mailer sends HTML mail through a single SMTP account.
type Mailer struct {
	host     string
	port     int
	address  string
	password string
	sender   string
	logger   zerolog.Logger
}

// New creates a Mailer for the given SMTP account.
func New(host string, port int, address, password, sender string, logger zerolog.Logger) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		address:  address,
		password: password,
		sender:   sender,
		logger:   logger.With().Str("component", "mailer").Logger(),
	}
}

// Send delivers one message to one recipient.
func (m *Mailer) Send(ctx context.Context, recipient, subject, htmlBody string) SendResult {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.sender, m.address); err != nil {
		return SendResult{Recipient: recipient, Error: fmt.Sprintf("invalid sender address: %v", err)}
	}
	if err := msg.To(recipient); err != nil {
		return SendResult{Recipient: recipient, Error: fmt.Sprintf("invalid recipient: %v", err)}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.address),
		mail.WithPassword(m.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return SendResult{Recipient: recipient, Error: fmt.Sprintf("smtp client: %v", err)}
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.Error().Err(err).Str("recipient", recipient).Msg("send failed")
		return SendResult{Recipient: recipient, Error: classifySendError(err)}
	}

	m.logger.Info().Str("recipient", recipient).Msg("mail sent")
	return SendResult{Recipient: recipient, Success: true}
}

// SendBatch attempts every recipient independently and never short-circuits;
// each recipient is attempted exactly once per call.
func (m *Mailer) SendBatch(ctx context.Context, recipients []string, subject, htmlBody string) []SendResult {
	results := make([]SendResult, 0, len(recipients))
	for _, r := range recipients {
		results = append(results, m.Send(ctx, r, subject, htmlBody))
	}

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	m.logger.Info().
		Int("succeeded", succeeded).
		Int("total", len(recipients)).
		Msg("batch send complete")
	return results
}

// classifySendError turns SMTP failures into operator-readable messages.
func classifySendError(err error) string {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		switch sendErr.Reason {
		case mail.ErrSMTPAuth:
			return "SMTP authentication failed, check the app password"
		case mail.ErrSMTPRcptTo:
			return "recipient rejected by server"
		}
	}
	return err.Error()
}
