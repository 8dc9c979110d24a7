package auth

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Mail is a plain text notification
type Mail struct {
	From    string
	To      []string
	Subject string
	Text    string
}

// Mailer delivers notifications
type Mailer interface {
	SendMail(ctx context.Context, mail Mail) error
}

// MailerFunc adapts a function to the Mailer interface
type MailerFunc func(ctx context.Context, mail Mail) error

func (f MailerFunc) SendMail(ctx context.Context, mail Mail) error {
	if f == nil {
		return nil
	}
	return f(ctx, mail)
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	Addr string
	Auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(addr, username, password string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i > 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{Addr: addr, Auth: auth, send: smtp.SendMail}
}

func (m *SMTPMailer) SendMail(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(mail.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}

	send := m.send
	if send == nil {
		send = smtp.SendMail
	}

	return send(m.Addr, m.Auth, mail.From, mail.To, formatMail(mail))
}

func formatMail(mail Mail) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", mail.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(mail.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mail.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(mail.Text)
	return []byte(b.String())
}

// logMailer only records that a mail would have been sent
type logMailer struct {
	logger Logger
}

func (m logMailer) SendMail(_ context.Context, mail Mail) error {
	m.logger.Info("mail delivery skipped, no mailer configured", "to", mail.To, "subject", mail.Subject)
	return nil
}
