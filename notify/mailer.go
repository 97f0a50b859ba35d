package notify

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"gopkg.in/gomail.v2"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPMailer sends through an SMTP relay with gomail.
type SMTPMailer struct {
	From   string
	dialer *gomail.Dialer
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		From:   from,
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

// SMTPMailerFromEnv reads SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD and MAIL_FROM.
// ok is false when no host is configured.
func SMTPMailerFromEnv() (mailer *SMTPMailer, ok bool) {
	host := strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if host == "" {
		return nil, false
	}
	username := os.Getenv("SMTP_USERNAME")
	from := strings.TrimSpace(os.Getenv("MAIL_FROM"))
	if from == "" {
		from = username
	}
	return NewSMTPMailer(host, config.IntFromEnv("SMTP_PORT", 587), username, os.Getenv("SMTP_PASSWORD"), from), true
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if msg == nil || strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	gm.SetHeader("From", m.From)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTMLBody)
	for _, a := range msg.Attachments {
		data := a.Data
		gm.Attach(a.Name,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}
	return m.dialer.DialAndSend(gm)
}

// LogMailer only logs. It stands in when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg *Message) error {
	config.GetLogger().WithField("field", "LogMailer").
		WithField("to", msg.To).
		WithField("attachments", len(msg.Attachments)).
		Info("smtp not configured, skipping mail: " + msg.Subject)
	return nil
}
