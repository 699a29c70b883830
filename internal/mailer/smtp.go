package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"gopkg.in/mail.v2"
)

var ErrMissingConfig = errors.New("mailer: smtp host and from address are required")

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	Timeout   time.Duration
}

type SMTPMailer struct {
	fromEmail  string
	send       func(...*mail.Message) error
	retryDelay time.Duration
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.FromEmail == "" {
		return nil, ErrMissingConfig
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}

	return &SMTPMailer{
		fromEmail:  cfg.FromEmail,
		send:       d.DialAndSend,
		retryDelay: time.Second,
	}, nil
}

// Send renders templateFile and delivers it to email, retrying up to
// maxRetries times with a linear backoff.
func (m *SMTPMailer) Send(ctx context.Context, templateFile, email string, data any) error {
	subject, body, err := render(templateFile, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = m.send(msg); lastErr == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("send email to %s: %w", email, ctx.Err())
		case <-time.After(m.retryDelay * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}

func render(templateFile string, data any) (string, string, error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return "", "", fmt.Errorf("parse template %s: %w", templateFile, err)
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return "", "", err
	}

	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "plainBody", data); err != nil {
		return "", "", err
	}

	return subject.String(), body.String(), nil
}
