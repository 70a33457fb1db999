package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/visitreg/server/internal/config"
)

// SMTPService handles sending emails
type SMTPService struct {
	cfg config.SMTPConfig
}

// NewSMTPService creates a new SMTP service
func NewSMTPService(cfg config.SMTPConfig) *SMTPService {
	return &SMTPService{cfg: cfg}
}

// IsConfigured reports whether outgoing mail can be sent
func (s *SMTPService) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.FromAddress != ""
}

// SendPasswordResetEmail sends the 6-digit reset code to a user
func (s *SMTPService) SendPasswordResetEmail(ctx context.Context, toEmail, toName, code string) error {
	data := PasswordResetEmailData{
		Name: toName,
		Code: code,
	}

	tmpl, err := template.New("passwordReset").Parse(passwordResetEmailTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse reset email template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute reset email template: %w", err)
	}

	subject := "Code de réinitialisation du mot de passe"
	return s.sendEmail(ctx, toEmail, subject, body.String())
}

// sendEmail is the internal helper that performs the actual SMTP sending
func (s *SMTPService) sendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}

	from := fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress)
	headers := map[string]string{
		"From":         from,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	var msg bytes.Buffer
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if s.cfg.UseTLS {
		return s.sendWithTLS(addr, auth, to, msg.Bytes())
	}

	return smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{to}, msg.Bytes())
}

// sendWithTLS sends email over an implicit TLS connection
func (s *SMTPService) sendWithTLS(addr string, auth smtp.Auth, to string, message []byte) error {
	tlsConfig := &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.SkipVerify,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := client.Mail(s.cfg.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to send DATA command: %w", err)
	}

	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}

	return nil
}
