package sender

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// SMTPConfig holds the SMTP endpoint plus the credential pair for one
// send operation.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

// sendMessage delivers raw message bytes, choosing implicit TLS or
// STARTTLS based on the config. Failures come back as *SendError with
// the step that failed classified.
func sendMessage(cfg SMTPConfig, from, to string, body []byte) error {
	addr := cfg.Host + ":" + cfg.Port

	if cfg.TLS {
		return sendWithTLS(addr, cfg, from, to, body)
	}
	return sendWithStartTLS(addr, cfg, from, to, body)
}

// sendWithTLS sends over an implicit TLS connection.
func sendWithTLS(addr string, cfg SMTPConfig, from, to string, body []byte) error {
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return &SendError{Kind: KindConnection, Err: fmt.Errorf("TLS dial to %s: %w", addr, err)}
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return &SendError{Kind: KindConnection, Err: fmt.Errorf("creating SMTP client: %w", err)}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &SendError{Kind: KindAuth, Err: fmt.Errorf("SMTP auth: %w", err)}
	}

	return deliver(client, from, to, body)
}

// sendWithStartTLS sends using STARTTLS on a plain connection.
func sendWithStartTLS(addr string, cfg SMTPConfig, from, to string, body []byte) error {
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return &SendError{Kind: KindConnection, Err: fmt.Errorf("dial to %s: %w", addr, err)}
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return &SendError{Kind: KindConnection, Err: fmt.Errorf("creating SMTP client: %w", err)}
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return &SendError{Kind: KindConnection, Err: fmt.Errorf("SMTP STARTTLS: %w", err)}
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &SendError{Kind: KindAuth, Err: fmt.Errorf("SMTP auth: %w", err)}
	}

	return deliver(client, from, to, body)
}

// deliver runs the MAIL/RCPT/DATA sequence on an authenticated client.
func deliver(client *smtp.Client, from, to string, body []byte) error {
	if err := client.Mail(from); err != nil {
		return &SendError{Kind: KindUnknown, Err: fmt.Errorf("SMTP MAIL FROM: %w", err)}
	}

	if err := client.Rcpt(to); err != nil {
		return &SendError{Kind: KindUnknown, Err: fmt.Errorf("SMTP RCPT TO: %w", err)}
	}

	writer, err := client.Data()
	if err != nil {
		return &SendError{Kind: KindUnknown, Err: fmt.Errorf("SMTP DATA: %w", err)}
	}

	if _, err := writer.Write(body); err != nil {
		return &SendError{Kind: KindUnknown, Err: fmt.Errorf("writing message body: %w", err)}
	}

	if err := writer.Close(); err != nil {
		return &SendError{Kind: KindUnknown, Err: fmt.Errorf("closing message body: %w", err)}
	}

	if err := client.Quit(); err != nil {
		return &SendError{Kind: KindUnknown, Err: fmt.Errorf("SMTP QUIT: %w", err)}
	}

	return nil
}
