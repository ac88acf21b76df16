package mailer

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"sort"
	"strings"
)

var ErrDisabled = errors.New("smtp delivery disabled")

type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// Message is a single outgoing email.
type Message struct {
	To          []string
	Subject     string
	Body        string
	ContentType string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(msg *Message) error
}

type Client struct {
	config Config
}

func NewClient(config Config) *Client {
	if config.Port == 0 {
		config.Port = 587
	}
	return &Client{config: config}
}

func (c *Client) Send(msg *Message) error {
	if !c.config.Enabled {
		return ErrDisabled
	}
	if c.config.From == "" {
		return errors.New("sender address is empty")
	}
	if len(msg.To) == 0 {
		return errors.New("recipient list is empty")
	}
	if msg.Subject == "" {
		return errors.New("subject is empty")
	}

	payload := compose(c.config.From, msg)

	var auth smtp.Auth
	if c.config.Username != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	if c.config.UseTLS || c.config.Port == 587 {
		return c.sendWithTLS(addr, auth, msg.To, payload)
	}
	return smtp.SendMail(addr, auth, c.config.From, msg.To, payload)
}

func compose(from string, msg *Message) []byte {
	contentType := msg.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=UTF-8"
	}

	headers := map[string]string{
		"From":         from,
		"To":           strings.Join(msg.To, ", "),
		"Subject":      msg.Subject,
		"MIME-Version": "1.0",
		"Content-Type": contentType,
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

func (c *Client) sendWithTLS(addr string, auth smtp.Auth, to []string, payload []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("connect smtp server: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: c.config.Host}); err != nil {
		return fmt.Errorf("start tls: %w", err)
	}
	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err = client.Mail(c.config.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("set recipient: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data: %w", err)
	}
	if _, err = w.Write(payload); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

// SendHTML is a convenience for single-recipient HTML mail.
func SendHTML(s Sender, to, subject, body string) error {
	return s.Send(&Message{
		To:          []string{to},
		Subject:     subject,
		Body:        body,
		ContentType: "text/html; charset=UTF-8",
	})
}
