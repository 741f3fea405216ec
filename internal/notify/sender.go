package notify

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nkiryanov/todoserver/internal/logger"
)

type Sender interface {
	Send(ctx context.Context, from string, to string, subject string, body string) error
}

const defaultSMTPTimeout = 15 * time.Second

// Deliver messages through SMTP relay, STARTTLS is used when server supports it
type SMTPSender struct {
	Addr     string // host:port
	Username string // plain auth is used if set
	Password string
	Timeout  time.Duration
}

func (s *SMTPSender) Send(ctx context.Context, from string, to string, subject string, body string) error {
	client, err := s.client()
	if err != nil {
		return err
	}

	msg, err := newMessage(from, to, subject, body)
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email could not be sent. Err: %w", err)
	}
	return nil
}

func (s *SMTPSender) client() (*mail.Client, error) {
	host, rawPort, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return nil, fmt.Errorf("bad smtp address %q. Err: %w", s.Addr, err)
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return nil, fmt.Errorf("bad smtp port %q. Err: %w", rawPort, err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Username),
			mail.WithPassword(s.Password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client could not be created. Err: %w", err)
	}
	return client, nil
}

func newMessage(from string, to string, subject string, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("bad sender address %q. Err: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("bad recipient address %q. Err: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// Log instead of sending, not for production: addresses and links end up in logs
type LogSender struct {
	Logger logger.Logger
}

func (s *LogSender) Send(_ context.Context, from string, to string, subject string, body string) error {
	s.Logger.Info("send email",
		"from", from,
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}

type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Keep messages in memory, safe for concurrent use
type MemorySender struct {
	mu     sync.Mutex
	emails []Email
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, from string, to string, subject string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emails = append(s.emails, Email{From: from, To: to, Subject: subject, Body: body})
	return nil
}

// Copy of the messages sent so far
func (s *MemorySender) Emails() []Email {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]Email, len(s.emails))
	copy(res, s.emails)
	return res
}
