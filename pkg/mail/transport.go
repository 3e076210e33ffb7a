package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/inquiry-pipeline/pkg/config"
	"github.com/telekom/inquiry-pipeline/pkg/metrics"
)

// Message is a single plain-text mail.
type Message struct {
	To      string
	Subject string
	Text    string
	// ReplyTo is optional.
	ReplyTo string
}

// Receipt identifies an accepted message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Transport delivers messages. Implementations must honour ctx and be safe
// for concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
	// Verify checks that the mail server is reachable and accepts the credentials.
	Verify(ctx context.Context) error
}

// SMTPTransport sends mails through a gomail dialer, one connection per message.
type SMTPTransport struct {
	dialer        *gomail.Dialer
	senderAddress string
	senderName    string
	log           *zap.SugaredLogger
}

var _ Transport = (*SMTPTransport)(nil)

func NewSMTPTransport(cfg config.Mail, log *zap.SugaredLogger) *SMTPTransport {
	log.Infow("Initializing SMTP transport", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warn("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for internal relays
	}
	senderAddr := cfg.SenderAddress
	if senderAddr == "" {
		senderAddr = config.DefaultSenderAddress
	}
	senderName := cfg.SenderName
	if senderName == "" {
		senderName = config.DefaultSenderName
	}
	return &SMTPTransport{dialer: d, senderAddress: senderAddr, senderName: senderName, log: log}
}

func (t *SMTPTransport) GetHost() string {
	return t.dialer.Host
}

func (t *SMTPTransport) GetPort() int {
	return t.dialer.Port
}

// SenderName is the display name used in the From header.
func (t *SMTPTransport) SenderName() string {
	return t.senderName
}

func (t *SMTPTransport) newMessageID() string {
	domain := "localhost"
	if i := strings.LastIndexByte(t.senderAddress, '@'); i >= 0 && i < len(t.senderAddress)-1 {
		domain = t.senderAddress[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// Send delivers msg. When ctx ends first the error wraps ctx.Err(); the SMTP
// exchange itself is bounded by the dialer's own timeout.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if msg.To == "" {
		return Receipt{}, fmt.Errorf("send mail %q: empty recipient", msg.Subject)
	}
	id := t.newMessageID()
	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.senderAddress, t.senderName)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	m.SetBody("text/plain", msg.Text)

	errCh := make(chan error, 1)
	go func() {
		errCh <- t.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		metrics.MailSendFailure.WithLabelValues(t.GetHost()).Inc()
		return Receipt{}, fmt.Errorf("send mail %q: %w", msg.Subject, ctx.Err())
	case err := <-errCh:
		if err != nil {
			metrics.MailSendFailure.WithLabelValues(t.GetHost()).Inc()
			return Receipt{}, fmt.Errorf("send mail %q: %w", msg.Subject, err)
		}
	}
	metrics.MailSendSuccess.WithLabelValues(t.GetHost()).Inc()
	t.log.Debugw("Mail sent", "subject", msg.Subject, "messageId", id)
	return Receipt{MessageID: id, SentAt: time.Now().UTC()}, nil
}

func (t *SMTPTransport) Verify(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		sc, err := t.dialer.Dial()
		if err != nil {
			errCh <- err
			return
		}
		errCh <- sc.Close()
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("verify smtp %s:%d: %w", t.GetHost(), t.GetPort(), ctx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("verify smtp %s:%d: %w", t.GetHost(), t.GetPort(), err)
		}
		return nil
	}
}
