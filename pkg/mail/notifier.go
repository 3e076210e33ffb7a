package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
)

// Notifier turns payloads into mails. It implements delivery.Sender.
type Notifier struct {
	transport           Transport
	notificationAddress string
	senderName          string
	log                 *zap.SugaredLogger
}

var _ delivery.Sender = (*Notifier)(nil)

// NewNotifier sends confirmations to the submitter and notifications to
// notificationAddress.
func NewNotifier(transport Transport, notificationAddress, senderName string, log *zap.SugaredLogger) *Notifier {
	return &Notifier{
		transport:           transport,
		notificationAddress: notificationAddress,
		senderName:          senderName,
		log:                 log,
	}
}

func (n *Notifier) SendConfirmation(ctx context.Context, p delivery.Payload) error {
	to := p.SubmitterEmail()
	if to == "" {
		return fmt.Errorf("confirmation for %s inquiry: %w", p.FormType, delivery.ErrNoRecipient)
	}
	r, err := RenderConfirmation(p, n.senderName)
	if err != nil {
		return err
	}
	_, err = n.transport.Send(ctx, Message{To: to, Subject: r.Subject, Text: r.Text})
	return err
}

func (n *Notifier) SendNotification(ctx context.Context, p delivery.Payload) error {
	if n.notificationAddress == "" {
		return fmt.Errorf("notification for %s inquiry: %w", p.FormType, delivery.ErrNoRecipient)
	}
	r, err := RenderNotification(p)
	if err != nil {
		return err
	}
	_, err = n.transport.Send(ctx, Message{
		To:      n.notificationAddress,
		Subject: r.Subject,
		Text:    r.Text,
		ReplyTo: p.SubmitterEmail(),
	})
	return err
}

func (n *Notifier) SendAlert(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("alert %q: %w", subject, delivery.ErrNoRecipient)
	}
	_, err := n.transport.Send(ctx, Message{To: to, Subject: subject, Text: body})
	if err == nil {
		n.log.Infow("Escalation alert sent", "to", to, "subject", subject)
	}
	return err
}
