package notifier

import (
	"errors"
	"fmt"

	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/export"
	"github.com/ibeckermayer/deepfeed/internal/notifier/providers"
)

// ErrNotConfigured is returned when mail is requested without an [email]
// provider or recipient.
var ErrNotConfigured = errors.New("email is not configured")

// Notifier handles sending snapshot mails
type Notifier struct {
	sender Sender
	to     string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a new notifier with the given sender and default recipient
func New(sender Sender, to string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	var sender Sender

	switch cfg.Provider {
	case "":
		return nil, ErrNotConfigured
	case "smtp":
		sender = providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.FromAddr,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender, cfg.ToAddr), nil
}

// SendSnapshot mails a snapshot. An empty to uses the configured recipient.
func (n *Notifier) SendSnapshot(s *export.Snapshot, to string) error {
	if to == "" {
		to = n.to
	}
	if to == "" {
		return fmt.Errorf("%w: no recipient", ErrNotConfigured)
	}
	return n.sender.Send(to, Subject(s), s.HTML, s.PlainText)
}

// Subject summarises a snapshot for the mail subject line.
func Subject(s *export.Snapshot) string {
	return fmt.Sprintf("deepfeed: %d posts, %s", s.Nodes, s.CreatedAt.Format("Jan 2 15:04"))
}
