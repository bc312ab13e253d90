package provider

import (
	"context"

	"github.com/herald/herald/internal/email"
	"github.com/herald/herald/internal/logger"
)

// EmailProvider delivers through a real mail transport
type EmailProvider struct {
	name      string
	transport email.Sender
	log       *logger.Logger
}

// NewEmailProvider wraps a transport. name identifies the transport in logs and receipts.
func NewEmailProvider(name string, transport email.Sender, log *logger.Logger) *EmailProvider {
	return &EmailProvider{
		name:      name,
		transport: transport,
		log:       log.WithComponent("email_provider"),
	}
}

func (p *EmailProvider) Name() string { return p.name }

// Send validates the address and hands the message to the transport. Transport
// errors are reported as a failed send, never passed through as-is.
func (p *EmailProvider) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if !ValidEmail(msg.To) {
		return nil, ErrInvalidEmail
	}

	err := p.transport.Send(ctx, email.Message{
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		p.log.Error().Err(err).Str("to", msg.To).Msg("failed to send email")
		return nil, &SendError{
			Provider:  p.name,
			Reason:    "send failed: " + err.Error(),
			Transient: true,
			Err:       err,
		}
	}

	p.log.Info().Str("to", msg.To).Msg("email sent")
	return &Receipt{Raw: map[string]interface{}{"transport": p.name}}, nil
}
