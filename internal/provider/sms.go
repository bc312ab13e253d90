package provider

import (
	"context"
	"errors"

	"github.com/herald/herald/internal/logger"
	"github.com/herald/herald/internal/sms"
)

// gateway is the part of sms.Client the provider needs
type gateway interface {
	Send(ctx context.Context, to, message string) ([]sms.Result, error)
}

// SMSProvider delivers through the SMSAPI gateway
type SMSProvider struct {
	client gateway
	log    *logger.Logger
}

// NewSMSProvider wraps a gateway client
func NewSMSProvider(client gateway, log *logger.Logger) *SMSProvider {
	return &SMSProvider{
		client: client,
		log:    log.WithComponent("sms_provider"),
	}
}

func (p *SMSProvider) Name() string { return "smsapi" }

// Send validates and normalizes the number, then submits the message. Only the
// first per-destination result decides the outcome.
func (p *SMSProvider) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if !ValidPhone(msg.To) {
		return nil, ErrInvalidPhone
	}
	number := NormalizePhone(msg.To)

	results, err := p.client.Send(ctx, number, msg.Body)
	if err != nil {
		var apiErr *sms.APIError
		if errors.As(err, &apiErr) {
			p.log.Error().Int("code", apiErr.Code).Str("to", number).Msg(apiErr.Message)
			return nil, &SendError{Provider: p.Name(), Reason: "SMSAPI: " + apiErr.Message, Err: err}
		}
		p.log.Error().Err(err).Str("to", number).Msg("failed to send SMS")
		return nil, &SendError{Provider: p.Name(), Reason: "error: " + err.Error(), Transient: true, Err: err}
	}

	if len(results) == 0 {
		return nil, &SendError{Provider: p.Name(), Reason: ErrNoResults.Error(), Err: ErrNoResults}
	}

	first := results[0]
	if first.Error != "" {
		p.log.Error().Str("to", number).Str("error", first.Error).Msg("gateway rejected SMS")
		return nil, &SendError{Provider: p.Name(), Reason: first.Error}
	}

	p.log.Info().Str("to", number).Str("id", first.ID).Float64("points", first.Points).Msg("SMS sent")
	return &Receipt{
		ID:     first.ID,
		Points: first.Points,
		Raw: map[string]interface{}{
			"id":     first.ID,
			"points": first.Points,
			"number": first.Number,
			"status": first.Status,
		},
	}, nil
}
