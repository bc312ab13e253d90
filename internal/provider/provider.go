// Package provider implements the uniform send contract over email and SMS
// backends, both real and substitute.
package provider

import (
	"context"

	"github.com/herald/herald/internal/model"
)

// Message is one rendered message for one destination. Subject is ignored by SMS providers.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Receipt describes an accepted message
type Receipt struct {
	ID     string
	Points float64
	// Raw is stored as the attempt's provider response
	Raw map[string]interface{}
}

// Provider sends a message through one channel. A nil error means the message was
// accepted; otherwise the error text is the failure reason recorded for the recipient.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

// Set is the pair of providers a dispatch works with
type Set struct {
	Email Provider
	SMS   Provider
}

// For returns the provider serving ch
func (s *Set) For(ch model.Channel) Provider {
	if ch == model.ChannelEmail {
		return s.Email
	}
	return s.SMS
}
