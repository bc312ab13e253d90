// Package email holds the mail transports used by the real email provider.
package email

import "context"

// Sender is implemented by every mail transport (Gmail API, Amazon SES).
// Validation and error reporting are the caller's job; a Sender only delivers.
type Sender interface {
	// Send delivers msg to exactly one recipient
	Send(ctx context.Context, msg Message) error
}

// Message is a plain-text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Address is a sender identity
type Address struct {
	Email string
	Name  string
}

// String formats the address for a From header
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}
