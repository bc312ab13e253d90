package model

import "time"

// Channel is a single delivery channel
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Attempt is an immutable record of one channel send for one recipient
type Attempt struct {
	ID               string                 `json:"id"`
	RecipientID      string                 `json:"recipientId"`
	Channel          Channel                `json:"channel"`
	FinalMessage     string                 `json:"finalMessage"`
	Success          bool                   `json:"success"`
	SentAt           time.Time              `json:"sentAt"`
	ErrorDetail      *string                `json:"errorDetail,omitempty"`
	ProviderResponse map[string]interface{} `json:"providerResponse,omitempty"`
}

// Outcome is the result of processing one recipient in a dispatch pass.
// It is written atomically: the recipient row and all attempts, or nothing.
type Outcome struct {
	RecipientID  string
	ClaimToken   string
	Status       RecipientStatus
	SentAt       *time.Time
	ErrorMessage *string
	Attempts     []*Attempt
}

// Channels lists the channels that were actually attempted
func (o *Outcome) Channels() []string {
	out := make([]string, 0, len(o.Attempts))
	for _, a := range o.Attempts {
		out = append(out, string(a.Channel))
	}
	return out
}
