package model

import "time"

// MessageKind is the channel set a campaign is sent through
type MessageKind string

const (
	KindEmail MessageKind = "email"
	KindSMS   MessageKind = "sms"
	KindBoth  MessageKind = "both"
)

// Valid reports whether k is one of the known kinds
func (k MessageKind) Valid() bool {
	switch k {
	case KindEmail, KindSMS, KindBoth:
		return true
	}
	return false
}

// Campaign is a named batch send job with one message template
type Campaign struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Template  string      `json:"template"`
	Kind      MessageKind `json:"kind"`
	Completed bool        `json:"completed"`
	CreatedAt time.Time   `json:"createdAt"`
	SentAt    *time.Time  `json:"sentAt,omitempty"`
}

// CampaignStats holds recipient counts per status
type CampaignStats struct {
	Total     int  `json:"total"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Pending   int  `json:"pending"`
	Skipped   int  `json:"skipped"`
	Completed bool `json:"completed"`
}

// NewCampaignStats folds per-status counts into totals
func NewCampaignStats(counts map[RecipientStatus]int, completed bool) CampaignStats {
	s := CampaignStats{
		Sent:      counts[StatusSent],
		Failed:    counts[StatusFailed],
		Pending:   counts[StatusPending],
		Skipped:   counts[StatusSkipped],
		Completed: completed,
	}
	for _, n := range counts {
		s.Total += n
	}
	return s
}

// ShouldComplete reports whether a campaign with these counts has nothing left to send
func (s CampaignStats) ShouldComplete() bool {
	return s.Total > 0 && s.Pending == 0
}

// CampaignWithStats combines a Campaign and its CampaignStats
type CampaignWithStats struct {
	Campaign `json:"campaign"`
	Stats    CampaignStats `json:"stats"`
}
