package herald

import "time"

// Campaign kinds
const (
	KindEmail = "email"
	KindSMS   = "sms"
	KindBoth  = "both"
)

// Recipient statuses
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Campaign is a named batch send.
type Campaign struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Template  string     `json:"template"`
	Kind      string     `json:"kind"`
	Completed bool       `json:"completed"`
	CreatedAt time.Time  `json:"createdAt"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
}

// Stats holds per-status recipient counts.
type Stats struct {
	Total     int  `json:"total"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Pending   int  `json:"pending"`
	Skipped   int  `json:"skipped"`
	Completed bool `json:"completed"`
}

// CampaignWithStats is one entry of the campaign list.
type CampaignWithStats struct {
	Campaign Campaign `json:"campaign"`
	Stats    Stats    `json:"stats"`
}

// Status is returned by the status endpoint.
type Status struct {
	CampaignID string `json:"campaignId"`
	Stats
}

// RecipientRow is one row of the dataset uploaded with a new campaign.
type RecipientRow struct {
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName,omitempty"`
	Email     string            `json:"email,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// CreateCampaignRequest creates a campaign and imports its recipients.
type CreateCampaignRequest struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Template   string         `json:"template"`
	Recipients []RecipientRow `json:"recipients"`
}

// ImportSummary reports what happened to the uploaded rows.
type ImportSummary struct {
	CampaignID string `json:"campaignId"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
	Rejected   int    `json:"rejected"`
	Duplicates int    `json:"duplicates"`
	TotalRows  int    `json:"totalRows"`
}

// DispatchResult is the outcome of one dispatch invocation.
type DispatchResult struct {
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Completed bool `json:"completed"`
}

// Recipient is a campaign recipient together with its personalized message.
type Recipient struct {
	ID           string            `json:"id"`
	CampaignID   string            `json:"campaignId"`
	FirstName    string            `json:"firstName"`
	LastName     string            `json:"lastName"`
	Email        *string           `json:"email,omitempty"`
	Phone        *string           `json:"phone,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
	Status       string            `json:"status"`
	SentAt       *time.Time        `json:"sentAt,omitempty"`
	ErrorMessage *string           `json:"errorMessage,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	Message      string            `json:"message"`
}

// Attempt is one channel send attempt.
type Attempt struct {
	ID               string                 `json:"id"`
	RecipientID      string                 `json:"recipientId"`
	Channel          string                 `json:"channel"`
	FinalMessage     string                 `json:"finalMessage"`
	Success          bool                   `json:"success"`
	SentAt           time.Time              `json:"sentAt"`
	ErrorDetail      *string                `json:"errorDetail,omitempty"`
	ProviderResponse map[string]interface{} `json:"providerResponse,omitempty"`
}

// Health is the health endpoint response.
type Health struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}
