package model

import (
	"strings"
	"time"
)

// RecipientStatus represents where a recipient is in its send lifecycle
type RecipientStatus string

const (
	StatusPending RecipientStatus = "pending"
	StatusSent    RecipientStatus = "sent"
	StatusFailed  RecipientStatus = "failed"
	StatusSkipped RecipientStatus = "skipped"
)

// Valid reports whether s is one of the known statuses
func (s RecipientStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Recipient is one destination within a campaign
type Recipient struct {
	ID           string            `json:"id"`
	CampaignID   string            `json:"campaignId"`
	FirstName    string            `json:"firstName"`
	LastName     string            `json:"lastName"`
	Email        *string           `json:"email,omitempty"`
	Phone        *string           `json:"phone,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
	Status       RecipientStatus   `json:"status"`
	SentAt       *time.Time        `json:"sentAt,omitempty"`
	ErrorMessage *string           `json:"errorMessage,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// FullName returns "first last"
func (r *Recipient) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// EmailAddress returns the email or an empty string
func (r *Recipient) EmailAddress() string {
	if r.Email == nil {
		return ""
	}
	return *r.Email
}

// PhoneNumber returns the phone or an empty string
func (r *Recipient) PhoneNumber() string {
	if r.Phone == nil {
		return ""
	}
	return *r.Phone
}

// HasEmail reports whether the recipient carries an email address
func (r *Recipient) HasEmail() bool {
	return r.EmailAddress() != ""
}

// HasPhone reports whether the recipient carries a phone number
func (r *Recipient) HasPhone() bool {
	return r.PhoneNumber() != ""
}

// RecipientView is a recipient together with the message it received or would receive
type RecipientView struct {
	Recipient
	Message string `json:"message"`
}
