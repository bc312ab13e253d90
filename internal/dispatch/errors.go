package dispatch

import (
	"errors"

	"github.com/herald/herald/internal/model"
)

// Campaign-level errors returned by Dispatch
var (
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrAlreadyCompleted    = errors.New("campaign already completed")
	ErrNoPendingRecipients = errors.New("no pending recipients")
	ErrDispatchInProgress  = errors.New("dispatch already in progress")
)

// ErrMissingContact is recorded for a recipient that has none of the contact
// data its campaign kind needs, so no channel could be attempted.
var ErrMissingContact = errors.New("missing required contact")

// internalError is stored when a recipient's outcome could not be persisted
const internalError = "internal server error"

// MissingContactReason is the failure text for a recipient lacking what kind needs
func MissingContactReason(kind model.MessageKind) string {
	switch kind {
	case model.KindEmail:
		return ErrMissingContact.Error() + ": email"
	case model.KindSMS:
		return ErrMissingContact.Error() + ": phone"
	default:
		return ErrMissingContact.Error() + ": email or phone"
	}
}
