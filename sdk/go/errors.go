package herald

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes returned by the Herald API
const (
	CodeCampaignNotFound    = "campaign_not_found"
	CodeAlreadyCompleted    = "already_completed"
	CodeNoPendingRecipients = "no_pending_recipients"
	CodeDispatchInProgress  = "dispatch_in_progress"
	CodeProviderInitFailed  = "provider_init_failed"
	CodeInvalidRequest      = "invalid_request"
	CodeRateLimitExceeded   = "rate_limit_exceeded"
	CodeUnauthorized        = "unauthorized"
)

// APIError represents an error response from the Herald API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("herald: API error %d [%s]: %s", e.StatusCode, e.Code, e.Message)
}

// apiErrorWrapper matches the Herald API error envelope.
type apiErrorWrapper struct {
	Error *APIError `json:"error"`
}

func parseAPIError(statusCode int, body []byte) error {
	var wrapper apiErrorWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil && wrapper.Error.Code != "" {
		wrapper.Error.StatusCode = statusCode
		return wrapper.Error
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       "unknown",
		Message:    string(body),
	}
}

// IsAPIError checks whether err is an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode reports whether err is an APIError carrying code.
func HasCode(err error, code string) bool {
	apiErr, ok := IsAPIError(err)
	return ok && apiErr.Code == code
}
