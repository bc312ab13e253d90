package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/herald/herald/internal/dispatch"
	"github.com/herald/herald/internal/model"
	"github.com/herald/herald/internal/provider"
	"github.com/herald/herald/internal/service"
)

// CreateCampaign handles POST /api/v1/campaigns
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCampaignRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	summary, err := h.campaigns.CreateCampaign(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// ListCampaigns handles GET /api/v1/campaigns
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.ListCampaigns(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": campaigns})
}

// GetCampaign handles GET /api/v1/campaigns/{id}
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	campaign, err := h.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// CampaignStatus handles GET /api/v1/campaigns/{id}/status
func (h *Handler) CampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	stats, err := h.campaigns.Status(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaignId": id,
		"total":      stats.Total,
		"sent":       stats.Sent,
		"failed":     stats.Failed,
		"pending":    stats.Pending,
		"skipped":    stats.Skipped,
		"completed":  stats.Completed,
	})
}

// DispatchCampaign handles POST /api/v1/campaigns/{id}/dispatch
func (h *Handler) DispatchCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CampaignRecipients handles GET /api/v1/campaigns/{id}/recipients
func (h *Handler) CampaignRecipients(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	status := model.RecipientStatus(r.URL.Query().Get("status"))
	recipients, err := h.campaigns.Recipients(r.Context(), id, status)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recipients": recipients})
}

// RecipientAttempts handles GET /api/v1/recipients/{id}/attempts
func (h *Handler) RecipientAttempts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid recipient id")
		return
	}

	attempts, err := h.campaigns.Attempts(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}

// campaignID extracts the path id. Ids that are not UUIDs cannot exist.
func (h *Handler) campaignID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, r, http.StatusNotFound, "campaign_not_found", dispatch.ErrCampaignNotFound.Error())
		return "", false
	}
	return id, true
}

// handleError maps domain errors to the API error envelope
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var initErr *provider.InitError

	switch {
	case errors.Is(err, dispatch.ErrCampaignNotFound):
		writeError(w, r, http.StatusNotFound, "campaign_not_found", err.Error())
	case errors.Is(err, dispatch.ErrAlreadyCompleted):
		writeError(w, r, http.StatusConflict, "already_completed", err.Error())
	case errors.Is(err, dispatch.ErrNoPendingRecipients):
		writeError(w, r, http.StatusConflict, "no_pending_recipients", err.Error())
	case errors.Is(err, dispatch.ErrDispatchInProgress):
		writeError(w, r, http.StatusConflict, "dispatch_in_progress", err.Error())
	case errors.As(err, &initErr):
		h.log.Error().Err(err).Msg("provider initialization failed")
		writeError(w, r, http.StatusServiceUnavailable, "provider_init_failed", err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
