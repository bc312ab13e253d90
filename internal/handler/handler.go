package handler

import (
	"context"

	"github.com/herald/herald/internal/dispatch"
	"github.com/herald/herald/internal/logger"
	"github.com/herald/herald/internal/model"
	"github.com/herald/herald/internal/service"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// CampaignService is the campaign API the handlers call
type CampaignService interface {
	CreateCampaign(ctx context.Context, req service.CreateCampaignRequest) (*service.ImportSummary, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*model.CampaignWithStats, error)
	Status(ctx context.Context, id string) (*model.CampaignStats, error)
	Recipients(ctx context.Context, campaignID string, status model.RecipientStatus) ([]*model.RecipientView, error)
	Attempts(ctx context.Context, recipientID string) ([]*model.Attempt, error)
}

// Dispatcher runs a campaign dispatch
type Dispatcher interface {
	Dispatch(ctx context.Context, campaignID string) (*dispatch.Result, error)
}

// HealthChecker is a dependency that can report its health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds all HTTP handlers
type Handler struct {
	db         HealthChecker
	rdb        HealthChecker
	log        *logger.Logger
	campaigns  CampaignService
	dispatcher Dispatcher
}

// New creates a new Handler instance. rdb is nil when Redis is disabled.
func New(db, rdb HealthChecker, log *logger.Logger, campaigns CampaignService, dispatcher Dispatcher) *Handler {
	return &Handler{
		db:         db,
		rdb:        rdb,
		log:        log.WithComponent("handler"),
		campaigns:  campaigns,
		dispatcher: dispatcher,
	}
}
