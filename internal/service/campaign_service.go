package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/herald/herald/internal/dispatch"
	"github.com/herald/herald/internal/logger"
	"github.com/herald/herald/internal/model"
	"github.com/herald/herald/internal/provider"
	"github.com/herald/herald/internal/render"
	"github.com/herald/herald/internal/repository"
)

// ErrInvalidInput marks a request the caller has to fix
var ErrInvalidInput = errors.New("invalid input")

// Column limits of the recipients and campaigns tables
const (
	maxCampaignNameLength = 100
	maxNameLength         = 50
	maxEmailLength        = 254
	maxPhoneLength        = 20
)

// CampaignRepository is the campaign storage used by CampaignService
type CampaignRepository interface {
	CreateWithRecipients(ctx context.Context, c *model.Campaign, recipients []*model.Recipient) (inserted, duplicates int, err error)
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context) ([]*model.Campaign, error)
	RefreshCompletion(ctx context.Context, campaignID string) (bool, error)
}

// RecipientRepository is the recipient storage used by CampaignService
type RecipientRepository interface {
	ListByCampaign(ctx context.Context, campaignID string, status model.RecipientStatus) ([]*model.Recipient, error)
	CountByStatus(ctx context.Context, campaignID string) (map[model.RecipientStatus]int, error)
}

// AttemptRepository is the attempt log used by CampaignService
type AttemptRepository interface {
	ListByRecipient(ctx context.Context, recipientID string) ([]*model.Attempt, error)
	LatestMessages(ctx context.Context, campaignID string) (map[string]string, error)
}

// ImportRow is one normalized row of the recipient dataset
type ImportRow struct {
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// CreateCampaignRequest is the input of CreateCampaign
type CreateCampaignRequest struct {
	Name       string            `json:"name"`
	Kind       model.MessageKind `json:"kind"`
	Template   string            `json:"template"`
	Recipients []ImportRow       `json:"recipients"`
}

// ImportSummary reports what happened to the submitted rows
type ImportSummary struct {
	CampaignID string `json:"campaignId"`
	// Created counts recipients stored as pending
	Created int `json:"created"`
	// Skipped counts recipients stored as skipped for lacking the required contact
	Skipped    int `json:"skipped"`
	Rejected   int `json:"rejected"`
	Duplicates int `json:"duplicates"`
	TotalRows  int `json:"totalRows"`
}

// CampaignService handles campaign creation and reporting
type CampaignService struct {
	campaigns  CampaignRepository
	recipients RecipientRepository
	attempts   AttemptRepository
	log        *logger.Logger
}

// NewCampaignService creates a new CampaignService
func NewCampaignService(
	campaigns CampaignRepository,
	recipients RecipientRepository,
	attempts AttemptRepository,
	log *logger.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns:  campaigns,
		recipients: recipients,
		attempts:   attempts,
		log:        log.WithComponent("campaign_service"),
	}
}

// CreateCampaign validates the request, applies the import rules and stores the
// campaign with its recipients atomically.
func (s *CampaignService) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*ImportSummary, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: kind must be one of email, sms, both", ErrInvalidInput)
	}
	if len([]rune(name)) > maxCampaignNameLength {
		return nil, fmt.Errorf("%w: name must be at most %d characters", ErrInvalidInput, maxCampaignNameLength)
	}
	if strings.TrimSpace(req.Template) == "" {
		return nil, fmt.Errorf("%w: template is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	campaign := &model.Campaign{
		ID:        uuid.New().String(),
		Name:      name,
		Template:  req.Template,
		Kind:      req.Kind,
		CreatedAt: now,
	}

	recipients, summary := NormalizeRows(req.Kind, req.Recipients, now)
	summary.CampaignID = campaign.ID

	inserted, duplicates, err := s.campaigns.CreateWithRecipients(ctx, campaign, recipients)
	if err != nil {
		return nil, err
	}
	if duplicates > 0 {
		// Rows the store dropped were counted as created above
		summary.Duplicates += duplicates
		summary.Created = inserted - summary.Skipped
	}

	s.log.Info().
		Str("campaign_id", campaign.ID).
		Str("kind", string(campaign.Kind)).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("rejected", summary.Rejected).
		Int("duplicates", summary.Duplicates).
		Msg("campaign created")

	return summary, nil
}

// NormalizeRows turns imported rows into recipients:
//   - a row with neither first nor last name is rejected
//   - an invalid email or phone is dropped
//   - a row without the contact its kind requires is stored as skipped
//   - repeated (email, phone) pairs are counted as duplicates and dropped
func NormalizeRows(kind model.MessageKind, rows []ImportRow, now time.Time) ([]*model.Recipient, *ImportSummary) {
	summary := &ImportSummary{TotalRows: len(rows)}
	recipients := make([]*model.Recipient, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		first := strings.TrimSpace(row.FirstName)
		last := strings.TrimSpace(row.LastName)
		if first == "" && last == "" {
			summary.Rejected++
			continue
		}

		email := normalizeEmail(row.Email)
		phone := normalizePhone(row.Phone)

		if email != nil || phone != nil {
			key := strings.ToLower(deref(email)) + "|" + deref(phone)
			if seen[key] {
				summary.Duplicates++
				continue
			}
			seen[key] = true
		}

		rc := &model.Recipient{
			ID:        uuid.New().String(),
			FirstName: clip(first, maxNameLength),
			LastName:  clip(last, maxNameLength),
			Email:     email,
			Phone:     phone,
			Extra:     trimExtra(row.Extra),
			Status:    model.StatusPending,
			// Keep import order stable for dispatch
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
		if !hasRequiredContact(kind, rc) {
			reason := dispatch.MissingContactReason(kind)
			rc.Status = model.StatusSkipped
			rc.ErrorMessage = &reason
			summary.Skipped++
		} else {
			summary.Created++
		}
		recipients = append(recipients, rc)
	}

	return recipients, summary
}

// GetCampaign returns a campaign by id
func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, dispatch.ErrCampaignNotFound
	}
	return c, err
}

// Status returns per-status counts and re-derives completion. Repeated calls
// on a finished campaign return the same counts.
func (s *CampaignService) Status(ctx context.Context, id string) (*model.CampaignStats, error) {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats(ctx, c)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListCampaigns returns every campaign with its counts, newest first
func (s *CampaignService) ListCampaigns(ctx context.Context) ([]*model.CampaignWithStats, error) {
	campaigns, err := s.campaigns.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.CampaignWithStats, 0, len(campaigns))
	for _, c := range campaigns {
		stats, err := s.stats(ctx, c)
		if err != nil {
			return nil, err
		}
		c.Completed = stats.Completed
		out = append(out, &model.CampaignWithStats{Campaign: *c, Stats: stats})
	}
	return out, nil
}

// Recipients lists a campaign's recipients with the message each one received,
// or would receive, optionally filtered by status
func (s *CampaignService) Recipients(ctx context.Context, campaignID string, status model.RecipientStatus) ([]*model.RecipientView, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	c, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	recipients, err := s.recipients.ListByCampaign(ctx, campaignID, status)
	if err != nil {
		return nil, err
	}
	messages, err := s.attempts.LatestMessages(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	views := make([]*model.RecipientView, 0, len(recipients))
	for _, rc := range recipients {
		msg, ok := messages[rc.ID]
		if !ok {
			msg = render.ForRecipient(c.Template, rc)
		}
		views = append(views, &model.RecipientView{Recipient: *rc, Message: msg})
	}
	return views, nil
}

// Attempts returns a recipient's attempt log, newest first
func (s *CampaignService) Attempts(ctx context.Context, recipientID string) ([]*model.Attempt, error) {
	attempts, err := s.attempts.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []*model.Attempt{}
	}
	return attempts, nil
}

func (s *CampaignService) stats(ctx context.Context, c *model.Campaign) (model.CampaignStats, error) {
	counts, err := s.recipients.CountByStatus(ctx, c.ID)
	if err != nil {
		return model.CampaignStats{}, err
	}
	stats := model.NewCampaignStats(counts, c.Completed)

	if !c.Completed && stats.ShouldComplete() {
		completed, err := s.campaigns.RefreshCompletion(ctx, c.ID)
		if err != nil {
			return model.CampaignStats{}, err
		}
		stats.Completed = completed
	}
	return stats, nil
}

func hasRequiredContact(kind model.MessageKind, rc *model.Recipient) bool {
	switch kind {
	case model.KindEmail:
		return rc.HasEmail()
	case model.KindSMS:
		return rc.HasPhone()
	default:
		return rc.HasEmail() || rc.HasPhone()
	}
}

func normalizeEmail(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxEmailLength || !provider.ValidEmail(s) {
		return nil
	}
	return &s
}

func normalizePhone(s string) *string {
	s = provider.CleanPhone(strings.TrimSpace(s))
	if s == "" || len(s) > maxPhoneLength || !provider.ValidPhone(s) {
		return nil
	}
	return &s
}

func trimExtra(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
