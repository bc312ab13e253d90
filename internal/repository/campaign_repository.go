package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/herald/herald/internal/database"
	"github.com/herald/herald/internal/model"
)

// CampaignRepository handles campaign persistence
type CampaignRepository struct {
	db *database.Postgres
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *database.Postgres) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// CreateWithRecipients inserts a campaign and its recipients in one transaction.
// Recipients colliding on (campaign, email, phone) are dropped and reported as duplicates.
func (r *CampaignRepository) CreateWithRecipients(ctx context.Context, c *model.Campaign, recipients []*model.Recipient) (inserted, duplicates int, err error) {
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO campaigns (id, name, template, kind, is_completed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, query, c.ID, c.Name, c.Template, c.Kind, c.Completed, c.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to create campaign: %w", err)
		}

		insert := `
			INSERT INTO recipients (id, campaign_id, first_name, last_name, email, phone,
			    extra_data, status, error_message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT DO NOTHING
		`
		for _, rc := range recipients {
			extraJSON, err := json.Marshal(rc.Extra)
			if err != nil || rc.Extra == nil {
				extraJSON = []byte("{}")
			}
			result, err := tx.ExecContext(ctx, insert,
				rc.ID,
				c.ID,
				rc.FirstName,
				rc.LastName,
				rc.Email,
				rc.Phone,
				extraJSON,
				rc.Status,
				rc.ErrorMessage,
				rc.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to create recipient: %w", err)
			}
			if n, _ := result.RowsAffected(); n == 0 {
				duplicates++
				continue
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, duplicates, nil
}

// GetByID retrieves a campaign by ID
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `
		SELECT id, name, template, kind, is_completed, created_at, sent_at
		FROM campaigns
		WHERE id = $1
	`
	return r.scanCampaign(r.db.QueryRowContext(ctx, query, id))
}

// List returns all campaigns, newest first
func (r *CampaignRepository) List(ctx context.Context) ([]*model.Campaign, error) {
	query := `
		SELECT id, name, template, kind, is_completed, created_at, sent_at
		FROM campaigns
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*model.Campaign
	for rows.Next() {
		c, err := r.scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// RefreshCompletion marks the campaign completed when it has recipients and none
// of them is pending. It never clears the flag and returns its resulting value.
func (r *CampaignRepository) RefreshCompletion(ctx context.Context, campaignID string) (bool, error) {
	query := `
		UPDATE campaigns c
		SET is_completed = TRUE, sent_at = COALESCE(c.sent_at, $2)
		WHERE c.id = $1
		  AND NOT c.is_completed
		  AND EXISTS (SELECT 1 FROM recipients r WHERE r.campaign_id = c.id)
		  AND NOT EXISTS (SELECT 1 FROM recipients r WHERE r.campaign_id = c.id AND r.status = 'pending')
	`
	if _, err := r.db.ExecContext(ctx, query, campaignID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("failed to refresh campaign completion: %w", err)
	}

	var completed bool
	err := r.db.QueryRowContext(ctx, `SELECT is_completed FROM campaigns WHERE id = $1`, campaignID).Scan(&completed)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read campaign completion: %w", err)
	}
	return completed, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *CampaignRepository) scanCampaign(row scanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Template,
		&c.Kind,
		&c.Completed,
		&c.CreatedAt,
		&c.SentAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}
	return &c, nil
}
