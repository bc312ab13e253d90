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

const recipientColumns = `id, campaign_id, first_name, last_name, email, phone, extra_data,
	status, sent_at, error_message, created_at`

// RecipientRepository handles recipient persistence and the dispatch claim protocol
type RecipientRepository struct {
	db *database.Postgres
}

// NewRecipientRepository creates a new RecipientRepository
func NewRecipientRepository(db *database.Postgres) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// ListByCampaign returns the campaign's recipients, optionally filtered by status.
// An empty status returns all of them.
func (r *RecipientRepository) ListByCampaign(ctx context.Context, campaignID string, status model.RecipientStatus) ([]*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + `
		FROM recipients
		WHERE campaign_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY sent_at DESC NULLS LAST, last_name, first_name
	`
	return r.query(ctx, query, campaignID, string(status))
}

// ListPending returns the campaign's pending recipients in import order
func (r *RecipientRepository) ListPending(ctx context.Context, campaignID string) ([]*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + `
		FROM recipients
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY created_at, id
	`
	return r.query(ctx, query, campaignID)
}

// Claim reserves a pending recipient for one dispatch invocation. It returns false
// when the recipient is no longer pending or another unexpired claim holds it.
func (r *RecipientRepository) Claim(ctx context.Context, recipientID, token string, lease time.Duration) (bool, error) {
	now := time.Now().UTC()
	query := `
		UPDATE recipients
		SET claim_token = $1, claimed_until = $2
		WHERE id = $3
		  AND status = 'pending'
		  AND (claim_token IS NULL OR claimed_until < $4)
	`
	result, err := r.db.ExecContext(ctx, query, token, now.Add(lease), recipientID, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim recipient: %w", err)
	}
	n, _ := result.RowsAffected()
	return n == 1, nil
}

// SaveOutcome writes the recipient's new status and its attempt records in one
// transaction. It fails with ErrClaimLost if the claim no longer matches.
func (r *RecipientRepository) SaveOutcome(ctx context.Context, o *model.Outcome) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE recipients
			SET status = $1, sent_at = $2, error_message = $3, claim_token = NULL, claimed_until = NULL
			WHERE id = $4 AND status = 'pending' AND claim_token = $5
		`
		result, err := tx.ExecContext(ctx, query, o.Status, o.SentAt, o.ErrorMessage, o.RecipientID, o.ClaimToken)
		if err != nil {
			return fmt.Errorf("failed to update recipient status: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrClaimLost
		}

		for _, a := range o.Attempts {
			if err := insertAttempt(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkFailed records a failure for a claimed recipient without attempt records.
// Used when the regular outcome could not be stored.
func (r *RecipientRepository) MarkFailed(ctx context.Context, recipientID, token, reason string) error {
	query := `
		UPDATE recipients
		SET status = 'failed', error_message = $1, claim_token = NULL, claimed_until = NULL
		WHERE id = $2 AND status = 'pending' AND claim_token = $3
	`
	result, err := r.db.ExecContext(ctx, query, reason, recipientID, token)
	if err != nil {
		return fmt.Errorf("failed to mark recipient failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrClaimLost
	}
	return nil
}

// CountByStatus returns the number of recipients per status for a campaign
func (r *RecipientRepository) CountByStatus(ctx context.Context, campaignID string) (map[model.RecipientStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM recipients WHERE campaign_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count recipients: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.RecipientStatus]int)
	for rows.Next() {
		var status model.RecipientStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan recipient count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *RecipientRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []*model.Recipient
	for rows.Next() {
		rc, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rc)
	}
	return recipients, rows.Err()
}

func scanRecipient(row scanner) (*model.Recipient, error) {
	var rc model.Recipient
	var extraJSON []byte
	err := row.Scan(
		&rc.ID,
		&rc.CampaignID,
		&rc.FirstName,
		&rc.LastName,
		&rc.Email,
		&rc.Phone,
		&extraJSON,
		&rc.Status,
		&rc.SentAt,
		&rc.ErrorMessage,
		&rc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recipient: %w", err)
	}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &rc.Extra); err != nil {
			return nil, fmt.Errorf("failed to decode recipient extra data: %w", err)
		}
	}
	return &rc, nil
}
