package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/herald/herald/internal/database"
	"github.com/herald/herald/internal/model"
)

// AttemptRepository reads the append-only send attempt log.
// Attempts are written by RecipientRepository.SaveOutcome.
type AttemptRepository struct {
	db *database.Postgres
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.Postgres) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func insertAttempt(ctx context.Context, tx *sql.Tx, a *model.Attempt) error {
	responseJSON, err := json.Marshal(a.ProviderResponse)
	if err != nil || a.ProviderResponse == nil {
		responseJSON = []byte("{}")
	}

	query := `
		INSERT INTO message_attempts (id, recipient_id, channel, final_message, success,
		    sent_at, error_detail, provider_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, query,
		a.ID,
		a.RecipientID,
		a.Channel,
		a.FinalMessage,
		a.Success,
		a.SentAt,
		a.ErrorDetail,
		responseJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create message attempt: %w", err)
	}
	return nil
}

// ListByRecipient returns a recipient's attempts, newest first
func (r *AttemptRepository) ListByRecipient(ctx context.Context, recipientID string) ([]*model.Attempt, error) {
	query := `
		SELECT id, recipient_id, channel, final_message, success, sent_at, error_detail, provider_response
		FROM message_attempts
		WHERE recipient_id = $1
		ORDER BY sent_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list message attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*model.Attempt
	for rows.Next() {
		var a model.Attempt
		var responseJSON []byte
		if err := rows.Scan(
			&a.ID,
			&a.RecipientID,
			&a.Channel,
			&a.FinalMessage,
			&a.Success,
			&a.SentAt,
			&a.ErrorDetail,
			&responseJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message attempt: %w", err)
		}
		if len(responseJSON) > 0 {
			json.Unmarshal(responseJSON, &a.ProviderResponse)
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// LatestMessages returns the most recent final message per recipient of a campaign
func (r *AttemptRepository) LatestMessages(ctx context.Context, campaignID string) (map[string]string, error) {
	query := `
		SELECT DISTINCT ON (a.recipient_id) a.recipient_id, a.final_message
		FROM message_attempts a
		JOIN recipients rc ON rc.id = a.recipient_id
		WHERE rc.campaign_id = $1
		ORDER BY a.recipient_id, a.sent_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest messages: %w", err)
	}
	defer rows.Close()

	messages := make(map[string]string)
	for rows.Next() {
		var recipientID, message string
		if err := rows.Scan(&recipientID, &message); err != nil {
			return nil, fmt.Errorf("failed to scan latest message: %w", err)
		}
		messages[recipientID] = message
	}
	return messages, rows.Err()
}
