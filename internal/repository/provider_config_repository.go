package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/herald/herald/internal/database"
	"github.com/herald/herald/internal/model"
)

// ProviderConfigRepository reads stored provider configuration entries
type ProviderConfigRepository struct {
	db *database.Postgres
}

// NewProviderConfigRepository creates a new ProviderConfigRepository
func NewProviderConfigRepository(db *database.Postgres) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

// ListActive returns active entries ordered by last update, oldest first, so later
// entries of the same kind override earlier ones when applied in order.
func (r *ProviderConfigRepository) ListActive(ctx context.Context) ([]*model.ProviderConfig, error) {
	query := `
		SELECT id, name, kind, is_active, config, created_at, updated_at
		FROM provider_configs
		WHERE is_active
		ORDER BY updated_at, name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider configs: %w", err)
	}
	defer rows.Close()

	var configs []*model.ProviderConfig
	for rows.Next() {
		var pc model.ProviderConfig
		var configJSON []byte
		if err := rows.Scan(
			&pc.ID,
			&pc.Name,
			&pc.Kind,
			&pc.Active,
			&configJSON,
			&pc.CreatedAt,
			&pc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan provider config: %w", err)
		}
		if err := json.Unmarshal(configJSON, &pc.Config); err != nil {
			return nil, fmt.Errorf("provider config %s has an invalid payload: %w", pc.Name, err)
		}
		configs = append(configs, &pc)
	}
	return configs, rows.Err()
}
