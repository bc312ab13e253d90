package model

import "time"

// ProviderConfig is a stored provider configuration entry. Config is opaque to
// everything except the provider factory.
type ProviderConfig struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Kind      Channel           `json:"kind"`
	Active    bool              `json:"active"`
	Config    map[string]string `json:"-"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
