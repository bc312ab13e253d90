// Package events publishes dispatch outcomes for downstream consumers.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/database"
	"github.com/herald/herald/internal/logger"
)

// Event types
const (
	TypeRecipientSent     = "recipient.sent"
	TypeRecipientFailed   = "recipient.failed"
	TypeCampaignCompleted = "campaign.completed"
)

// Event describes one dispatch outcome
type Event struct {
	Type        string    `json:"type"`
	CampaignID  string    `json:"campaignId"`
	RecipientID string    `json:"recipientId,omitempty"`
	Status      string    `json:"status,omitempty"`
	Channels    []string  `json:"channels,omitempty"`
	Error       string    `json:"error,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// key partitions events so one campaign's events stay ordered
func (e Event) key() string {
	return e.CampaignID
}

// Publisher delivers events. Callers treat errors as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// New builds the publisher selected by cfg.Transport. rdb may be nil unless the
// transport is "redis".
func New(cfg config.EventsConfig, rdb *database.Redis, log *logger.Logger) (Publisher, error) {
	switch strings.ToLower(cfg.Transport) {
	case "", "none":
		return Noop{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic, log)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("events: redis transport requires redis to be enabled")
		}
		return NewRedisPublisher(rdb, cfg.Channel, log), nil
	default:
		return nil, fmt.Errorf("events: unknown transport %q", cfg.Transport)
	}
}
