// Package dispatch works a campaign's pending recipients through the providers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/database"
	"github.com/herald/herald/internal/events"
	"github.com/herald/herald/internal/logger"
	"github.com/herald/herald/internal/metrics"
	"github.com/herald/herald/internal/model"
	"github.com/herald/herald/internal/provider"
	"github.com/herald/herald/internal/render"
	"github.com/herald/herald/internal/repository"
)

// CampaignStore is the campaign storage the engine needs
type CampaignStore interface {
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	RefreshCompletion(ctx context.Context, campaignID string) (bool, error)
}

// RecipientStore is the recipient storage the engine needs, including the claim protocol
type RecipientStore interface {
	ListPending(ctx context.Context, campaignID string) ([]*model.Recipient, error)
	Claim(ctx context.Context, recipientID, token string, lease time.Duration) (bool, error)
	SaveOutcome(ctx context.Context, o *model.Outcome) error
	MarkFailed(ctx context.Context, recipientID, token, reason string) error
}

// Locker serializes invocations on the same campaign
type Locker interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) error
	Unlock(ctx context.Context, key, token string) error
}

// ProviderFactory resolves the providers for one invocation. It returns a
// *provider.InitError when a configured provider cannot be built.
type ProviderFactory func(ctx context.Context) (*provider.Set, error)

// Result is what one invocation did
type Result struct {
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Completed bool `json:"completed"`
}

// Engine runs dispatches
type Engine struct {
	campaigns  CampaignStore
	recipients RecipientStore
	providers  ProviderFactory
	locker     Locker
	publisher  events.Publisher
	cfg        config.DispatchConfig
	log        *logger.Logger
}

// Option customizes an Engine
type Option func(*Engine)

// WithLocker enables the per-campaign lock
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithPublisher sets where outcome events go
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// NewEngine creates a new Engine
func NewEngine(campaigns CampaignStore, recipients RecipientStore, providers ProviderFactory, cfg config.DispatchConfig, log *logger.Logger, opts ...Option) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	e := &Engine{
		campaigns:  campaigns,
		recipients: recipients,
		providers:  providers,
		publisher:  events.Noop{},
		cfg:        cfg,
		log:        log.WithComponent("dispatch"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type recipientResult int

const (
	resultSkipped recipientResult = iota
	resultSent
	resultFailed
)

// Dispatch sends the campaign to every recipient still pending. Per-recipient
// failures never abort the run; campaign-level problems are returned as errors
// before any recipient is touched.
func (e *Engine) Dispatch(ctx context.Context, campaignID string) (res *Result, err error) {
	defer func() { metrics.DispatchRuns.WithLabelValues(runLabel(err)).Inc() }()

	log := e.log.WithCampaign(campaignID)

	campaign, err := e.campaigns.GetByID(ctx, campaignID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign.Completed {
		return nil, ErrAlreadyCompleted
	}

	pending, err := e.recipients.ListPending(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending recipients: %w", err)
	}
	if len(pending) == 0 {
		return nil, ErrNoPendingRecipients
	}

	if e.locker != nil {
		unlock, err := e.lock(ctx, campaignID, log)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	set, err := e.providers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("provider initialization failed")
		return nil, err
	}

	log.Info().Int("pending", len(pending)).Int("workers", e.cfg.Workers).Msg("dispatch started")
	start := time.Now()

	var sent, failed atomic.Int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.cfg.Workers)

	for _, rc := range pending {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("dispatch cancelled, remaining recipients stay pending")
			break
		}
		sem <- struct{}{}

		wg.Add(1)
		go func(rc *model.Recipient) {
			defer wg.Done()
			defer func() { <-sem }()

			switch e.process(ctx, campaign, set, rc, log) {
			case resultSent:
				sent.Add(1)
			case resultFailed:
				failed.Add(1)
			}
		}(rc)
	}
	wg.Wait()

	// Completion must be recorded even if the caller went away mid-run
	storeCtx := context.WithoutCancel(ctx)
	completed, err := e.campaigns.RefreshCompletion(storeCtx, campaignID)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh campaign completion")
	}
	if completed {
		e.publish(storeCtx, events.Event{Type: events.TypeCampaignCompleted, CampaignID: campaignID}, log)
	}

	res = &Result{Sent: int(sent.Load()), Failed: int(failed.Load()), Completed: completed}
	log.Info().
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Bool("completed", res.Completed).
		Dur("duration", time.Since(start)).
		Msg("dispatch finished")
	return res, nil
}

// lock takes the campaign lock. A Redis outage is logged and tolerated since
// claims alone still prevent double sends.
func (e *Engine) lock(ctx context.Context, campaignID string, log *logger.Logger) (func(), error) {
	key := "herald:dispatch:" + campaignID
	token := uuid.NewString()

	err := e.locker.TryLock(ctx, key, token, e.cfg.LockTTL)
	if errors.Is(err, database.ErrLockHeld) {
		return nil, ErrDispatchInProgress
	}
	if err != nil {
		log.Warn().Err(err).Msg("dispatch lock unavailable, relying on recipient claims")
		return func() {}, nil
	}

	return func() {
		if err := e.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Msg("failed to release dispatch lock")
		}
	}, nil
}

// process claims, delivers and records one recipient
func (e *Engine) process(ctx context.Context, c *model.Campaign, set *provider.Set, rc *model.Recipient, log *logger.Logger) (result recipientResult) {
	token := uuid.NewString()
	claimed, err := e.recipients.Claim(ctx, rc.ID, token, e.cfg.ClaimLease)
	if err != nil {
		log.Error().Err(err).Str("recipient_id", rc.ID).Msg("failed to claim recipient")
		return resultSkipped
	}
	if !claimed {
		log.Debug().Str("recipient_id", rc.ID).Msg("recipient claimed elsewhere, skipping")
		return resultSkipped
	}

	storeCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("recipient_id", rc.ID).Msg("recovered while processing recipient")
			result = e.fail(storeCtx, c.ID, rc.ID, token, log)
		}
	}()

	outcome := e.deliver(ctx, c, set, rc, token)

	if err := e.recipients.SaveOutcome(storeCtx, outcome); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			log.Warn().Str("recipient_id", rc.ID).Msg("claim expired before the outcome was saved")
			return resultSkipped
		}
		log.Error().Err(err).Str("recipient_id", rc.ID).Msg("failed to save recipient outcome")
		return e.fail(storeCtx, c.ID, rc.ID, token, log)
	}

	errMsg := ""
	if outcome.ErrorMessage != nil {
		errMsg = *outcome.ErrorMessage
	}
	log.SendOutcome(rc.ID, string(outcome.Status), outcome.Channels(), errMsg)
	metrics.Recipients.WithLabelValues(string(outcome.Status)).Inc()

	eventType := events.TypeRecipientSent
	if outcome.Status == model.StatusFailed {
		eventType = events.TypeRecipientFailed
	}
	e.publish(storeCtx, events.Event{
		Type:        eventType,
		CampaignID:  c.ID,
		RecipientID: rc.ID,
		Status:      string(outcome.Status),
		Channels:    outcome.Channels(),
		Error:       errMsg,
	}, log)

	if outcome.Status == model.StatusSent {
		return resultSent
	}
	return resultFailed
}

// fail records a generic failure for a claimed recipient whose outcome could
// not be stored. A recipient whose claim has passed to another invocation is
// left to that invocation and not counted here.
func (e *Engine) fail(ctx context.Context, campaignID, recipientID, token string, log *logger.Logger) recipientResult {
	if err := e.recipients.MarkFailed(ctx, recipientID, token, internalError); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			log.Warn().Str("recipient_id", recipientID).Msg("claim expired before the failure was saved")
			return resultSkipped
		}
		log.Error().Err(err).Str("recipient_id", recipientID).Msg("failed to mark recipient failed")
	}
	metrics.Recipients.WithLabelValues(string(model.StatusFailed)).Inc()
	e.publish(ctx, events.Event{
		Type:        events.TypeRecipientFailed,
		CampaignID:  campaignID,
		RecipientID: recipientID,
		Status:      string(model.StatusFailed),
		Error:       internalError,
	}, log)
	return resultFailed
}

// deliver renders the message and sends it over every channel the campaign
// kind and the recipient's contact data allow
func (e *Engine) deliver(ctx context.Context, c *model.Campaign, set *provider.Set, rc *model.Recipient, token string) *model.Outcome {
	outcome := &model.Outcome{RecipientID: rc.ID, ClaimToken: token}

	channels := channelsFor(c.Kind, rc)
	if len(channels) == 0 {
		msg := MissingContactReason(c.Kind)
		outcome.Status = model.StatusFailed
		outcome.ErrorMessage = &msg
		return outcome
	}

	body := render.ForRecipient(c.Template, rc)
	var errs []string
	delivered := false

	for _, ch := range channels {
		p := set.For(ch)
		to := rc.EmailAddress()
		if ch == model.ChannelSMS {
			to = rc.PhoneNumber()
		}

		start := time.Now()
		receipt, err := e.send(ctx, p, provider.Message{To: to, Subject: c.Name, Body: body})
		metrics.SendDuration.WithLabelValues(string(ch), p.Name()).Observe(time.Since(start).Seconds())

		attempt := &model.Attempt{
			ID:           uuid.NewString(),
			RecipientID:  rc.ID,
			Channel:      ch,
			FinalMessage: body,
			Success:      err == nil,
			SentAt:       time.Now().UTC(),
		}
		if err != nil {
			detail := err.Error()
			attempt.ErrorDetail = &detail
			errs = append(errs, channelLabel(c.Kind, ch)+detail)
			metrics.Sends.WithLabelValues(string(ch), p.Name(), "failure").Inc()
		} else {
			delivered = true
			if receipt != nil {
				attempt.ProviderResponse = receipt.Raw
			}
			metrics.Sends.WithLabelValues(string(ch), p.Name(), "success").Inc()
		}
		outcome.Attempts = append(outcome.Attempts, attempt)
	}

	if delivered {
		now := time.Now().UTC()
		outcome.Status = model.StatusSent
		outcome.SentAt = &now
		return outcome
	}

	msg := strings.Join(errs, "; ")
	outcome.Status = model.StatusFailed
	outcome.ErrorMessage = &msg
	return outcome
}

// send bounds a provider call by the configured timeout. The call is detached
// from the caller's cancellation so a started send runs to completion or times
// out. A provider that ignores its context is abandoned rather than waited for.
func (e *Engine) send(ctx context.Context, p provider.Provider, msg provider.Message) (*provider.Receipt, error) {
	ctx = context.WithoutCancel(ctx)
	if e.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SendTimeout)
		defer cancel()
	}

	type reply struct {
		receipt *provider.Receipt
		err     error
	}
	done := make(chan reply, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: &provider.SendError{Provider: p.Name(), Reason: fmt.Sprintf("provider error: %v", r)}}
			}
		}()
		receipt, err := p.Send(ctx, msg)
		done <- reply{receipt: receipt, err: err}
	}()

	select {
	case r := <-done:
		return r.receipt, r.err
	case <-ctx.Done():
		return nil, &provider.SendError{Provider: p.Name(), Reason: "send timed out", Transient: true, Err: ctx.Err()}
	}
}

func (e *Engine) publish(ctx context.Context, ev events.Event, log *logger.Logger) {
	ev.OccurredAt = time.Now().UTC()
	if err := e.publisher.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", ev.Type).Msg("failed to publish event")
	}
}

// channelsFor lists the channels that can be attempted, email first
func channelsFor(kind model.MessageKind, rc *model.Recipient) []model.Channel {
	var out []model.Channel
	if (kind == model.KindEmail || kind == model.KindBoth) && rc.HasEmail() {
		out = append(out, model.ChannelEmail)
	}
	if (kind == model.KindSMS || kind == model.KindBoth) && rc.HasPhone() {
		out = append(out, model.ChannelSMS)
	}
	return out
}

// channelLabel prefixes errors only when several channels may contribute
func channelLabel(kind model.MessageKind, ch model.Channel) string {
	if kind != model.KindBoth {
		return ""
	}
	if ch == model.ChannelEmail {
		return "Email: "
	}
	return "SMS: "
}

func runLabel(err error) string {
	var initErr *provider.InitError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCampaignNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrNoPendingRecipients):
		return "no_pending"
	case errors.Is(err, ErrDispatchInProgress):
		return "in_progress"
	case errors.As(err, &initErr):
		return "init_failed"
	default:
		return "error"
	}
}
