package provider

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/herald/herald/internal/logger"
)

const smsSegmentLength = 160

// Rand is the randomness substitute providers draw from
type Rand interface {
	Float64() float64
	Int64N(n int64) int64
}

// globalRand uses the goroutine-safe top-level functions of math/rand/v2
type globalRand struct{}

func (globalRand) Float64() float64     { return rand.Float64() }
func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// SubstituteSettings tunes simulated latency and fault rate
type SubstituteSettings struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
}

type substitute struct {
	settings SubstituteSettings
	rnd      Rand
	log      *logger.Logger
}

// wait sleeps for a random bounded delay, returning early on cancellation
func (s *substitute) wait(ctx context.Context) error {
	d := s.settings.MinDelay
	if span := s.settings.MaxDelay - s.settings.MinDelay; span > 0 {
		d += time.Duration(s.rnd.Int64N(int64(span) + 1))
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *substitute) unlucky() bool {
	return s.settings.FailureRate > 0 && s.rnd.Float64() < s.settings.FailureRate
}

func receipt(channel string) *Receipt {
	id := "sub-" + uuid.NewString()
	return &Receipt{ID: id, Raw: map[string]interface{}{"id": id, "substitute": channel}}
}

// SubstituteEmail simulates an email backend without touching the network
type SubstituteEmail struct {
	substitute
}

// NewSubstituteEmail creates a no-network email provider
func NewSubstituteEmail(settings SubstituteSettings, rnd Rand, log *logger.Logger) *SubstituteEmail {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &SubstituteEmail{substitute{settings: settings, rnd: rnd, log: log.WithComponent("substitute_email")}}
}

func (p *SubstituteEmail) Name() string { return "substitute-email" }

// Send fails addresses containing "fail@" or "invalid@" and a configured share of
// the rest at random.
func (p *SubstituteEmail) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if !ValidEmail(msg.To) {
		return nil, ErrInvalidEmail
	}
	if err := p.wait(ctx); err != nil {
		return nil, &SendError{Provider: p.Name(), Reason: "send interrupted: " + err.Error(), Transient: true, Err: err}
	}

	to := strings.ToLower(msg.To)
	switch {
	case strings.Contains(to, "fail@"):
		return nil, &SendError{Provider: p.Name(), Reason: "address rejected by mail server"}
	case strings.Contains(to, "invalid@"):
		return nil, ErrInvalidEmail
	case p.unlucky():
		return nil, &SendError{Provider: p.Name(), Reason: "temporary mail server error", Transient: true}
	}

	p.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("substitute email sent")
	return receipt("email"), nil
}

// SubstituteSMS simulates an SMS gateway without touching the network
type SubstituteSMS struct {
	substitute
}

// NewSubstituteSMS creates a no-network SMS provider
func NewSubstituteSMS(settings SubstituteSettings, rnd Rand, log *logger.Logger) *SubstituteSMS {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &SubstituteSMS{substitute{settings: settings, rnd: rnd, log: log.WithComponent("substitute_sms")}}
}

func (p *SubstituteSMS) Name() string { return "substitute-sms" }

// Send fails numbers containing "fail" or starting with "000" and a configured
// share of the rest at random.
func (p *SubstituteSMS) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if !ValidPhone(msg.To) {
		return nil, ErrInvalidPhone
	}
	if n := len([]rune(msg.Body)); n > smsSegmentLength {
		p.log.Warn().Int("length", n).Msg("SMS message longer than one segment")
	}
	if err := p.wait(ctx); err != nil {
		return nil, &SendError{Provider: p.Name(), Reason: "send interrupted: " + err.Error(), Transient: true, Err: err}
	}

	switch {
	case strings.Contains(msg.To, "fail"):
		return nil, &SendError{Provider: p.Name(), Reason: "number rejected by carrier"}
	case strings.HasPrefix(msg.To, "000"):
		return nil, ErrInvalidPhone
	case p.unlucky():
		return nil, &SendError{Provider: p.Name(), Reason: "temporary SMS network error", Transient: true}
	}

	p.log.Info().Str("to", msg.To).Msg("substitute SMS sent")
	return receipt("sms"), nil
}
