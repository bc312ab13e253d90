package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/email"
	"github.com/herald/herald/internal/logger"
	"github.com/herald/herald/internal/model"
	"github.com/herald/herald/internal/sms"
)

// Email transports
const (
	TransportConsole = "console"
	TransportLocal   = "local"
	TransportGmail   = "gmail"
	TransportSES     = "ses"
)

// Config is everything the factory needs to pick and build providers
type Config struct {
	SMS   sms.Config
	Email EmailConfig

	EmailSubstitute SubstituteSettings
	SMSSubstitute   SubstituteSettings
}

// EmailConfig selects and configures the mail transport
type EmailConfig struct {
	Transport string
	From      email.Address
	Gmail     email.GmailConfig
	SESRegion string
}

// ConfigFrom converts the application configuration
func ConfigFrom(cfg config.ProvidersConfig) Config {
	return Config{
		SMS: sms.Config{
			Token:         cfg.SMS.Token,
			From:          cfg.SMS.From,
			Endpoint:      cfg.SMS.Endpoint,
			Timeout:       cfg.SMS.Timeout,
			RatePerSecond: cfg.SMS.RatePerSecond,
		},
		Email: EmailConfig{
			Transport: cfg.Email.Transport,
			From:      email.Address{Email: cfg.Email.FromAddress, Name: cfg.Email.FromName},
			Gmail: email.GmailConfig{
				CredentialsJSON: cfg.Email.Gmail.CredentialsJSON,
				ClientID:        cfg.Email.Gmail.ClientID,
				ClientSecret:    cfg.Email.Gmail.ClientSecret,
				RefreshToken:    cfg.Email.Gmail.RefreshToken,
			},
			SESRegion: cfg.Email.SES.Region,
		},
		EmailSubstitute: SubstituteSettings{
			MinDelay:    cfg.Substitute.MinDelay,
			MaxDelay:    cfg.Substitute.MaxDelay,
			FailureRate: cfg.Substitute.EmailFailureRate,
		},
		SMSSubstitute: SubstituteSettings{
			MinDelay:    cfg.Substitute.MinDelay,
			MaxDelay:    cfg.Substitute.MaxDelay,
			FailureRate: cfg.Substitute.SMSFailureRate,
		},
	}
}

// Overlay applies stored provider entries on top of base. Entries are applied in
// order; only keys present in an entry change the result.
func Overlay(base Config, entries []*model.ProviderConfig) (Config, error) {
	out := base
	for _, e := range entries {
		if !e.Active {
			continue
		}
		switch e.Kind {
		case model.ChannelSMS:
			setString(&out.SMS.Token, e.Config, "token")
			setString(&out.SMS.From, e.Config, "from")
			setString(&out.SMS.Endpoint, e.Config, "endpoint")
			if v, ok := e.Config["rate_per_second"]; ok {
				rate, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return Config{}, fmt.Errorf("provider config %s: invalid rate_per_second %q", e.Name, v)
				}
				out.SMS.RatePerSecond = rate
			}
			if v, ok := e.Config["timeout"]; ok {
				d, err := time.ParseDuration(v)
				if err != nil {
					return Config{}, fmt.Errorf("provider config %s: invalid timeout %q", e.Name, v)
				}
				out.SMS.Timeout = d
			}
		case model.ChannelEmail:
			setString(&out.Email.Transport, e.Config, "transport")
			setString(&out.Email.From.Email, e.Config, "from_address")
			setString(&out.Email.From.Name, e.Config, "from_name")
			setString(&out.Email.Gmail.CredentialsJSON, e.Config, "credentials_json")
			setString(&out.Email.Gmail.ClientID, e.Config, "client_id")
			setString(&out.Email.Gmail.ClientSecret, e.Config, "client_secret")
			setString(&out.Email.Gmail.RefreshToken, e.Config, "refresh_token")
			setString(&out.Email.SESRegion, e.Config, "region")
		default:
			return Config{}, fmt.Errorf("provider config %s: unknown kind %q", e.Name, e.Kind)
		}
	}
	return out, nil
}

func setString(dst *string, m map[string]string, key string) {
	if v, ok := m[key]; ok {
		*dst = v
	}
}

// SetOption customizes NewSet
type SetOption func(*setOptions)

type setOptions struct {
	rnd Rand
}

// WithRand makes substitute providers draw from rnd
func WithRand(rnd Rand) SetOption {
	return func(o *setOptions) { o.rnd = rnd }
}

// UsesRealEmail reports whether transport selects a real mail backend
func UsesRealEmail(transport string) bool {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "", TransportConsole, TransportLocal:
		return false
	}
	return true
}

// NewSet resolves the providers for one dispatch. A real provider that cannot
// be built yields an *InitError; substitutes never fail.
func NewSet(ctx context.Context, cfg Config, log *logger.Logger, opts ...SetOption) (*Set, error) {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	set := &Set{}

	if cfg.SMS.Token != "" {
		client, err := sms.NewClient(cfg.SMS)
		if err != nil {
			return nil, &InitError{Provider: "sms", Err: err}
		}
		set.SMS = NewSMSProvider(client, log)
		log.Info().Msg("using SMSAPI provider for SMS")
	} else {
		set.SMS = NewSubstituteSMS(cfg.SMSSubstitute, o.rnd, log)
		log.Info().Msg("using substitute SMS provider")
	}

	if UsesRealEmail(cfg.Email.Transport) {
		transport, err := newTransport(ctx, cfg.Email)
		if err != nil {
			return nil, &InitError{Provider: "email", Err: err}
		}
		set.Email = NewEmailProvider(strings.ToLower(cfg.Email.Transport), transport, log)
		log.Info().Str("transport", cfg.Email.Transport).Msg("using real email provider")
	} else {
		set.Email = NewSubstituteEmail(cfg.EmailSubstitute, o.rnd, log)
		log.Info().Msg("using substitute email provider")
	}

	return set, nil
}

func newTransport(ctx context.Context, cfg EmailConfig) (email.Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case TransportGmail:
		gc := cfg.Gmail
		gc.From = cfg.From
		return email.NewGmailSender(ctx, gc)
	case TransportSES:
		return email.NewSESSender(ctx, cfg.SESRegion, cfg.From)
	default:
		return nil, fmt.Errorf("unsupported email transport %q", cfg.Transport)
	}
}
