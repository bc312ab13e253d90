package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/email"
	"github.com/herald/herald/internal/logger"
	"github.com/herald/herald/internal/model"
)

func TestNewSet_SubstitutesByDefault(t *testing.T) {
	set, err := NewSet(context.Background(), Config{}, logger.Nop())

	require.NoError(t, err)
	assert.Equal(t, "substitute-email", set.Email.Name())
	assert.Equal(t, "substitute-sms", set.SMS.Name())
	assert.Same(t, set.Email, set.For(model.ChannelEmail))
	assert.Same(t, set.SMS, set.For(model.ChannelSMS))
}

func TestNewSet_RealSMSWhenTokenPresent(t *testing.T) {
	cfg := Config{}
	cfg.SMS.Token = "secret"

	set, err := NewSet(context.Background(), cfg, logger.Nop())

	require.NoError(t, err)
	assert.Equal(t, "smsapi", set.SMS.Name())
}

func TestNewSet_InitErrors(t *testing.T) {
	tests := []struct {
		name      string
		transport string
	}{
		{"unknown transport", "carrier-pigeon"},
		{"gmail without credentials", TransportGmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Email: EmailConfig{Transport: tt.transport, From: email.Address{Email: "noreply@example.com"}}}

			_, err := NewSet(context.Background(), cfg, logger.Nop())

			var initErr *InitError
			require.True(t, errors.As(err, &initErr))
			assert.Equal(t, "email", initErr.Provider)
		})
	}
}

func TestUsesRealEmail(t *testing.T) {
	assert.False(t, UsesRealEmail(""))
	assert.False(t, UsesRealEmail("console"))
	assert.False(t, UsesRealEmail(" Local "))
	assert.True(t, UsesRealEmail("gmail"))
	assert.True(t, UsesRealEmail("ses"))
}

func TestOverlay(t *testing.T) {
	base := Config{}
	base.SMS.Token = "from-env"
	base.SMS.From = "HERALD"
	base.Email.Transport = "console"

	entries := []*model.ProviderConfig{
		{Name: "sms-primary", Kind: model.ChannelSMS, Active: true, Config: map[string]string{"token": "db-token", "rate_per_second": "5", "timeout": "3s"}},
		{Name: "disabled", Kind: model.ChannelSMS, Active: false, Config: map[string]string{"token": "ignored"}},
		{Name: "mail", Kind: model.ChannelEmail, Active: true, Config: map[string]string{"transport": "ses", "region": "eu-west-1", "from_address": "shop@example.com"}},
	}

	out, err := Overlay(base, entries)

	require.NoError(t, err)
	assert.Equal(t, "db-token", out.SMS.Token)
	assert.Equal(t, "HERALD", out.SMS.From)
	assert.Equal(t, 5.0, out.SMS.RatePerSecond)
	assert.Equal(t, 3*time.Second, out.SMS.Timeout)
	assert.Equal(t, "ses", out.Email.Transport)
	assert.Equal(t, "eu-west-1", out.Email.SESRegion)
	assert.Equal(t, "shop@example.com", out.Email.From.Email)
	assert.Equal(t, "from-env", base.SMS.Token)
}

func TestOverlay_RejectsBadEntries(t *testing.T) {
	_, err := Overlay(Config{}, []*model.ProviderConfig{
		{Name: "bad", Kind: model.ChannelSMS, Active: true, Config: map[string]string{"rate_per_second": "fast"}},
	})
	assert.Error(t, err)

	_, err = Overlay(Config{}, []*model.ProviderConfig{
		{Name: "push", Kind: "push", Active: true},
	})
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	var pc config.ProvidersConfig
	pc.SMS.Token = "tok"
	pc.Email.Transport = "gmail"
	pc.Email.FromAddress = "noreply@example.com"
	pc.Email.FromName = "Shop"
	pc.Email.SES.Region = "eu-central-1"
	pc.Substitute.EmailFailureRate = 0.05
	pc.Substitute.SMSFailureRate = 0.03

	cfg := ConfigFrom(pc)

	assert.Equal(t, "tok", cfg.SMS.Token)
	assert.Equal(t, "Shop", cfg.Email.From.Name)
	assert.Equal(t, "eu-central-1", cfg.Email.SESRegion)
	assert.Equal(t, 0.05, cfg.EmailSubstitute.FailureRate)
	assert.Equal(t, 0.03, cfg.SMSSubstitute.FailureRate)
}
