package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig holds the configuration for the Gmail transport.
// Either CredentialsJSON (service account with domain-wide delegation) or the
// ClientID/ClientSecret/RefreshToken triple must be set.
type GmailConfig struct {
	CredentialsJSON string
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	From            Address
}

// GmailSender implements Sender using the Gmail API.
type GmailSender struct {
	service *gmail.Service
	from    Address
}

// NewGmailSender creates a new GmailSender.
func NewGmailSender(ctx context.Context, cfg GmailConfig) (*GmailSender, error) {
	if cfg.From.Email == "" {
		return nil, fmt.Errorf("gmail: sender address is required")
	}

	var opt option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		jwtConfig, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmail.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
		}
		// Impersonate the sender mailbox
		jwtConfig.Subject = cfg.From.Email
		opt = option.WithHTTPClient(jwtConfig.Client(ctx))
	case cfg.RefreshToken != "":
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailSendScope},
		}
		opt = option.WithHTTPClient(oauthCfg.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}))
	default:
		return nil, fmt.Errorf("gmail: credentials JSON or refresh token is required")
	}

	svc, err := gmail.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return &GmailSender{service: svc, from: cfg.From}, nil
}

// Send sends a plain-text email via the Gmail API.
func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	raw := buildPlainMIME(g.from, msg)
	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	if _, err := g.service.Users.Messages.Send("me", gmailMsg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: failed to send email: %w", err)
	}
	return nil
}

// buildPlainMIME renders a single-part text/plain message. The subject is
// Q-encoded so campaign names with non-ASCII characters survive.
func buildPlainMIME(from Address, msg Message) string {
	fromHeader := from.Email
	if from.Name != "" {
		fromHeader = mime.QEncoding.Encode("utf-8", from.Name) + " <" + from.Email + ">"
	}
	return strings.Join([]string{
		"From: " + fromHeader,
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 8bit",
		"",
		msg.Body,
	}, "\r\n")
}
