// Package notify delivers escalation alerts to on-call support staff.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers an out-of-band alert when a conversation is escalated.
// Delivery is fire-and-forget: callers observe and discard errors.
type Notifier interface {
	EscalationAlert(ctx context.Context, conversationID, lastMessage string) error
}

// Opts holds configuration options for the Twilio notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	AlertTo    string
}

// Option defines a configuration option for the Twilio notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithAlertTo sets the on-call phone number that receives alerts.
func WithAlertTo(to string) Option {
	return func(o *Opts) { o.AlertTo = to }
}

// messageCreator is the slice of the Twilio API the notifier uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends escalation alerts as SMS through the Twilio API.
type TwilioNotifier struct {
	api     messageCreator
	from    string
	alertTo string
}

// NewTwilioNotifier creates a notifier. Missing option values fall back to
// the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and
// TWILIO_ALERT_TO environment variables.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.AlertTo == "" {
		cfg.AlertTo = os.Getenv("TWILIO_ALERT_TO")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"AlertTo_set", cfg.AlertTo != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.AlertTo == "" {
		return nil, fmt.Errorf("from and alert-to numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{api: client.Api, from: cfg.From, alertTo: cfg.AlertTo}, nil
}

// EscalationAlert sends an SMS describing the escalated conversation.
func (n *TwilioNotifier) EscalationAlert(ctx context.Context, conversationID, lastMessage string) error {
	body := fmt.Sprintf("Conversation %s was escalated. Last message: %s", conversationID, lastMessage)
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.alertTo)
	params.SetFrom(n.from)
	params.SetBody(body)

	if _, err := n.api.CreateMessage(params); err != nil {
		slog.Error("TwilioNotifier.EscalationAlert failed", "conversationID", conversationID, "error", err)
		return fmt.Errorf("failed to send escalation alert for %s: %w", conversationID, err)
	}
	slog.Debug("TwilioNotifier.EscalationAlert sent", "conversationID", conversationID)
	return nil
}

// NoopNotifier discards alerts. Used when Twilio is not configured.
type NoopNotifier struct{}

// EscalationAlert logs the alert and drops it.
func (NoopNotifier) EscalationAlert(ctx context.Context, conversationID, lastMessage string) error {
	slog.Debug("NoopNotifier.EscalationAlert dropped", "conversationID", conversationID)
	return nil
}
