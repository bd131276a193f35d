package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type mockMessageCreator struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (m *mockMessageCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	m.params = params
	return &twilioApi.ApiV2010Message{}, m.err
}

func TestEscalationAlertSendsToAlertNumber(t *testing.T) {
	mock := &mockMessageCreator{}
	n := &TwilioNotifier{api: mock, from: "+15550100", alertTo: "+15550199"}

	err := n.EscalationAlert(context.Background(), "c-1", "where is my refund")
	if err != nil {
		t.Fatalf("EscalationAlert error: %v", err)
	}
	if mock.params == nil {
		t.Fatal("CreateMessage not called")
	}
	if got := *mock.params.To; got != "+15550199" {
		t.Errorf("To = %q, want alert number", got)
	}
	if body := *mock.params.Body; !strings.Contains(body, "c-1") || !strings.Contains(body, "where is my refund") {
		t.Errorf("Body = %q, want conversation id and last message", body)
	}
}

func TestEscalationAlertWrapsError(t *testing.T) {
	mock := &mockMessageCreator{err: errors.New("twilio down")}
	n := &TwilioNotifier{api: mock, from: "+15550100", alertTo: "+15550199"}

	err := n.EscalationAlert(context.Background(), "c-1", "msg")
	if err == nil || !strings.Contains(err.Error(), "twilio down") {
		t.Errorf("expected wrapped twilio error, got %v", err)
	}
}

func TestNewTwilioNotifierRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	t.Setenv("TWILIO_ALERT_TO", "")
	if _, err := NewTwilioNotifier(); err == nil {
		t.Error("expected error without credentials, got nil")
	}
	if _, err := NewTwilioNotifier(WithAccountSID("sid"), WithAuthToken("token")); err == nil {
		t.Error("expected error without numbers, got nil")
	}
	if _, err := NewTwilioNotifier(WithAccountSID("sid"), WithAuthToken("token"), WithFrom("+15550100"), WithAlertTo("+15550199")); err != nil {
		t.Errorf("expected success with full config, got %v", err)
	}
}

func TestNoopNotifier(t *testing.T) {
	if err := (NoopNotifier{}).EscalationAlert(context.Background(), "c-1", "msg"); err != nil {
		t.Errorf("NoopNotifier returned error: %v", err)
	}
}
