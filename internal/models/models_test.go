package models

import "testing"

func TestChatRequestValidate_TrimsAndAccepts(t *testing.T) {
	req := ChatRequest{
		Message:        "  where is my order?  ",
		UserID:         " 7f9c24e8-3b31-4f7a-9c3a-1f2d3e4a5b6c ",
		ConversationID: "",
		OrderID:        " ORDER-1001 ",
	}
	if errs := req.Validate(); errs != nil {
		t.Fatalf("expected valid request, got %v", errs)
	}
	if req.Message != "where is my order?" {
		t.Errorf("message not trimmed: %q", req.Message)
	}
	if req.OrderID != "ORDER-1001" {
		t.Errorf("orderId not trimmed: %q", req.OrderID)
	}
}

func TestChatRequestValidate_EmptyMessage(t *testing.T) {
	req := ChatRequest{Message: "   "}
	errs := req.Validate()
	if errs == nil {
		t.Fatal("expected validation errors for blank message")
	}
	if _, ok := errs["message"]; !ok {
		t.Errorf("expected message field error, got %v", errs)
	}
}

func TestChatRequestValidate_MalformedIdentifiers(t *testing.T) {
	req := ChatRequest{Message: "hi", UserID: "not-a-uuid", ConversationID: "also-bad"}
	errs := req.Validate()
	if errs == nil {
		t.Fatal("expected validation errors for malformed identifiers")
	}
	if _, ok := errs["userId"]; !ok {
		t.Errorf("expected userId field error, got %v", errs)
	}
	if _, ok := errs["conversationId"]; !ok {
		t.Errorf("expected conversationId field error, got %v", errs)
	}
}

func TestBehaviorLogRequestValidate(t *testing.T) {
	req := BehaviorLogRequest{UserID: "u1"}
	errs := req.Validate()
	if errs == nil {
		t.Fatal("expected eventType error")
	}
	if _, ok := errs["eventType"]; !ok {
		t.Errorf("expected eventType field error, got %v", errs)
	}

	// Unknown event types are accepted and stored as-is.
	req = BehaviorLogRequest{UserID: "u1", EventType: "hover_zoom"}
	if errs := req.Validate(); errs != nil {
		t.Errorf("unknown event type should validate, got %v", errs)
	}
}

func TestEngagementRequestValidate(t *testing.T) {
	req := EngagementRequest{}
	errs := req.Validate()
	if _, ok := errs["promptId"]; !ok {
		t.Errorf("expected promptId field error, got %v", errs)
	}
	if _, ok := errs["engaged"]; !ok {
		t.Errorf("expected engaged field error, got %v", errs)
	}

	engaged := false
	req = EngagementRequest{PromptID: "p1", Engaged: &engaged}
	if errs := req.Validate(); errs != nil {
		t.Errorf("explicit false engaged should validate, got %v", errs)
	}
}
