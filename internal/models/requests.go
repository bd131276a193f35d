// Package models: HTTP request and response payloads for the Caredesk API.
package models

import (
	"strings"

	"github.com/google/uuid"
)

// FieldErrors maps request field names to validation problems. A nil map
// means the request is valid.
type FieldErrors map[string]string

// APIError is the JSON body returned for failed requests.
type APIError struct {
	Error   string      `json:"error"`
	Details FieldErrors `json:"details,omitempty"`
}

// Error builds an APIError with a message only.
func Error(message string) APIError {
	return APIError{Error: message}
}

// ErrorWithDetails builds an APIError carrying per-field validation problems.
func ErrorWithDetails(message string, details FieldErrors) APIError {
	return APIError{Error: message, Details: details}
}

// OKResponse is the JSON body for acknowledged side-effect requests.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ChatRequest is the payload for POST /api/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	OrderID        string `json:"orderId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
}

// Normalize trims whitespace from every field in place.
func (r *ChatRequest) Normalize() {
	r.Message = strings.TrimSpace(r.Message)
	r.OrderID = strings.TrimSpace(r.OrderID)
	r.ConversationID = strings.TrimSpace(r.ConversationID)
	r.UserID = strings.TrimSpace(r.UserID)
}

// Validate normalizes the request and reports per-field problems.
// The message must be non-empty after trimming; identifiers must be
// well-formed UUIDs when present.
func (r *ChatRequest) Validate() FieldErrors {
	r.Normalize()
	errs := FieldErrors{}
	if r.Message == "" {
		errs["message"] = ErrEmptyMessage.Error()
	}
	if r.UserID != "" {
		if _, err := uuid.Parse(r.UserID); err != nil {
			errs["userId"] = ErrInvalidUserID.Error()
		}
	}
	if r.ConversationID != "" {
		if _, err := uuid.Parse(r.ConversationID); err != nil {
			errs["conversationId"] = ErrInvalidConversationID.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ChatResponse is the payload returned by POST /api/chat.
type ChatResponse struct {
	Reply          string           `json:"reply"`
	Escalated      bool             `json:"escalated"`
	ConversationID string           `json:"conversationId"`
	Suggestions    []Recommendation `json:"suggestions"`
}

// ProactiveChatRequest is the payload for POST /api/chat/proactive.
type ProactiveChatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Validate reports per-field problems for a proactive conversation request.
func (r *ProactiveChatRequest) Validate() FieldErrors {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Message = strings.TrimSpace(r.Message)
	errs := FieldErrors{}
	if r.UserID == "" {
		errs["userId"] = ErrMissingUserID.Error()
	} else if _, err := uuid.Parse(r.UserID); err != nil {
		errs["userId"] = ErrInvalidUserID.Error()
	}
	if r.Message == "" {
		errs["message"] = ErrEmptyMessage.Error()
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ProactiveChatResponse is the payload returned by POST /api/chat/proactive.
type ProactiveChatResponse struct {
	ConversationID string `json:"conversationId"`
}

// MessageView is one element of the message-history listing.
type MessageView struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// MessagesResponse is the payload returned by GET /api/chat/{id}/messages.
type MessagesResponse struct {
	Messages []MessageView `json:"messages"`
}

// BehaviorLogRequest is the payload for POST /api/behavior/log.
type BehaviorLogRequest struct {
	UserID       string                 `json:"userId"`
	SessionID    string                 `json:"sessionId,omitempty"`
	EventType    string                 `json:"eventType"`
	EventPayload map[string]interface{} `json:"eventPayload,omitempty"`
}

// Validate reports per-field problems for a behavior log request.
// The event type is required but unknown types are accepted.
func (r *BehaviorLogRequest) Validate() FieldErrors {
	r.UserID = strings.TrimSpace(r.UserID)
	r.EventType = strings.TrimSpace(r.EventType)
	errs := FieldErrors{}
	if r.UserID == "" {
		errs["userId"] = ErrMissingUserID.Error()
	}
	if r.EventType == "" {
		errs["eventType"] = ErrMissingEventType.Error()
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// BehaviorEvaluateRequest is the payload for POST /api/behavior/evaluate.
type BehaviorEvaluateRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Force     bool   `json:"force,omitempty"`
}

// Validate reports per-field problems for an evaluation request.
func (r *BehaviorEvaluateRequest) Validate() FieldErrors {
	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return FieldErrors{"userId": ErrMissingUserID.Error()}
	}
	return nil
}

// EvaluationResult is the payload returned by POST /api/behavior/evaluate.
type EvaluationResult struct {
	ShouldPrompt   bool           `json:"shouldPrompt"`
	PromptID       string         `json:"promptId,omitempty"`
	Prompt         string         `json:"prompt,omitempty"`
	Classification Classification `json:"classification,omitempty"`
}

// EngagementRequest is the payload for POST /api/behavior/engagement.
type EngagementRequest struct {
	PromptID string `json:"promptId"`
	Engaged  *bool  `json:"engaged"`
}

// Validate reports per-field problems for an engagement request. Engaged is
// a pointer so a missing boolean can be told apart from an explicit false.
func (r *EngagementRequest) Validate() FieldErrors {
	r.PromptID = strings.TrimSpace(r.PromptID)
	errs := FieldErrors{}
	if r.PromptID == "" {
		errs["promptId"] = ErrMissingPromptID.Error()
	}
	if r.Engaged == nil {
		errs["engaged"] = ErrMissingEngaged.Error()
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// EscalationsResponse is the payload returned by GET /api/admin/escalations.
type EscalationsResponse struct {
	Items []EscalationSummary `json:"items"`
}
