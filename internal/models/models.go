// Package models defines the core data structures for Caredesk.
//
// It includes the persisted records (users, conversations, messages, orders,
// knowledge entries, behavior events, proactive prompts) and the enumerated
// types shared across modules.
package models

import (
	"errors"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message written by the customer.
	RoleUser Role = "user"
	// RoleAssistant marks a message written by the assistant.
	RoleAssistant Role = "assistant"
)

// OrderStatus represents the fulfillment state of an order.
type OrderStatus string

const (
	// OrderStatusProcessing indicates the order has not shipped yet.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusInTransit indicates the order is on its way.
	OrderStatusInTransit OrderStatus = "in_transit"
	// OrderStatusDelivered indicates the order has arrived.
	OrderStatusDelivered OrderStatus = "delivered"
)

// BehaviorEventType enumerates the passive interaction signals the client
// reports. Unknown types are accepted and stored as-is.
type BehaviorEventType string

const (
	EventTimeSpent     BehaviorEventType = "time_spent"
	EventScrollDepth   BehaviorEventType = "scroll_depth"
	EventExitIntent    BehaviorEventType = "exit_intent"
	EventCartAdd       BehaviorEventType = "cart_add"
	EventCartRemove    BehaviorEventType = "cart_remove"
	EventSizeGuideOpen BehaviorEventType = "size_guide_open"
)

// Classification is a rule-derived label summarizing a user's recent
// behavioral pattern within the evaluation window.
type Classification string

const (
	// ClassificationAnxiousBrowser labels heavy cart churn with long dwell time.
	ClassificationAnxiousBrowser Classification = "Anxious Browser"
	// ClassificationHesitantBuyer labels a user who read to the bottom of the
	// page without adding anything to the cart.
	ClassificationHesitantBuyer Classification = "Hesitant Buyer"
	// ClassificationProactiveGreeting is the effective label for a forced
	// evaluation that matched no rule.
	ClassificationProactiveGreeting Classification = "Proactive Greeting"
)

// User is a customer identity. Created on first contact, never deleted.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation groups the messages of a support exchange. Escalated is
// monotonic: once true it never reverts to false.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"` // empty for anonymous conversations
	Escalated bool      `json:"escalated"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single turn fragment. Immutable once written; ordering is by
// creation time ascending.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Order is a read-only projection of a customer order. DeliveryETA is a
// date-only string as reported by the order systems.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId,omitempty"`
	Status      OrderStatus `json:"status"`
	DeliveryETA string      `json:"deliveryEta,omitempty"`
	CreatedAt   time.Time   `json:"createdAt,omitempty"`
}

// KnowledgeEntry is a stored FAQ with a precomputed semantic embedding.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// BehaviorEvent is an append-only timestamped interaction signal.
// EventPayload is type-dependent: {ms}, {percent}, {sku}, or absent.
type BehaviorEvent struct {
	ID           int64                  `json:"id,omitempty"`
	UserID       string                 `json:"userId"`
	SessionID    string                 `json:"sessionId,omitempty"`
	EventType    BehaviorEventType      `json:"eventType"`
	EventPayload map[string]interface{} `json:"eventPayload,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// ProactivePrompt is a system-initiated message produced by one
// classification decision. Engaged is the only mutable field and is written
// at most once per engagement call (last write wins).
type ProactivePrompt struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	SessionID      string         `json:"sessionId,omitempty"`
	Classification Classification `json:"classification"`
	Prompt         string         `json:"prompt"`
	Engaged        *bool          `json:"engaged,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Product is a catalog item surfaced as a purchase suggestion.
type Product struct {
	SKU        string `json:"sku"`
	Title      string `json:"title"`
	Blurb      string `json:"blurb"`
	PriceCents int64  `json:"price"`
}

// Recommendation is an upsell suggestion attached to a reply. Heuristic
// recommendations carry no SKU or price.
type Recommendation struct {
	SKU   string `json:"sku,omitempty"`
	Title string `json:"title"`
	Blurb string `json:"blurb"`
	Price int64  `json:"price,omitempty"`
}

// EscalationSummary is an admin-facing view of an escalated conversation.
type EscalationSummary struct {
	ID          string    `json:"id"`
	Escalated   bool      `json:"escalated"`
	CreatedAt   time.Time `json:"createdAt"`
	LastMessage string    `json:"lastMessage"`
}

// Sentinel errors shared by validation and lookup paths.
var (
	ErrEmptyMessage          = errors.New("message cannot be empty")
	ErrInvalidUserID         = errors.New("userId must be a valid UUID")
	ErrInvalidConversationID = errors.New("conversationId must be a valid UUID")
	ErrMissingUserID         = errors.New("userId is required")
	ErrMissingEventType      = errors.New("eventType is required")
	ErrMissingPromptID       = errors.New("promptId is required")
	ErrMissingEngaged        = errors.New("engaged is required")
)
