// Package store provides storage backends for Caredesk.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL stores selected by DSN. All cross-request state lives here;
// request handling itself is stateless.
package store

import (
	"strings"
	"time"

	"github.com/caredesk/caredesk/internal/models"
)

// Store is the datastore boundary used by the orchestration and behavior
// modules. Read methods return (nil, nil) when the record does not exist.
type Store interface {
	// GetUser returns the user with the given id, or nil if absent.
	GetUser(id string) (*models.User, error)
	// SaveUser inserts or replaces a user record.
	SaveUser(u models.User) error

	// CreateConversation inserts a new conversation.
	CreateConversation(c models.Conversation) error
	// GetConversation returns the conversation with the given id, or nil.
	GetConversation(id string) (*models.Conversation, error)
	// MarkConversationEscalated sets the escalated flag to true. The flag is
	// monotonic: there is no operation that clears it.
	MarkConversationEscalated(id string) error
	// ListEscalations returns up to limit escalated conversations, newest
	// first, each with the content of its latest message.
	ListEscalations(limit int) ([]models.EscalationSummary, error)

	// AddMessage appends a message to a conversation.
	AddMessage(m models.Message) error
	// GetMessages returns a conversation's messages ordered by creation time
	// ascending.
	GetMessages(conversationID string) ([]models.Message, error)

	// SaveOrder inserts or replaces an order projection.
	SaveOrder(o models.Order) error
	// GetOrder returns the order with the given id, or nil.
	GetOrder(id string) (*models.Order, error)
	// ListRecentOrders returns up to limit of the user's orders, newest first.
	ListRecentOrders(userID string, limit int) ([]models.Order, error)

	// AddKnowledgeEntry inserts an FAQ entry with its embedding.
	AddKnowledgeEntry(e models.KnowledgeEntry) error
	// GetKnowledgeEntries returns all FAQ entries.
	GetKnowledgeEntries() ([]models.KnowledgeEntry, error)

	// AddBehaviorEvent appends a behavior event. Events are never mutated.
	AddBehaviorEvent(e models.BehaviorEvent) error
	// GetBehaviorEventsSince returns up to limit of the user's events created
	// at or after since, newest first.
	GetBehaviorEventsSince(userID string, since time.Time, limit int) ([]models.BehaviorEvent, error)
	// DeleteBehaviorEventsBefore removes events older than cutoff and reports
	// how many were deleted.
	DeleteBehaviorEventsBefore(cutoff time.Time) (int64, error)

	// AddProactivePrompt inserts a proactive prompt row.
	AddProactivePrompt(p models.ProactivePrompt) error
	// GetProactivePrompt returns the prompt with the given id, or nil.
	GetProactivePrompt(id string) (*models.ProactivePrompt, error)
	// GetLatestPromptSince returns the user's most recent prompt with the
	// given classification created at or after since, or nil.
	GetLatestPromptSince(userID string, classification models.Classification, since time.Time) (*models.ProactivePrompt, error)
	// SetPromptEngagement records whether a delivered prompt was acted upon.
	// Last write wins; ownership is not verified.
	SetPromptEngagement(promptID string, engaged bool) error

	// AddProduct inserts or replaces a catalog product.
	AddProduct(p models.Product) error
	// ListProducts returns up to limit catalog products.
	ListProducts(limit int) ([]models.Product, error)

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store construction.
type Opts struct {
	// DSN is the database connection string. Postgres URLs and key=value
	// strings select the Postgres store; plain file paths select SQLite.
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite".
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore builds a store from the provided options: Postgres or SQLite when
// a DSN is configured, otherwise the in-memory store.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}
