// Package store: PostgreSQL-backed implementation.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/caredesk/caredesk/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetUser(id string) (*models.User, error) {
	var u models.User
	var email sql.NullString
	err := s.db.QueryRow(`SELECT id, email, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	u.Email = email.String
	return &u, nil
}

func (s *PostgresStore) SaveUser(u models.User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`,
		u.ID, nilIfEmpty(u.Email), u.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveUser failed", "error", err, "id", u.ID)
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *PostgresStore) CreateConversation(c models.Conversation) error {
	_, err := s.db.Exec(`INSERT INTO conversations (id, user_id, escalated, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, nilIfEmpty(c.UserID), c.Escalated, c.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateConversation failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to insert conversation %s: %w", c.ID, err)
	}
	slog.Debug("PostgresStore CreateConversation succeeded", "id", c.ID, "escalated", c.Escalated)
	return nil
}

func (s *PostgresStore) GetConversation(id string) (*models.Conversation, error) {
	row := s.db.QueryRow(`SELECT id, user_id, escalated, created_at FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query conversation %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) MarkConversationEscalated(id string) error {
	_, err := s.db.Exec(`UPDATE conversations SET escalated = TRUE WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore MarkConversationEscalated failed", "error", err, "id", id)
		return fmt.Errorf("failed to escalate conversation %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListEscalations(limit int) ([]models.EscalationSummary, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.escalated, c.created_at,
		       COALESCE((SELECT m.content FROM messages m
		                 WHERE m.conversation_id = c.id
		                 ORDER BY m.created_at DESC LIMIT 1), '')
		FROM conversations c
		WHERE c.escalated
		ORDER BY c.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresStore ListEscalations query failed", "error", err)
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	var summaries []models.EscalationSummary
	for rows.Next() {
		var e models.EscalationSummary
		if err := rows.Scan(&e.ID, &e.Escalated, &e.CreatedAt, &e.LastMessage); err != nil {
			slog.Error("PostgresStore ListEscalations scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan escalation row: %w", err)
		}
		summaries = append(summaries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate escalation rows: %w", err)
	}
	return summaries, nil
}

func (s *PostgresStore) AddMessage(m models.Message) error {
	_, err := s.db.Exec(`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to insert message for conversation %s: %w", m.ConversationID, err)
	}
	return nil
}

func (s *PostgresStore) GetMessages(conversationID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, content, created_at FROM messages
		WHERE conversation_id = $1 ORDER BY created_at ASC`, conversationID)
	if err != nil {
		slog.Error("PostgresStore GetMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			slog.Error("PostgresStore GetMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

func (s *PostgresStore) SaveOrder(o models.Order) error {
	_, err := s.db.Exec(`INSERT INTO orders (id, user_id, status, delivery_eta, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, delivery_eta = EXCLUDED.delivery_eta`,
		o.ID, nilIfEmpty(o.UserID), o.Status, nilIfEmpty(o.DeliveryETA), o.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveOrder failed", "error", err, "id", o.ID)
		return fmt.Errorf("failed to save order %s: %w", o.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(id string) (*models.Order, error) {
	row := s.db.QueryRow(`SELECT id, user_id, status, delivery_eta, created_at FROM orders WHERE id = $1`, id)
	o, err := scanOrderColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetOrder failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query order %s: %w", id, err)
	}
	return &o, nil
}

func (s *PostgresStore) ListRecentOrders(userID string, limit int) ([]models.Order, error) {
	rows, err := s.db.Query(`SELECT id, user_id, status, delivery_eta, created_at FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		slog.Error("PostgresStore ListRecentOrders query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrderColumns(rows.Scan)
		if err != nil {
			slog.Error("PostgresStore ListRecentOrders scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}
	return orders, nil
}

func (s *PostgresStore) AddKnowledgeEntry(e models.KnowledgeEntry) error {
	embedding, err := marshalJSONColumn(e.Embedding)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO knowledge_entries (id, question, answer, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET question = EXCLUDED.question, answer = EXCLUDED.answer, embedding = EXCLUDED.embedding`,
		e.ID, e.Question, e.Answer, embedding)
	if err != nil {
		slog.Error("PostgresStore AddKnowledgeEntry failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to save knowledge entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetKnowledgeEntries() ([]models.KnowledgeEntry, error) {
	rows, err := s.db.Query(`SELECT id, question, answer, embedding FROM knowledge_entries`)
	if err != nil {
		slog.Error("PostgresStore GetKnowledgeEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeEntry
	for rows.Next() {
		var e models.KnowledgeEntry
		var embedding sql.NullString
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &embedding); err != nil {
			slog.Error("PostgresStore GetKnowledgeEntries scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan knowledge entry row: %w", err)
		}
		e.Embedding = unmarshalEmbedding(embedding)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge entry rows: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) AddBehaviorEvent(e models.BehaviorEvent) error {
	payload, err := marshalJSONColumn(e.EventPayload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO behavior_events (user_id, session_id, event_type, event_payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.UserID, nilIfEmpty(e.SessionID), e.EventType, payload, e.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddBehaviorEvent failed", "error", err, "userID", e.UserID, "type", e.EventType)
		return fmt.Errorf("failed to insert behavior event for %s: %w", e.UserID, err)
	}
	return nil
}

func (s *PostgresStore) GetBehaviorEventsSince(userID string, since time.Time, limit int) ([]models.BehaviorEvent, error) {
	rows, err := s.db.Query(`SELECT id, user_id, session_id, event_type, event_payload, created_at FROM behavior_events
		WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at DESC LIMIT $3`, userID, since, limit)
	if err != nil {
		slog.Error("PostgresStore GetBehaviorEventsSince query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query behavior events: %w", err)
	}
	defer rows.Close()

	var events []models.BehaviorEvent
	for rows.Next() {
		var e models.BehaviorEvent
		var sessionID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &sessionID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			slog.Error("PostgresStore GetBehaviorEventsSince scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan behavior event row: %w", err)
		}
		e.SessionID = sessionID.String
		e.EventPayload = unmarshalPayload(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate behavior event rows: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) DeleteBehaviorEventsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM behavior_events WHERE created_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore DeleteBehaviorEventsBefore failed", "error", err)
		return 0, fmt.Errorf("failed to prune behavior events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) AddProactivePrompt(p models.ProactivePrompt) error {
	var engaged interface{}
	if p.Engaged != nil {
		engaged = *p.Engaged
	}
	_, err := s.db.Exec(`INSERT INTO proactive_prompts (id, user_id, session_id, classification, prompt, engaged, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.UserID, nilIfEmpty(p.SessionID), p.Classification, p.Prompt, engaged, p.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddProactivePrompt failed", "error", err, "id", p.ID)
		return fmt.Errorf("failed to insert proactive prompt %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetProactivePrompt(id string) (*models.ProactivePrompt, error) {
	row := s.db.QueryRow(`SELECT id, user_id, session_id, classification, prompt, engaged, created_at FROM proactive_prompts WHERE id = $1`, id)
	p, err := scanPromptColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProactivePrompt failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query proactive prompt %s: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) GetLatestPromptSince(userID string, classification models.Classification, since time.Time) (*models.ProactivePrompt, error) {
	row := s.db.QueryRow(`SELECT id, user_id, session_id, classification, prompt, engaged, created_at FROM proactive_prompts
		WHERE user_id = $1 AND classification = $2 AND created_at >= $3
		ORDER BY created_at DESC LIMIT 1`, userID, classification, since)
	p, err := scanPromptColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLatestPromptSince failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query latest prompt: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SetPromptEngagement(promptID string, engaged bool) error {
	_, err := s.db.Exec(`UPDATE proactive_prompts SET engaged = $1 WHERE id = $2`, engaged, promptID)
	if err != nil {
		slog.Error("PostgresStore SetPromptEngagement failed", "error", err, "promptID", promptID)
		return fmt.Errorf("failed to update engagement for %s: %w", promptID, err)
	}
	return nil
}

func (s *PostgresStore) AddProduct(p models.Product) error {
	_, err := s.db.Exec(`INSERT INTO products (sku, title, blurb, price_cents) VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku) DO UPDATE SET title = EXCLUDED.title, blurb = EXCLUDED.blurb, price_cents = EXCLUDED.price_cents`,
		p.SKU, p.Title, p.Blurb, p.PriceCents)
	if err != nil {
		slog.Error("PostgresStore AddProduct failed", "error", err, "sku", p.SKU)
		return fmt.Errorf("failed to save product %s: %w", p.SKU, err)
	}
	return nil
}

func (s *PostgresStore) ListProducts(limit int) ([]models.Product, error) {
	rows, err := s.db.Query(`SELECT sku, title, blurb, price_cents FROM products LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresStore ListProducts query failed", "error", err)
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.SKU, &p.Title, &p.Blurb, &p.PriceCents); err != nil {
			slog.Error("PostgresStore ListProducts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product rows: %w", err)
	}
	return products, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
