package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caredesk/caredesk/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalJSONColumn serializes v for a nullable JSON column. Empty values
// become NULL.
func marshalJSONColumn(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		if len(t) == 0 {
			return nil, nil
		}
	case []float64:
		if len(t) == 0 {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal JSON column failed: %w", err)
	}
	return string(b), nil
}

// unmarshalPayload parses a nullable JSON column into an event payload map.
// A malformed column is logged and dropped rather than failing the read.
func unmarshalPayload(raw sql.NullString) map[string]interface{} {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	payload := make(map[string]interface{})
	if err := json.Unmarshal([]byte(raw.String), &payload); err != nil {
		slog.Error("store: failed to unmarshal event payload column", "error", err)
		return nil
	}
	return payload
}

// unmarshalEmbedding parses a nullable JSON column into an embedding vector.
func unmarshalEmbedding(raw sql.NullString) []float64 {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var vec []float64
	if err := json.Unmarshal([]byte(raw.String), &vec); err != nil {
		slog.Error("store: failed to unmarshal embedding column", "error", err)
		return nil
	}
	return vec
}

// scanConversation reads a conversation row from a single sql.Row.
func scanConversation(row *sql.Row) (*models.Conversation, error) {
	var c models.Conversation
	var userID sql.NullString
	err := row.Scan(&c.ID, &userID, &c.Escalated, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.UserID = userID.String
	return &c, nil
}

// scanOrderColumns reads one order row from either *sql.Row or *sql.Rows.
func scanOrderColumns(scan func(dest ...interface{}) error) (models.Order, error) {
	var o models.Order
	var userID, eta sql.NullString
	err := scan(&o.ID, &userID, &o.Status, &eta, &o.CreatedAt)
	if err != nil {
		return o, err
	}
	o.UserID = userID.String
	o.DeliveryETA = eta.String
	return o, nil
}

// scanPromptColumns reads one proactive prompt row.
func scanPromptColumns(scan func(dest ...interface{}) error) (models.ProactivePrompt, error) {
	var p models.ProactivePrompt
	var sessionID sql.NullString
	var engaged sql.NullBool
	err := scan(&p.ID, &p.UserID, &sessionID, &p.Classification, &p.Prompt, &engaged, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	p.SessionID = sessionID.String
	if engaged.Valid {
		v := engaged.Bool
		p.Engaged = &v
	}
	return p, nil
}
