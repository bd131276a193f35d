package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/caredesk/caredesk/internal/models"
)

// DefaultFallbackTimeout bounds a single upstream status lookup.
const DefaultFallbackTimeout = 5 * time.Second

// StatusProvider looks up an order in an upstream system.
type StatusProvider interface {
	// OrderStatus returns the order with the given id, or nil when the
	// upstream does not know it.
	OrderStatus(ctx context.Context, id string) (*models.Order, error)
}

// StatusClient queries an HTTP order status service.
type StatusClient struct {
	baseURL string
	client  *http.Client
}

// NewStatusClient creates a status client against the given base URL.
func NewStatusClient(baseURL string) *StatusClient {
	return &StatusClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultFallbackTimeout},
	}
}

type orderStatusPayload struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	DeliveryETA string `json:"delivery_eta"`
}

// OrderStatus fetches GET {baseURL}/order/{id} and maps the response onto an
// order projection.
func (c *StatusClient) OrderStatus(ctx context.Context, id string) (*models.Order, error) {
	u := fmt.Sprintf("%s/order/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build order status request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("StatusClient.OrderStatus request failed", "error", err, "orderID", id)
		return nil, fmt.Errorf("order status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order status service returned %d", resp.StatusCode)
	}

	var payload orderStatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode order status response: %w", err)
	}
	return &models.Order{
		ID:          payload.ID,
		Status:      models.OrderStatus(payload.Status),
		DeliveryETA: payload.DeliveryETA,
	}, nil
}
