package orders

import (
	"context"
	"log/slog"

	"github.com/caredesk/caredesk/internal/models"
	"github.com/caredesk/caredesk/internal/store"
)

// Resolver resolves order references against the store first and the
// upstream status provider second. Resolution is best effort: lookup
// failures degrade to an unresolved order rather than failing the turn.
type Resolver struct {
	st       store.Store
	fallback StatusProvider
}

// NewResolver constructs a resolver. fallback may be nil, in which case only
// the store is consulted.
func NewResolver(st store.Store, fallback StatusProvider) *Resolver {
	return &Resolver{st: st, fallback: fallback}
}

// Resolution carries the outcome of a resolve attempt.
type Resolution struct {
	// Ref is the normalized order reference, "" when the message carried
	// none.
	Ref string
	// Explicit reports whether the reference arrived with the request rather
	// than being extracted from the message text.
	Explicit bool
	// Order is the resolved order, nil when no reference was found or every
	// lookup failed.
	Order *models.Order
}

// Resolve determines the order relevant to a chat turn. An explicit
// reference wins over anything extracted from the message.
func (r *Resolver) Resolve(ctx context.Context, message, explicitRef string) Resolution {
	res := Resolution{}
	if explicitRef != "" {
		res.Ref = explicitRef
		res.Explicit = true
	} else {
		res.Ref = ExtractOrderRef(message)
	}
	if res.Ref == "" {
		return res
	}
	res.Order = r.lookup(ctx, res.Ref)
	return res
}

// lookup consults the store, then the fallback provider. Either source
// failing is logged and treated as a miss.
func (r *Resolver) lookup(ctx context.Context, ref string) *models.Order {
	order, err := r.st.GetOrder(ref)
	if err != nil {
		slog.Warn("Resolver.lookup: store lookup failed", "error", err, "orderID", ref)
	}
	if order != nil {
		return order
	}
	if r.fallback == nil {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, DefaultFallbackTimeout)
	defer cancel()
	order, err = r.fallback.OrderStatus(fctx, ref)
	if err != nil {
		slog.Warn("Resolver.lookup: fallback lookup failed", "error", err, "orderID", ref)
		return nil
	}
	return order
}

// RecentOrders returns up to limit of the user's most recent orders, newest
// first. Failures degrade to an empty list.
func (r *Resolver) RecentOrders(userID string, limit int) []models.Order {
	if userID == "" {
		return nil
	}
	orders, err := r.st.ListRecentOrders(userID, limit)
	if err != nil {
		slog.Warn("Resolver.RecentOrders: store lookup failed", "error", err, "userID", userID)
		return nil
	}
	return orders
}

// Describe renders an order as a context line for reply generation.
func Describe(o *models.Order) string {
	line := "Order " + o.ID + " status: " + string(o.Status)
	if o.DeliveryETA != "" {
		line += ", expected delivery " + o.DeliveryETA
	}
	return line
}
