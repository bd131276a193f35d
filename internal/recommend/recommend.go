// Package recommend produces upsell suggestions for chat replies.
//
// Suggestions come from a deterministic heuristic over the resolved order
// context, with catalog products from the store as an alternative source.
package recommend

import (
	"log/slog"
	"strings"

	"github.com/caredesk/caredesk/internal/models"
	"github.com/caredesk/caredesk/internal/store"
)

// MaxSuggestions caps the number of suggestions attached to a reply.
const MaxSuggestions = 3

// Heuristic returns suggestions derived from the order context. The rules
// are evaluated independently and concatenated, most specific first, then
// truncated. A nil order yields no suggestions; an order matching no rule
// yields the generic fallback.
func Heuristic(order *models.Order) []models.Recommendation {
	if order == nil {
		return nil
	}
	var recs []models.Recommendation
	if strings.Contains(order.ID, "100") || order.Status == models.OrderStatusInTransit {
		recs = append(recs, models.Recommendation{Title: "Premium Protection Plan", Blurb: "Covers accidental damage for 2 years."})
	}
	if strings.Contains(order.ID, "200") || order.Status == models.OrderStatusProcessing {
		recs = append(recs, models.Recommendation{Title: "Fast Charger (USB-C 30W)", Blurb: "Charges compatible devices up to 2x faster."})
	}
	if strings.Contains(order.ID, "300") || order.Status == models.OrderStatusDelivered {
		recs = append(recs, models.Recommendation{Title: "Bundle: Case + Screen Guard", Blurb: "Save 15% when bundled together."})
	}
	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{Title: "Popular Add-on: Extended Warranty", Blurb: "Extra peace of mind for a small price."})
	}
	if len(recs) > MaxSuggestions {
		recs = recs[:MaxSuggestions]
	}
	return recs
}

// CatalogSuggestions returns up to MaxSuggestions products from the catalog.
// Best effort: store failures degrade to an empty list.
func CatalogSuggestions(st store.Store) []models.Recommendation {
	products, err := st.ListProducts(MaxSuggestions)
	if err != nil {
		slog.Warn("recommend.CatalogSuggestions: store lookup failed", "error", err)
		return nil
	}
	var recs []models.Recommendation
	for _, p := range products {
		recs = append(recs, models.Recommendation{SKU: p.SKU, Title: p.Title, Blurb: p.Blurb, Price: p.PriceCents})
	}
	return recs
}
