package recommend

import (
	"reflect"
	"testing"

	"github.com/caredesk/caredesk/internal/models"
	"github.com/caredesk/caredesk/internal/store"
)

func TestHeuristic(t *testing.T) {
	cases := []struct {
		name       string
		order      *models.Order
		wantTitles []string
	}{
		{
			name:  "nil order",
			order: nil,
		},
		{
			name:       "in transit matches protection plan",
			order:      &models.Order{ID: "ORDER-999", Status: models.OrderStatusInTransit},
			wantTitles: []string{"Premium Protection Plan"},
		},
		{
			name:       "id 100 matches protection plan",
			order:      &models.Order{ID: "ORDER-100", Status: models.OrderStatusDelivered},
			wantTitles: []string{"Premium Protection Plan", "Bundle: Case + Screen Guard"},
		},
		{
			name:       "processing matches charger",
			order:      &models.Order{ID: "ORDER-999", Status: models.OrderStatusProcessing},
			wantTitles: []string{"Fast Charger (USB-C 30W)"},
		},
		{
			name:       "delivered matches bundle",
			order:      &models.Order{ID: "ORDER-999", Status: models.OrderStatusDelivered},
			wantTitles: []string{"Bundle: Case + Screen Guard"},
		},
		{
			name:       "multiple rules truncated to cap",
			order:      &models.Order{ID: "ORDER-100200300", Status: models.OrderStatusInTransit},
			wantTitles: []string{"Premium Protection Plan", "Fast Charger (USB-C 30W)", "Bundle: Case + Screen Guard"},
		},
		{
			name:       "no rule matched falls back to warranty",
			order:      &models.Order{ID: "ORDER-999", Status: "unknown"},
			wantTitles: []string{"Popular Add-on: Extended Warranty"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Heuristic(c.order)
			var titles []string
			for _, r := range got {
				titles = append(titles, r.Title)
			}
			if !reflect.DeepEqual(titles, c.wantTitles) {
				t.Errorf("Heuristic titles = %v, want %v", titles, c.wantTitles)
			}
			if len(got) > MaxSuggestions {
				t.Errorf("Heuristic returned %d suggestions, cap is %d", len(got), MaxSuggestions)
			}
		})
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	order := &models.Order{ID: "ORDER-100", Status: models.OrderStatusProcessing}
	first := Heuristic(order)
	second := Heuristic(order)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Heuristic not deterministic: %v vs %v", first, second)
	}
}

func TestCatalogSuggestions(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	products := []models.Product{
		{SKU: "SKU-1", Title: "Case", Blurb: "Slim case", PriceCents: 1999},
		{SKU: "SKU-2", Title: "Charger", Blurb: "30W", PriceCents: 2999},
	}
	for _, p := range products {
		if err := st.AddProduct(p); err != nil {
			t.Fatalf("AddProduct error: %v", err)
		}
	}

	got := CatalogSuggestions(st)
	if len(got) != 2 {
		t.Fatalf("CatalogSuggestions returned %d items, want 2", len(got))
	}
	for _, r := range got {
		if r.SKU == "" || r.Price == 0 {
			t.Errorf("catalog suggestion missing sku or price: %+v", r)
		}
	}
}

func TestCatalogSuggestionsEmpty(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	if got := CatalogSuggestions(st); len(got) != 0 {
		t.Fatalf("CatalogSuggestions on empty catalog = %v, want empty", got)
	}
}
