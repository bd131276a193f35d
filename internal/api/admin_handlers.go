package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/caredesk/caredesk/internal/models"
)

// MaxEscalationListing caps the admin escalation view.
const MaxEscalationListing = 50

func (s *Server) escalationsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.st.ListEscalations(MaxEscalationListing)
	if err != nil {
		slog.Error("Server.escalationsHandler: listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list escalations"))
		return
	}
	if items == nil {
		items = []models.EscalationSummary{}
	}
	writeJSONResponse(w, http.StatusOK, models.EscalationsResponse{Items: items})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.OKResponse{OK: true})
}

// orderStatusHandler is the synthetic order-status provider. Any id is
// reported as in transit with delivery three days out.
func (s *Server) orderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("orderID")
	eta := time.Now().UTC().Add(72 * time.Hour).Format("2006-01-02")
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"id":           id,
		"status":       string(models.OrderStatusInTransit),
		"delivery_eta": eta,
	})
}
