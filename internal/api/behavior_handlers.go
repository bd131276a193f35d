package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/caredesk/caredesk/internal/models"
)

func (s *Server) behaviorLogHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.BehaviorLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.behaviorLogHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if errs := req.Validate(); errs != nil {
		slog.Warn("Server.behaviorLogHandler: validation failed", "details", errs)
		writeJSONResponse(w, http.StatusBadRequest, models.ErrorWithDetails("Invalid body", errs))
		return
	}

	// Best effort: a failed insert never breaks client instrumentation.
	s.behaviorSvc.LogEvent(r.Context(), req)
	writeJSONResponse(w, http.StatusOK, models.OKResponse{OK: true})
}

func (s *Server) behaviorEvaluateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.BehaviorEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.behaviorEvaluateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if errs := req.Validate(); errs != nil {
		slog.Warn("Server.behaviorEvaluateHandler: validation failed", "details", errs)
		writeJSONResponse(w, http.StatusBadRequest, models.ErrorWithDetails("Invalid body", errs))
		return
	}

	result, err := s.behaviorSvc.Evaluate(r.Context(), req)
	if err != nil {
		slog.Error("Server.behaviorEvaluateHandler: evaluation failed", "error", err, "userID", req.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to evaluate behavior"))
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (s *Server) behaviorEngagementHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.EngagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.behaviorEngagementHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if errs := req.Validate(); errs != nil {
		slog.Warn("Server.behaviorEngagementHandler: validation failed", "details", errs)
		writeJSONResponse(w, http.StatusBadRequest, models.ErrorWithDetails("Invalid body", errs))
		return
	}

	s.behaviorSvc.RecordEngagement(r.Context(), req.PromptID, *req.Engaged)
	writeJSONResponse(w, http.StatusOK, models.OKResponse{OK: true})
}
