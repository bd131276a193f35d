package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/caredesk/caredesk/internal/chat"
	"github.com/caredesk/caredesk/internal/models"
)

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat turn", "method", r.Method, "path", r.URL.Path)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if errs := req.Validate(); errs != nil {
		slog.Warn("Server.chatHandler: validation failed", "details", errs)
		writeJSONResponse(w, http.StatusBadRequest, models.ErrorWithDetails("Invalid body", errs))
		return
	}

	resp, err := s.chatSvc.ProcessTurn(r.Context(), req)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.chatHandler: turn failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process chat turn"))
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) proactiveChatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.ProactiveChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.proactiveChatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if errs := req.Validate(); errs != nil {
		slog.Warn("Server.proactiveChatHandler: validation failed", "details", errs)
		writeJSONResponse(w, http.StatusBadRequest, models.ErrorWithDetails("Invalid body", errs))
		return
	}

	conversationID, err := s.chatSvc.ProactiveConversation(r.Context(), req.UserID, req.Message)
	if err != nil {
		slog.Error("Server.proactiveChatHandler: failed to create conversation", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create proactive conversation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.ProactiveChatResponse{ConversationID: conversationID})
}

func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationID")
	msgs, err := s.chatSvc.Messages(r.Context(), conversationID)
	if err != nil {
		slog.Error("Server.messagesHandler: failed to load messages", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load messages"))
		return
	}
	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.MessageView{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSONResponse(w, http.StatusOK, models.MessagesResponse{Messages: views})
}

func (s *Server) escalateHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationID")
	if err := s.chatSvc.EscalateConversation(r.Context(), conversationID); err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.escalateHandler: escalation failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to escalate conversation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.OKResponse{OK: true})
}
