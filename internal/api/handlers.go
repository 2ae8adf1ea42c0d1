package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vero-edu/pbas-assistant/internal/auth"
)

// Asker answers one user question within a session.
type Asker interface {
	Ask(ctx context.Context, question string, userID int64, sessionID string) (string, error)
}

type APIHandler struct {
	pipeline  Asker
	jwtSecret string // empty disables auth
	logger    *zap.Logger
}

func NewAPIHandler(pipeline Asker, jwtSecret string, logger *zap.Logger) *APIHandler {
	return &APIHandler{pipeline: pipeline, jwtSecret: jwtSecret, logger: logger}
}

// AuthEnabled reports whether the chat endpoint requires a bearer token.
func (h *APIHandler) AuthEnabled() bool {
	return h.jwtSecret != ""
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if _, err := auth.ValidateJWT(tokenString, h.jwtSecret); err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "VERO PBAS AI Backend Running"})
}

type LoginRequest struct {
	UserID string `json:"user_id"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !h.AuthEnabled() {
		http.Error(w, "Authentication is not configured", http.StatusNotImplemented)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "User ID is required", http.StatusBadRequest)
		return
	}

	token, err := auth.GenerateJWT(req.UserID, h.jwtSecret)
	if err != nil {
		h.logger.Error("Failed to generate JWT", zap.String("user_id", req.UserID), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

type ChatRequest struct {
	Message   string `json:"message"`
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply, err := h.pipeline.Ask(r.Context(), req.Message, req.UserID, sessionID)
	if err != nil {
		h.logger.Error("Chat pipeline failed",
			zap.Int64("user_id", req.UserID), zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ChatResponse{Reply: reply, SessionID: sessionID})
}
