package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vero-edu/pbas-assistant/internal/auth"
)

type fakeAsker struct {
	reply     string
	err       error
	question  string
	userID    int64
	sessionID string
}

func (f *fakeAsker) Ask(ctx context.Context, question string, userID int64, sessionID string) (string, error) {
	f.question = question
	f.userID = userID
	f.sessionID = sessionID
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	handler := NewRouter(NewAPIHandler(&fakeAsker{}, "", zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["status"])
}

func TestChatHandlerGeneratesSessionID(t *testing.T) {
	asker := &fakeAsker{reply: "hello"}
	handler := NewRouter(NewAPIHandler(asker, "", zap.NewNop()))

	rec := postJSON(t, handler, "/chat", ChatRequest{Message: "What is my PBAS score?", UserID: 7})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello", resp.Reply)

	// A fresh UUID was generated, returned, and passed to the pipeline.
	_, err := uuid.Parse(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, asker.sessionID)
	assert.Equal(t, int64(7), asker.userID)
}

func TestChatHandlerKeepsSuppliedSessionID(t *testing.T) {
	asker := &fakeAsker{reply: "hi"}
	handler := NewRouter(NewAPIHandler(asker, "", zap.NewNop()))

	rec := postJSON(t, handler, "/chat", ChatRequest{Message: "score?", UserID: 7, SessionID: "existing-session"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "existing-session", resp.SessionID)
	assert.Equal(t, "existing-session", asker.sessionID)
}

func TestChatHandlerEmptyMessage(t *testing.T) {
	handler := NewRouter(NewAPIHandler(&fakeAsker{}, "", zap.NewNop()))
	rec := postJSON(t, handler, "/chat", ChatRequest{UserID: 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerPipelineError(t *testing.T) {
	asker := &fakeAsker{err: errors.New("database unreachable")}
	handler := NewRouter(NewAPIHandler(asker, "", zap.NewNop()))
	rec := postJSON(t, handler, "/chat", ChatRequest{Message: "score?", UserID: 7})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChatHandlerAuthRequired(t *testing.T) {
	const secret = "test-secret"
	asker := &fakeAsker{reply: "ok"}
	handler := NewRouter(NewAPIHandler(asker, secret, zap.NewNop()))

	// Without a token the endpoint is closed.
	rec := postJSON(t, handler, "/chat", ChatRequest{Message: "score?", UserID: 7})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// With a valid bearer token it works.
	token, err := auth.GenerateJWT("7", secret)
	require.NoError(t, err)

	body, _ := json.Marshal(ChatRequest{Message: "score?", UserID: 7})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	handler := NewRouter(NewAPIHandler(&fakeAsker{}, "test-secret", zap.NewNop()))

	rec := postJSON(t, handler, "/login", LoginRequest{UserID: "7"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	subject, err := auth.ValidateJWT(resp["token"], "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "7", subject)
}

func TestLoginHandlerAuthDisabled(t *testing.T) {
	handler := NewRouter(NewAPIHandler(&fakeAsker{}, "", zap.NewNop()))
	rec := postJSON(t, handler, "/login", LoginRequest{UserID: "7"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
