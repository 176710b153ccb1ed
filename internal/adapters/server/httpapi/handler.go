// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/evanschultz/weekgrid/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	cards common.CardService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the card service.
func NewHandler(cards common.CardService) *Handler {
	return &Handler{cards: cards}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cards == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "card service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch {
	case path == "cards":
		switch r.Method {
		case http.MethodGet:
			h.handleListCards(w, r)
		case http.MethodPost:
			h.handleCreateCard(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case path == "palette":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handlePalette(w, r)
		return
	case path == "agenda":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleAgenda(w, r)
		return
	}

	cardID, action, ok := resolveCardRoute(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetCard(w, r, cardID)
		case http.MethodPatch:
			h.handleUpdateCard(w, r, cardID)
		case http.MethodDelete:
			h.handleDeleteCard(w, r, cardID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "move", "resize", "copy":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		switch action {
		case "move":
			h.handleMoveCard(w, r, cardID)
		case "resize":
			h.handleResizeCard(w, r, cardID)
		default:
			h.handleCopyCard(w, r, cardID)
		}
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleListCards serves GET `/cards`.
func (h *Handler) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.ListCards(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cards": cards,
	})
}

// handleCreateCard serves POST `/cards`.
func (h *Handler) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req common.CreateCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := h.cards.CreateCard(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// handleGetCard serves GET `/cards/{id}`.
func (h *Handler) handleGetCard(w http.ResponseWriter, r *http.Request, cardID string) {
	card, err := h.cards.GetCard(r.Context(), cardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleUpdateCard serves PATCH `/cards/{id}`.
func (h *Handler) handleUpdateCard(w http.ResponseWriter, r *http.Request, cardID string) {
	var req common.UpdateCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ID = cardID
	card, err := h.cards.UpdateCard(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleDeleteCard serves DELETE `/cards/{id}`.
func (h *Handler) handleDeleteCard(w http.ResponseWriter, r *http.Request, cardID string) {
	if err := h.cards.DeleteCard(r.Context(), cardID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveCard serves POST `/cards/{id}/move`.
func (h *Handler) handleMoveCard(w http.ResponseWriter, r *http.Request, cardID string) {
	var req common.MoveCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ID = cardID
	card, err := h.cards.MoveCard(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleResizeCard serves POST `/cards/{id}/resize`.
func (h *Handler) handleResizeCard(w http.ResponseWriter, r *http.Request, cardID string) {
	var req common.ResizeCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ID = cardID
	card, err := h.cards.ResizeCard(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleCopyCard serves POST `/cards/{id}/copy`.
func (h *Handler) handleCopyCard(w http.ResponseWriter, r *http.Request, cardID string) {
	if err := decodeOptionalJSONBody(r.Context(), w, r, &struct{}{}); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := h.cards.CopyCard(r.Context(), cardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// handlePalette serves GET `/palette`.
func (h *Handler) handlePalette(w http.ResponseWriter, r *http.Request) {
	palette, err := h.cards.Palette(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"palette": palette,
	})
}

// handleAgenda serves GET `/agenda` as markdown.
func (h *Handler) handleAgenda(w http.ResponseWriter, r *http.Request) {
	agenda, err := h.cards.Agenda(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, agenda)
}

// resolveCardRoute parses `/cards/{id}` and `/cards/{id}/{action}`.
func resolveCardRoute(path string) (string, string, bool) {
	const prefix = "cards/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if len(parts) > 2 {
		return "", "", false
	}
	id := strings.TrimSpace(parts[0])
	if id == "" {
		return "", "", false
	}
	if len(parts) == 1 {
		return id, "", true
	}
	action := strings.TrimSpace(parts[1])
	if action == "" {
		return "", "", false
	}
	return id, action, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotSaved):
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "not_saved",
			Message: err.Error(),
			Hint:    "The change is applied in memory; check the database path and retry.",
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
