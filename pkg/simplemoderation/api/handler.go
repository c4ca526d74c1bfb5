// Package api exposes the moderation service over HTTP. Successful responses
// wrap their payload in {"data": ...}; failures return {"error": ...} with a
// status from the error taxonomy: 400 for validation, 404 for missing rows,
// 500 for everything else.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
)

// ModerationHandler handles HTTP requests for content and moderation using
// pkg/simplemoderation.
type ModerationHandler struct {
	service simplemoderation.Service
}

// NewModerationHandler creates a new moderation handler
func NewModerationHandler(service simplemoderation.Service) *ModerationHandler {
	return &ModerationHandler{service: service}
}

// Routes returns the routes for the moderation API
func (h *ModerationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/contents", h.ListContent)
	r.Post("/contents", h.SubmitContent)
	r.Get("/contents/{id}", h.GetContent)
	r.Patch("/contents/{id}", h.UpdateContent)
	r.Delete("/contents/{id}", h.DeleteContent)

	r.Post("/contents/{id}/moderation", h.ApplyModeration)
	r.Get("/contents/{id}/moderation", h.GetModeration)
	r.Get("/moderation/stats", h.ModerationStats)

	r.Get("/health", h.Health)

	return r
}

// SubmitContentRequest is the request body for submitting content
type SubmitContentRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Source   string `json:"source,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// UpdateContentRequest is the request body for partially updating content
type UpdateContentRequest struct {
	Text     *string `json:"text,omitempty"`
	Language *string `json:"language,omitempty"`
	Source   *string `json:"source,omitempty"`
	UserID   *string `json:"userId,omitempty"`
}

// ApplyModerationRequest is the request body for a manual moderation override
type ApplyModerationRequest struct {
	Status           string   `json:"status"`
	Categories       []string `json:"categories,omitempty"`
	Confidence       *int     `json:"confidence,omitempty"`
	LanguageDetected string   `json:"language_detected,omitempty"`
	ModeratedBy      string   `json:"moderated_by,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// SubmitContent creates a new content row and schedules it for classification
func (h *ModerationHandler) SubmitContent(w http.ResponseWriter, r *http.Request) {
	var req SubmitContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	submitReq := simplemoderation.SubmitContentRequest{
		Text:     req.Text,
		Language: req.Language,
		Source:   req.Source,
	}
	if req.UserID != "" {
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid user id")
			return
		}
		submitReq.UserID = &userID
	}

	content, err := h.service.SubmitContent(r.Context(), submitReq)
	if err != nil {
		var qerr *simplemoderation.QueueError
		if errors.As(err, &qerr) && content != nil {
			// The row exists but was not scheduled; surface the failure.
			slog.Error("content created but not scheduled for moderation", "content_id", content.ID, "error", err)
			respondError(w, r, http.StatusInternalServerError, "content created but moderation could not be scheduled")
			return
		}
		h.renderError(w, r, err, "failed to submit content")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, createdEnvelope{
		Data:    content,
		Message: "content submitted for moderation",
	})
}

// GetContent returns one content row joined with its moderation result
func (h *ModerationHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	content, err := h.service.GetContentWithModeration(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err, "failed to get content")
		return
	}

	render.JSON(w, r, dataEnvelope{Data: content})
}

// ListContent returns content rows joined with moderation, filtered by the
// query parameters language, userId and status
func (h *ModerationHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	var req simplemoderation.ListContentRequest

	if v := r.URL.Query().Get("language"); v != "" {
		req.Language = &v
	}
	if v := r.URL.Query().Get("userId"); v != "" {
		userID, err := uuid.Parse(v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid user id")
			return
		}
		req.UserID = &userID
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := simplemoderation.ModerationStatus(v)
		if !status.IsValid() && status != simplemoderation.StatusPending {
			respondError(w, r, http.StatusBadRequest, "invalid status filter")
			return
		}
		req.Status = &status
	}

	contents, err := h.service.ListContent(r.Context(), req)
	if err != nil {
		h.renderError(w, r, err, "failed to list content")
		return
	}

	render.JSON(w, r, dataEnvelope{Data: contents})
}

// UpdateContent applies a partial update to a content row
func (h *ModerationHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	updateReq := simplemoderation.UpdateContentRequest{
		Text:     req.Text,
		Language: req.Language,
		Source:   req.Source,
	}
	if req.UserID != nil {
		userID, err := uuid.Parse(*req.UserID)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid user id")
			return
		}
		updateReq.UserID = &userID
	}

	content, err := h.service.UpdateContent(r.Context(), id, updateReq)
	if err != nil {
		h.renderError(w, r, err, "failed to update content")
		return
	}

	render.JSON(w, r, dataEnvelope{Data: content})
}

// DeleteContent removes a content row and its moderation result
func (h *ModerationHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	content, err := h.service.DeleteContent(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err, "failed to delete content")
		return
	}

	render.JSON(w, r, dataEnvelope{Data: content})
}

// ApplyModeration records a manual moderation decision for a content row
func (h *ModerationHandler) ApplyModeration(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req ApplyModerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.ApplyModeration(r.Context(), id, simplemoderation.ApplyModerationRequest{
		Status:           simplemoderation.ModerationStatus(req.Status),
		Categories:       req.Categories,
		Confidence:       req.Confidence,
		LanguageDetected: req.LanguageDetected,
		ModeratedBy:      req.ModeratedBy,
		Notes:            req.Notes,
	})
	if err != nil {
		h.renderError(w, r, err, "failed to apply moderation")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, createdEnvelope{
		Data:    result,
		Message: "moderation recorded",
	})
}

// GetModeration returns the moderation result for a content row
func (h *ModerationHandler) GetModeration(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetModeration(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err, "failed to get moderation")
		return
	}

	render.JSON(w, r, dataEnvelope{Data: result})
}

// ModerationStats returns verdict totals and the average confidence
func (h *ModerationHandler) ModerationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ModerationStats(r.Context())
	if err != nil {
		h.renderError(w, r, err, "failed to compute moderation stats")
		return
	}

	render.JSON(w, r, dataEnvelope{Data: stats})
}

// Health reports process liveness
func (h *ModerationHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *ModerationHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid content id")
		return uuid.Nil, false
	}
	return id, true
}

// renderError maps a service error onto the HTTP taxonomy.
func (h *ModerationHandler) renderError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr *simplemoderation.ValidationError
	if errors.As(err, &verr) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, fieldErrorEnvelope{Error: "validation failed", Fields: verr.Fields})
		return
	}

	switch {
	case errors.Is(err, simplemoderation.ErrContentNotFound),
		errors.Is(err, simplemoderation.ErrModerationNotFound),
		errors.Is(err, simplemoderation.ErrUserNotFound):
		respondError(w, r, http.StatusNotFound, err.Error())
	default:
		slog.Error(msg, "error", err)
		respondError(w, r, http.StatusInternalServerError, msg)
	}
}

type dataEnvelope struct {
	Data interface{} `json:"data"`
}

// createdEnvelope is the 201 shape: data is the bare entity row, message a
// top-level sibling.
type createdEnvelope struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

type fieldErrorEnvelope struct {
	Error  string                        `json:"error"`
	Fields []simplemoderation.FieldError `json:"fields"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorEnvelope{Error: message})
}
