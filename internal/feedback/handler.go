package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nocdn/mcqsr/internal/app/apiresp"
)

type Handler struct {
	svc feedbackService
}

type feedbackService interface {
	Submit(ctx context.Context, body string) error
}

func NewHandler(svc feedbackService) *Handler {
	return &Handler{svc: svc}
}

type request struct {
	Body string `json:"body"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "feedback body is required")
		return
	}

	if err := h.svc.Submit(r.Context(), req.Body); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			apiresp.WriteError(w, r, http.StatusServiceUnavailable, "feedback delivery is not configured")
			return
		}
		apiresp.WriteError(w, r, http.StatusBadGateway, "failed to submit feedback")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]any{"submitted": true})
}
