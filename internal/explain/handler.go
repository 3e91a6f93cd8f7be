package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nocdn/mcqsr/internal/app/apiresp"
	"github.com/nocdn/mcqsr/internal/sets"
)

type Handler struct {
	svc    explainService
	lookup questionLookup
}

type explainService interface {
	Explain(ctx context.Context, question, correctAnswer string) (Result, error)
}

// questionLookup resolves the correct answer server-side; the client
// only names the question it wants explained.
type questionLookup interface {
	FindQuestion(text string) (sets.Question, bool)
}

func NewHandler(svc explainService, lookup questionLookup) *Handler {
	return &Handler{svc: svc, lookup: lookup}
}

type request struct {
	Question string `json:"question"`
}

func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "question is required")
		return
	}

	q, ok := h.lookup.FindQuestion(req.Question)
	if !ok {
		apiresp.WriteError(w, r, http.StatusNotFound, "unknown question")
		return
	}

	result, err := h.svc.Explain(r.Context(), q.Question, q.Answer)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, result)
}
