package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nocdn/mcqsr/internal/app/apiresp"
)

type Handler struct {
	svc sessionController
}

type sessionController interface {
	State(ctx context.Context, shuffleOptions bool) State
	SelectSet(ctx context.Context, index int) (State, error)
	Advance(ctx context.Context) State
	Retreat(ctx context.Context) State
	RecordAnswer(ctx context.Context, questionText, option string) (State, error)
	ResetAnswers(ctx context.Context) State
	ResetProgress(ctx context.Context) State
}

func NewHandler(svc sessionController) *Handler {
	return &Handler{svc: svc}
}

type selectSetRequest struct {
	Index int `json:"index"`
}

type answerRequest struct {
	Question string `json:"question"`
	Option   string `json:"option"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	shuffle := r.URL.Query().Get("shuffle") == "1"
	apiresp.WriteOK(w, r, http.StatusOK, h.svc.State(r.Context(), shuffle))
}

func (h *Handler) SelectSet(w http.ResponseWriter, r *http.Request) {
	var req selectSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid payload")
		return
	}

	st, err := h.svc.SelectSet(r.Context(), req.Index)
	if errors.Is(err, ErrSetOutOfRange) {
		apiresp.WriteError(w, r, http.StatusBadRequest, "set index out of range")
		return
	}
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to select set")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, st)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, h.svc.Advance(r.Context()))
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, h.svc.Retreat(r.Context()))
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Option) == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "question and option are required")
		return
	}

	st, err := h.svc.RecordAnswer(r.Context(), req.Question, req.Option)
	if errors.Is(err, ErrUnknownQuestion) {
		apiresp.WriteError(w, r, http.StatusNotFound, "question not in active set")
		return
	}
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to record answer")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, st)
}

func (h *Handler) ResetAnswers(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, h.svc.ResetAnswers(r.Context()))
}

func (h *Handler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, h.svc.ResetProgress(r.Context()))
}
