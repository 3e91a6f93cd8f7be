package sets

import (
	"net/http"

	"github.com/nocdn/mcqsr/internal/app/apiresp"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type SetSummary struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	QuestionCount int    `json:"question_count"`
}

func summaries(current []QuestionSet) []SetSummary {
	out := make([]SetSummary, 0, len(current))
	for i, set := range current {
		out = append(out, SetSummary{
			Index:         i,
			Name:          DisplayName(set, i),
			QuestionCount: len(set.Questions),
		})
	}
	return out
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, summaries(h.svc.Current(r.Context())))
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, summaries(h.svc.Load(r.Context())))
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.ImportExcel(r.Body)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, report)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ExportExcel()
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to export sets")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="question_sets.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
