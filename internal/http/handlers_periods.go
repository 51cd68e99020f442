package http

import (
	"net/http"

	"budget/internal/core"
	"budget/internal/services"
)

const defaultGenerateCount = 12

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.deps.Reporting.ListPeriods(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

func (s *Server) handleGeneratePeriods(w http.ResponseWriter, r *http.Request) {
	req := generateRequest{Count: defaultGenerateCount}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	periods, err := s.deps.Periods.GeneratePeriods(r.Context(), req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, periods)
}

func (s *Server) handleActivatePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	period, err := s.deps.Periods.ActivatePeriod(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, period)
}

func (s *Server) handlePeriodCategories(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeCategories(w, r, &id)
}

func (s *Server) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.Reporting.PeriodSummary(r.Context(), &id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListCategories lists the categories of ?period_id, or of the
// active period when absent.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	periodID, err := queryID(r, "period_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeCategories(w, r, periodID)
}

func (s *Server) writeCategories(w http.ResponseWriter, r *http.Request, periodID *int64) {
	views, err := s.deps.Reporting.ListCategoriesForPeriod(r.Context(), periodID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := s.deps.Ledger.CreateCategory(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, core.CategoryView{Category: cat, Remaining: cat.Remaining()})
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := req.value()
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := s.deps.Ledger.UpdateBudgetedAmount(r.Context(), id, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.CategoryView{Category: cat, Remaining: cat.Remaining()})
}

// handlePopulateBudget populates ?period_id from the template, or runs a
// forced rollover for the current period when no id is given.
func (s *Server) handlePopulateBudget(w http.ResponseWriter, r *http.Request) {
	if s.deps.Template == nil || s.deps.Rollover == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no budget template configured"})
		return
	}
	var req populateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.PeriodID == nil {
		result, err := s.deps.Rollover.ProcessRollover(r.Context(), s.now(), services.RolloverForce)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	tmpl, err := s.deps.Template()
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.deps.Periods.PopulatePeriodFromTemplate(r.Context(), *req.PeriodID, tmpl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Template == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no budget template configured"})
		return
	}
	tmpl, err := s.deps.Template()
	if err != nil {
		writeError(w, r, err)
		return
	}
	preview, err := s.deps.Periods.PreviewNextPeriod(r.Context(), tmpl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Reconciler.Reconcile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusConflict
	}
	writeJSON(w, status, report)
}
