package http

import (
	"net/http"

	"budget/internal/core"
)

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	periodID, err := queryID(r, "period_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.deps.Reporting.ListPurchases(r.Context(), core.PurchaseFilter{
		PeriodID: periodID,
		User:     sanitizeInput(r.URL.Query().Get("user")),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Ledger.RecordPurchase(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// handleSyncPurchases records a batch queued by an offline client. The
// batch commits or fails as a whole.
func (s *Server) handleSyncPurchases(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	batch, err := req.toInputs(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.deps.Ledger.RecordPurchases(r.Context(), batch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"synced":    len(txs),
		"purchases": txs,
	})
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Ledger.DeletePurchase(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Ledger.RecordIncome(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}
