package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
)

func (s *Server) listReconciliation(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		limit = n
	}
	items, err := s.d.Recon.ListOpen(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []*model.ReconciliationItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type noteBody struct {
	Resolution string `json:"resolution"`
	Reason     string `json:"reason"`
}

func decodeNote(w http.ResponseWriter, r *http.Request) (noteBody, bool) {
	var b noteBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed json body", Code: "invalid_argument"})
		return b, false
	}
	return b, true
}

func (s *Server) resolveReconciliation(w http.ResponseWriter, r *http.Request) {
	b, ok := decodeNote(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if b.Resolution == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.d.Recon.Resolve(r.Context(), id, adminFrom(r.Context())+": "+b.Resolution); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resolved"})
}

func (s *Server) failPaymentRequest(w http.ResponseWriter, r *http.Request) {
	b, ok := decodeNote(w, r)
	if !ok {
		return
	}
	p, err := s.d.Ledger.MarkFailed(r.Context(), chi.URLParam(r, "id"), b.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Warn().Str("admin", adminFrom(r.Context())).Str("payment_id", p.ID).Str("reason", b.Reason).Msg("payment request failed by operator")
	writeJSON(w, http.StatusOK, toDTO(p))
}

// checkPaymentRequest forces one settlement check, e.g. after the bank
// confirms a transfer out of band.
func (s *Server) checkPaymentRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, err := s.d.Detector.CheckSettlement(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "outcome": string(outcome)})
}
