package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
)

func (s *Server) listTiers(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseProductKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	tiers, err := s.d.Catalog.ListTiers(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	if tiers == nil {
		tiers = []*model.PricingTier{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "tiers": tiers})
}

func (s *Server) getTier(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseProductKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := s.d.Catalog.GetTier(r.Context(), kind, chi.URLParam(r, "tier"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) upsertTier(w http.ResponseWriter, r *http.Request) {
	var t model.PricingTier
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&t); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed json body", Code: "invalid_argument"})
		return
	}
	saved, err := s.d.Catalog.Upsert(r.Context(), &t)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info().Str("admin", adminFrom(r.Context())).Str("kind", string(saved.Kind)).
		Str("tier", saved.Code).Int64("price", saved.Price).Msg("tier upserted")
	writeJSON(w, http.StatusOK, saved)
}

func queryInt64(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, domain.ErrInvalidArgument
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidArgument
	}
	return n, nil
}

func (s *Server) bookingQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := queryInt64(r, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	hours := 1e9 // no start time given: cancellation is free
	if v := r.URL.Query().Get("hours_before_start"); v != "" {
		if hours, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
	}
	q, err := s.d.Fees.QuoteBooking(amount, hours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type withdrawalQuote struct {
	Amount int64 `json:"amount"`
	Fee    int64 `json:"fee"`
	Net    int64 `json:"net"`
}

func (s *Server) withdrawalFee(w http.ResponseWriter, r *http.Request) {
	amount, err := queryInt64(r, "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	fee, err := s.d.Fees.WithdrawalFee(amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalQuote{Amount: amount, Fee: fee, Net: amount - fee})
}
