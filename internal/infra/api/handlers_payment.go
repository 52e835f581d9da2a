package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/infra/logging"
	"companion-billing/internal/infra/metrics"
	red "companion-billing/internal/infra/redis"
)

const maxBody = 64 << 10

type createPaymentRequestBody struct {
	SubjectID string `json:"subject_id" validate:"required,max=64"`
	Kind      string `json:"kind" validate:"required"`
	Tier      string `json:"tier" validate:"required,max=128"`
}

func (s *Server) createPaymentRequest(w http.ResponseWriter, r *http.Request) {
	var body createPaymentRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed json body", Code: "invalid_argument"})
		return
	}
	if err := s.validate.Struct(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_argument"})
		return
	}
	kind, err := model.ParseProductKind(body.Kind)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := logging.WithSubjectID(r.Context(), body.SubjectID)
	l := logging.With(ctx, s.log)

	if s.d.Limiter != nil {
		ok, err := s.d.Limiter.Allow(ctx, red.SubjectActionKey(body.SubjectID, "create_payment"), s.d.CreateLimit, time.Minute)
		switch {
		case err != nil:
			l.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		case !ok:
			metrics.IncPaymentRequest(string(kind), "rate_limited")
			retryAfter(w, time.Minute)
			writeError(w, domain.ErrRateLimited)
			return
		}
	}

	p, err := s.d.Ledger.Create(ctx, body.SubjectID, kind, body.Tier)
	if err != nil {
		status, code := statusFor(err)
		metrics.IncPaymentRequest(string(kind), code)
		if status >= 500 {
			l.Error().Err(err).Msg("create payment request failed")
		}
		writeError(w, err)
		return
	}
	metrics.IncPaymentRequest(string(kind), "ok")
	writeJSON(w, http.StatusCreated, toDTO(p))
}

func (s *Server) getPaymentRequest(w http.ResponseWriter, r *http.Request) {
	p, err := s.d.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(p))
}

type statusResponse struct {
	model.StatusView
	Message string `json:"message,omitempty"`
}

// getPaymentStatus runs one settlement check before lazily expiring a request
// that is past its window, so a transfer made in time but not yet polled
// still settles.
func (s *Server) getPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithPaymentID(r.Context(), id)

	p, err := s.d.Ledger.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if p.Status == model.PaymentStatusPending && p.ExpiredAt(s.now()) && s.d.Detector != nil {
		if _, err := s.d.Detector.CheckSettlement(ctx, id); err != nil && !errors.Is(err, domain.ErrLockHeld) {
			logging.With(ctx, s.log).Warn().Err(err).Msg("final settlement check failed")
		}
	}

	v, err := s.d.Ledger.GetStatus(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := statusResponse{StatusView: *v}
	if v.Status == model.PaymentStatusExpired {
		resp.Message = domain.ErrExpiredSettlement.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getEntitlements(w http.ResponseWriter, r *http.Request) {
	e, err := s.d.Entitlements.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
