package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/infra/adapters/bank"
	"companion-billing/internal/infra/logging"
	"companion-billing/internal/infra/metrics"
	"companion-billing/internal/usecase"
)

type bankNotificationBody struct {
	Reference     string     `json:"reference" validate:"required,max=128"`
	AccountNumber string     `json:"account_number"`
	Amount        int64      `json:"amount"`
	Description   string     `json:"description" validate:"max=512"`
	ReceivedAt    *time.Time `json:"received_at"`
}

// bankNotification accepts a signed credit push from the bank. Debits and
// credits to other accounts are acknowledged and dropped so the bank stops
// retrying them.
func (s *Server) bankNotification(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		metrics.IncBankWebhook("bad_request")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body too large"})
		return
	}
	if s.d.WebhookSecret == "" && !s.d.Dev {
		metrics.IncBankWebhook("disabled")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "bank notifications disabled"})
		return
	}
	if s.d.WebhookSecret != "" && !bank.VerifySignature(raw, r.Header.Get(bank.SignatureHeader), s.d.WebhookSecret) {
		metrics.IncBankWebhook("bad_signature")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid signature"})
		return
	}

	var body bankNotificationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		metrics.IncBankWebhook("bad_request")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed json body"})
		return
	}
	if err := s.validate.Struct(&body); err != nil {
		metrics.IncBankWebhook("bad_request")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	l := logging.With(r.Context(), s.log)
	if body.Amount <= 0 || (body.AccountNumber != "" && body.AccountNumber != s.d.Account.AccountNumber) {
		metrics.IncBankWebhook("ignored")
		l.Debug().Str("transfer_ref", body.Reference).Msg("notification ignored")
		writeJSON(w, http.StatusOK, map[string]string{"outcome": "ignored"})
		return
	}

	t := model.IncomingTransfer{
		Reference:     strings.TrimSpace(body.Reference),
		AccountNumber: body.AccountNumber,
		Amount:        body.Amount,
		Description:   body.Description,
		ReceivedAt:    time.Now(),
	}
	if body.ReceivedAt != nil {
		t.ReceivedAt = *body.ReceivedAt
	}

	outcome, err := s.d.Detector.HandleTransfer(r.Context(), t)
	if err != nil {
		metrics.IncBankWebhook("error")
		metrics.IncSettlementOutcome(usecase.SourcePush, "error")
		l.Error().Err(err).Str("transfer_ref", t.Reference).Msg("handle transfer failed")
		// 5xx makes the bank redeliver; the routine is idempotent
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	metrics.IncBankWebhook("ok")
	metrics.IncSettlementOutcome(usecase.SourcePush, string(outcome))
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

type devTransferBody struct {
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	Description string `json:"description" validate:"required"`
}

// devTransfer books a fake credit on the in-memory rail; the poller picks it up.
func (s *Server) devTransfer(w http.ResponseWriter, r *http.Request) {
	var body devTransferBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed json body"})
		return
	}
	if err := s.validate.Struct(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if body.Reference == "" {
		body.Reference = "DEV" + time.Now().UTC().Format("20060102150405.000000")
	}
	t := model.IncomingTransfer{
		Reference:     body.Reference,
		AccountNumber: s.d.Account.AccountNumber,
		Amount:        body.Amount,
		Description:   body.Description,
		ReceivedAt:    time.Now(),
	}
	s.d.DevRail.Credit(t)
	writeJSON(w, http.StatusAccepted, t)
}
