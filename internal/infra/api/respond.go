package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain sentinels to HTTP. Anything unknown is a 500 and its
// text is not echoed to the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrTierNotFound):
		return http.StatusNotFound, "tier_not_found"
	case errors.Is(err, domain.ErrSubjectNotFound):
		return http.StatusNotFound, "subject_not_found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrExpiredSettlement):
		return http.StatusGone, "payment_window_expired"
	case errors.Is(err, domain.ErrPaymentTerminal):
		return http.StatusConflict, "payment_terminal"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable, "code_space_exhausted"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	if errors.Is(err, domain.ErrExpiredSettlement) {
		msg = domain.ErrExpiredSettlement.Error()
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

type paymentRequestDTO struct {
	ID            string               `json:"id"`
	Kind          model.ProductKind    `json:"kind"`
	Tier          string               `json:"tier"`
	SubjectID     string               `json:"subject_id"`
	Amount        int64                `json:"amount"`
	Code          string               `json:"code"`
	QRPayload     string               `json:"qr_payload"`
	BankDeeplinks []model.BankDeeplink `json:"bank_deeplinks"`
	AccountInfo   model.BankAccount    `json:"account_info"`
	Status        model.PaymentStatus  `json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
	ExpiresAt     time.Time            `json:"expires_at"`
	SettledAt     *time.Time           `json:"settled_at,omitempty"`
	FailureReason *string              `json:"failure_reason,omitempty"`
}

func toDTO(p *model.PaymentRequest) paymentRequestDTO {
	links := p.BankDeeplinks
	if links == nil {
		links = []model.BankDeeplink{}
	}
	return paymentRequestDTO{
		ID:            p.ID,
		Kind:          p.Kind,
		Tier:          p.TargetEntitlementID,
		SubjectID:     p.SubjectID,
		Amount:        p.Amount,
		Code:          p.Code,
		QRPayload:     p.QRPayload,
		BankDeeplinks: links,
		AccountInfo:   p.AccountInfo,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		ExpiresAt:     p.ExpiresAt,
		SettledAt:     p.SettledAt,
		FailureReason: p.FailureReason,
	}
}
