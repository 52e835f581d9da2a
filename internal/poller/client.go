package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"companion-billing/internal/domain/model"
)

var _ StatusFetcher = (*Client)(nil)

// Client talks to the billing API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

// PaymentRequest is the subset of the create response the CLI shows.
type PaymentRequest struct {
	ID            string               `json:"id"`
	Kind          string               `json:"kind"`
	Tier          string               `json:"tier"`
	Amount        int64                `json:"amount"`
	Code          string               `json:"code"`
	QRPayload     string               `json:"qr_payload"`
	BankDeeplinks []model.BankDeeplink `json:"bank_deeplinks"`
	AccountInfo   model.BankAccount    `json:"account_info"`
	Status        model.PaymentStatus  `json:"status"`
	ExpiresAt     time.Time            `json:"expires_at"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) CreatePaymentRequest(ctx context.Context, subjectID, kind, tier string) (*PaymentRequest, error) {
	body, _ := json.Marshal(map[string]string{"subject_id": subjectID, "kind": kind, "tier": tier})
	var out PaymentRequest
	if err := c.do(ctx, http.MethodPost, "/api/v1/payment-requests", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchStatus(ctx context.Context, id string) (*model.StatusView, error) {
	var out model.StatusView
	if err := c.do(ctx, http.MethodGet, "/api/v1/payment-requests/"+url.PathEscape(id)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e apiError
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("api %s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
