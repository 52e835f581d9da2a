// File: internal/infra/adapters/bank/http_rail.go
package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
)

var _ adapter.BankingRail = (*HTTPRail)(nil)

const maxPages = 20

// HTTPRail reads credits from a bank-statement aggregator API:
//
//	GET {base}/v1/transactions?account_number=..&from=RFC3339&page=N
//	Authorization: Bearer {api key}
type HTTPRail struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPRail(baseURL, apiKey string, timeout time.Duration) (*HTTPRail, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid bank api url: %w", err)
	}
	if apiKey == "" {
		return nil, errors.New("bank api key empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRail{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (r *HTTPRail) Name() string { return "http" }

type transactionsPage struct {
	Data struct {
		Records []struct {
			Reference     string `json:"reference"`
			AccountNumber string `json:"account_number"`
			Amount        int64  `json:"amount"`
			Description   string `json:"description"`
			When          string `json:"when"`
		} `json:"records"`
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"data"`
	Error string `json:"error"`
}

// FindIncomingTransfers pages through credits received since the given time.
// Debits (non-positive amounts) are dropped.
func (r *HTTPRail) FindIncomingTransfers(ctx context.Context, acc model.BankAccount, since time.Time) ([]model.IncomingTransfer, error) {
	var out []model.IncomingTransfer
	for page := 1; page <= maxPages; page++ {
		p, err := r.fetch(ctx, acc.AccountNumber, since, page)
		if err != nil {
			return nil, err
		}
		for _, rec := range p.Data.Records {
			if rec.Amount <= 0 {
				continue
			}
			when, err := time.Parse(time.RFC3339, rec.When)
			if err != nil {
				return nil, fmt.Errorf("bank api: bad timestamp %q: %w", rec.When, err)
			}
			out = append(out, model.IncomingTransfer{
				Reference:     rec.Reference,
				AccountNumber: rec.AccountNumber,
				Amount:        rec.Amount,
				Description:   rec.Description,
				ReceivedAt:    when,
			})
		}
		if p.Data.TotalPages <= page {
			break
		}
	}
	return out, nil
}

func (r *HTTPRail) fetch(ctx context.Context, account string, since time.Time, page int) (*transactionsPage, error) {
	q := url.Values{}
	q.Set("account_number", account)
	q.Set("from", since.UTC().Format(time.RFC3339))
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/transactions?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bank api http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var p transactionsPage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("bank api: decode: %w", err)
	}
	if p.Error != "" {
		return nil, fmt.Errorf("bank api: %s", p.Error)
	}
	return &p, nil
}
