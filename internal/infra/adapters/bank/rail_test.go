//go:build !integration

package bank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"companion-billing/internal/domain/model"
)

func TestHTTPRail_PagesAndFilters(t *testing.T) {
	since := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k3y" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/transactions" || r.URL.Query().Get("account_number") != testAccount.AccountNumber ||
			r.URL.Query().Get("from") != "2026-03-01T10:00:00Z" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		page := r.URL.Query().Get("page")
		resp := map[string]any{"data": map[string]any{"total_pages": 2, "records": []map[string]any{}}}
		switch page {
		case "1":
			resp["data"].(map[string]any)["records"] = []map[string]any{
				{"reference": "FT1", "amount": 99000, "description": "CBABCD2345", "when": "2026-03-01T10:01:00Z"},
				{"reference": "FT2", "amount": -5000, "description": "fee", "when": "2026-03-01T10:02:00Z"},
			}
		case "2":
			resp["data"].(map[string]any)["records"] = []map[string]any{
				{"reference": "FT3", "amount": 199000, "description": "CBWXYZ6789", "when": "2026-03-01T10:03:00+07:00"},
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	rail, err := NewHTTPRail(srv.URL, "k3y", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPRail: %v", err)
	}
	got, err := rail.FindIncomingTransfers(context.Background(), testAccount, since)
	if err != nil {
		t.Fatalf("FindIncomingTransfers: %v", err)
	}
	if len(got) != 2 || got[0].Reference != "FT1" || got[1].Reference != "FT3" {
		t.Fatalf("transfers = %+v", got)
	}
	if got[0].Amount != 99_000 || !got[0].ReceivedAt.Equal(since.Add(time.Minute)) {
		t.Fatalf("first transfer = %+v", got[0])
	}
}

func TestHTTPRail_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rail, _ := NewHTTPRail(srv.URL, "k", time.Second)
	if _, err := rail.FindIncomingTransfers(context.Background(), testAccount, time.Now()); err == nil {
		t.Fatal("expected an error on 503")
	}
	if _, err := NewHTTPRail("not a url", "k", 0); err == nil {
		t.Fatal("expected an error for a bad base url")
	}
}

func TestMemoryRail(t *testing.T) {
	r := NewMemoryRail()
	now := time.Now()
	r.Credit(model.IncomingTransfer{Reference: "old", AccountNumber: testAccount.AccountNumber, Amount: 1, ReceivedAt: now.Add(-time.Hour)})
	r.Credit(model.IncomingTransfer{Reference: "new", AccountNumber: testAccount.AccountNumber, Amount: 1, ReceivedAt: now})
	r.Credit(model.IncomingTransfer{Reference: "other", AccountNumber: "999", Amount: 1, ReceivedAt: now})

	got, _ := r.FindIncomingTransfers(context.Background(), testAccount, now.Add(-time.Minute))
	if len(got) != 1 || got[0].Reference != "new" {
		t.Fatalf("transfers = %+v", got)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"reference":"FT1","amount":99000}`)
	sig := Sign(body, "s3cret")

	if !VerifySignature(body, sig, "s3cret") {
		t.Fatal("valid signature rejected")
	}
	if !VerifySignature(body, sig[len("sha256="):], "s3cret") {
		t.Fatal("bare hex digest rejected")
	}
	if VerifySignature(body, sig, "other") {
		t.Fatal("wrong secret accepted")
	}
	if VerifySignature([]byte(`{"reference":"FT1","amount":990000}`), sig, "s3cret") {
		t.Fatal("tampered body accepted")
	}
	if VerifySignature(body, "", "s3cret") || VerifySignature(body, sig, "") {
		t.Fatal("empty header or secret accepted")
	}
}
