package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestClient(baseURL string) *Client {
	c := NewClient("10000100", "secret-phrase", baseURL, "v1", 5*time.Second)
	c.Now = fixedNow
	return c
}

func TestSignatureOrdering(t *testing.T) {
	c := newTestClient("https://example.test")

	params := map[string]string{
		"version":     "v1",
		"merchant-id": "10000100",
		"timestamp":   "2024-06-01T12:00:00",
	}
	got := c.Signature(params)

	// Keys alphabetical, passphrase included as its own parameter.
	want := md5.Sum([]byte("merchant-id=10000100&passphrase=secret-phrase&timestamp=2024-06-01T12%3A00%3A00&version=v1"))
	if got != hex.EncodeToString(want[:]) {
		t.Fatalf("signature mismatch: got %s", got)
	}
}

func TestCancelSubscriptionSuccess(t *testing.T) {
	var gotPath, gotSignature, gotMerchant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("expected PUT, got %s", r.Method)
		}
		gotPath = r.URL.Path
		gotSignature = r.Header.Get("signature")
		gotMerchant = r.Header.Get("merchant-id")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"status":"success"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.CancelSubscription(context.Background(), "sub-token-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/subscriptions/sub-token-1/cancel" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotMerchant != "10000100" {
		t.Fatalf("unexpected merchant id header: %s", gotMerchant)
	}
	wantSig := c.Signature(map[string]string{
		"merchant-id": "10000100",
		"timestamp":   "2024-06-01T12:00:00",
		"version":     "v1",
	})
	if gotSignature != wantSig {
		t.Fatalf("signature header mismatch: got %s want %s", gotSignature, wantSig)
	}
}

func TestCancelSubscriptionRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":400,"status":"failed","data":{"response":"Subscription not found"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.CancelSubscription(context.Background(), "missing-token")
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", gerr.StatusCode)
	}
	if gerr.Body == "" {
		t.Fatal("expected gateway body to be surfaced")
	}
}

func TestCancelSubscriptionNonSuccessStatus(t *testing.T) {
	// HTTP 200 but the gateway reports failure in the body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"status":"failed"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	var gerr *GatewayError
	if err := c.CancelSubscription(context.Background(), "tok"); !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}
