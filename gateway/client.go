// Package gateway is a client for the payment gateway's merchant API.
package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Client issues signed requests against the gateway's subscription API.
type Client struct {
	merchantID string
	passphrase string
	baseURL    string
	version    string
	httpClient *http.Client

	// Now is swappable for tests; signatures include a timestamp.
	Now func() time.Time
}

func NewClient(merchantID, passphrase, baseURL, version string, timeout time.Duration) *Client {
	return &Client{
		merchantID: merchantID,
		passphrase: passphrase,
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		httpClient: &http.Client{Timeout: timeout},
		Now:        time.Now,
	}
}

// GatewayError carries the gateway's reported status and body.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gateway unreachable: %s", e.Body)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// CancelSubscription cancels the recurring subscription behind token.
// The gateway authenticates merchants by an MD5 signature over the
// alphabetically ordered header parameters plus the shared passphrase.
func (c *Client) CancelSubscription(ctx context.Context, token string) error {
	timestamp := c.Now().UTC().Format("2006-01-02T15:04:05")
	params := map[string]string{
		"merchant-id": c.merchantID,
		"timestamp":   timestamp,
		"version":     c.version,
	}

	endpoint := fmt.Sprintf("%s/subscriptions/%s/cancel", c.baseURL, url.PathEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build cancel request: %w", err)
	}
	for key, value := range params {
		req.Header.Set(key, value)
	}
	req.Header.Set("signature", c.Signature(params))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var body struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode != http.StatusOK || body.Status != "success" {
		return &GatewayError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}

// Signature computes the md5 hex digest of the parameter string the gateway
// expects: keys sorted alphabetically, values url-encoded, passphrase
// appended as its own parameter.
func (c *Client) Signature(params map[string]string) string {
	signed := make(map[string]string, len(params)+1)
	for key, value := range params {
		signed[key] = value
	}
	if c.passphrase != "" {
		signed["passphrase"] = c.passphrase
	}

	keys := make([]string, 0, len(signed))
	for key := range signed {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+url.QueryEscape(signed[key]))
	}

	sum := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}
