package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/payment"
	"github.com/cockroachdb/errors"
)

// Client talks to the external payment provider over its REST API.
// The engine never moves money itself.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) CreateIntent(ctx context.Context, amount float64, currency string, metadata map[string]string) (payment.Intent, error) {
	var out struct {
		IntentID     string `json:"intent_id"`
		ClientSecret string `json:"client_secret"`
	}
	err := c.post(ctx, "/v1/intents", map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"metadata": metadata,
	}, &out)
	if err != nil {
		return payment.Intent{}, err
	}
	return payment.Intent{IntentID: out.IntentID, ClientSecret: out.ClientSecret}, nil
}

func (c *Client) CaptureResult(ctx context.Context, intentID string) (payment.CaptureResult, error) {
	var out struct {
		Status      string `json:"status"`
		ExternalRef string `json:"external_ref"`
		Reason      string `json:"reason"`
	}
	err := c.post(ctx, "/v1/intents/"+intentID+"/capture", map[string]interface{}{}, &out)
	if err != nil {
		return payment.CaptureResult{}, err
	}
	return payment.CaptureResult{
		Outcome:     payment.CaptureOutcome(out.Status),
		ExternalRef: out.ExternalRef,
		Reason:      out.Reason,
	}, nil
}

func (c *Client) Refund(ctx context.Context, externalRef string, amount float64) (string, error) {
	var out struct {
		RefundRef string `json:"refund_ref"`
	}
	err := c.post(ctx, "/v1/refunds", map[string]interface{}{
		"external_ref": externalRef,
		"amount":       amount,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.RefundRef, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Newf("provider returned %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
