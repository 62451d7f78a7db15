package scalapay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/gorder-scalapay/internal/adapter/observ"
	"golang.org/x/time/rate"
)

const maxErrBody = 4 * 1024

// RemoteError is returned for transport failures and non-2xx answers.
type RemoteError struct {
	Op         string
	StatusCode int // 0 when the request never got an answer
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("scalapay %s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("scalapay %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("scalapay %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Client talks to the Scalapay v2 API. It never retries; callers decide.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.http = h } }
func WithBaseURL(u string) ClientOption          { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// NewClient builds a client for env. Defaults: 10s timeout, no rate limit.
func NewClient(env Environment, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: env.BaseURL(),
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderCreated, error) {
	var out OrderCreated
	if err := c.post(ctx, "create_order", "/v2/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CapturePayment(ctx context.Context, amountMinor int64, token string) (*CaptureResult, error) {
	var out CaptureResult
	body := captureRequest{Amount: NewAmount(amountMinor), Token: token}
	if err := c.post(ctx, "capture", "/v2/payments/capture", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefundPayment returns the provider's JSON answer untouched.
func (c *Client) RefundPayment(ctx context.Context, amountMinor int64) (json.RawMessage, error) {
	var out json.RawMessage
	body := refundRequest{RefundAmount: NewAmount(amountMinor)}
	if err := c.post(ctx, "refund", "/v2/payments/refund", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) (err error) {
	start := time.Now()
	defer func() { observ.GatewayObserved(op, err, start) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &RemoteError{Op: op, Err: err}
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
