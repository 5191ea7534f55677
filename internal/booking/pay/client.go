package pay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrDeclined is returned when the processor answers but refuses the capture.
var ErrDeclined = errors.New("pay: capture declined")

// Client is a minimal card processor API client.
type Client struct {
	httpClient *http.Client
	merchantID string
	secret     string
	baseURL    string
	logger     *slog.Logger
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a new processor client.
func NewClient(baseURL, merchantID, secret string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		merchantID: merchantID,
		secret:     secret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CaptureResult is the processor answer to a capture.
type CaptureResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
}

type captureRequest struct {
	MerchantID  string `json:"merchant_id"`
	JobID       string `json:"job_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Capture charges amountCents for the job. The job id doubles as idempotency key,
// so repeating a capture for the same job is safe on the processor side.
func (c *Client) Capture(ctx context.Context, jobID string, amountCents int64) (CaptureResult, error) {
	if amountCents <= 0 {
		return CaptureResult{}, fmt.Errorf("pay: invalid amount %d", amountCents)
	}
	body, err := json.Marshal(captureRequest{
		MerchantID:  c.merchantID,
		JobID:       jobID,
		AmountCents: amountCents,
		Currency:    "USD",
	})
	if err != nil {
		return CaptureResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/captures", bytes.NewReader(body))
	if err != nil {
		return CaptureResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Signature", Sign(body, c.secret))
	httpReq.Header.Set("Idempotency-Key", jobID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("capture request failed", slog.String("job_id", jobID), slog.Any("error", err))
		return CaptureResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Error("capture rejected", slog.String("job_id", jobID), slog.Int("status", resp.StatusCode))
		return CaptureResult{}, fmt.Errorf("pay: unexpected status %s", resp.Status)
	}

	var result CaptureResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CaptureResult{}, err
	}
	if !result.Success {
		c.logger.Warn("capture declined", slog.String("job_id", jobID), slog.Int64("amount_cents", amountCents))
		return result, ErrDeclined
	}
	c.logger.Info("capture ok", slog.String("job_id", jobID), slog.String("transaction_id", result.TransactionID), slog.Int64("amount_cents", amountCents))
	return result, nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
