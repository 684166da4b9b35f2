package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sender performs a single webhook HTTP POST. Retry scheduling, circuit
// breaking, and queueing are the Dispatcher's concern. Zero value is not
// usable; use NewSender.
type Sender struct {
	// client is reused across requests for connection pooling
	client  *http.Client
	timeout time.Duration
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithHTTPClient sets a custom HTTP client, for proxies or testing.
func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithRequestTimeout sets the per-attempt timeout. Default 10s.
func WithRequestTimeout(timeout time.Duration) SenderOption {
	return func(s *Sender) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewSender creates a webhook sender with pooled connections.
func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeliveryResult describes a single delivery attempt.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Duration   time.Duration
	Error      error
}

// Deliver POSTs the payload once. The returned error wraps
// ErrPermanentFailure for responses that will not improve with retries.
func (s *Sender) Deliver(ctx context.Context, url string, headers map[string]string, payload []byte) (DeliveryResult, error) {
	start := time.Now()
	result := DeliveryResult{}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		result.Duration = time.Since(start)
		result.Error = err
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "teneo-go-webhook/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		if reqCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300

	// Response body is only kept for error context (64KB cap).
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if !result.Success {
		errMsg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		if len(body) > 0 {
			bodyStr := strings.ReplaceAll(string(body), "\n", " ")
			if len(bodyStr) > 200 {
				bodyStr = bodyStr[:200] + "..."
			}
			errMsg += ": " + bodyStr
		}
		if isPermanentStatus(resp.StatusCode) {
			result.Error = fmt.Errorf("%w: %s", ErrPermanentFailure, errMsg)
		} else {
			result.Error = fmt.Errorf("%w: %s", ErrTemporaryFailure, errMsg)
		}
		return result, result.Error
	}

	return result, nil
}

// isPermanentStatus reports whether a status code will not improve with
// retries. Most 4xx codes are client errors; 408/425/429 are timing or
// rate-limit conditions worth retrying.
func isPermanentStatus(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}
