// Package gateway is the HTTP client for the backend authentication API.
// It is stateless: every call returns a normalized Envelope and never
// touches session state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	pathRegister     = "/auth/register"
	pathVerifyOtp    = "/auth/verify-otp"
	pathResendOtp    = "/auth/resend-otp"
	pathLogin        = "/auth/login"
	pathLogout       = "/auth/logout"
	pathSetPin       = "/user/transaction-pin"
	pathVerifyPin    = "/user/transaction-pin/verify"
	maxResponseBytes = 1 << 20

	idempotencyKeyHeader = "Idempotency-Key"
	requestIDHeader      = "X-Request-ID"
)

type requestIDKey struct{}

// WithRequestID returns a context whose gateway calls carry id in the
// X-Request-ID header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Config tunes the HTTP transport and retry policy.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// Client issues the auth operations against the backend.
type Client struct {
	http            *http.Client
	baseURL         string
	retryMaxElapsed time.Duration
	logger          *slog.Logger
}

// NewClient builds a gateway client. A zero RetryMaxElapsed disables retries.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 8
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	tr := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		http:            &http.Client{Transport: tr, Timeout: cfg.Timeout},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		retryMaxElapsed: cfg.RetryMaxElapsed,
		logger:          logger,
	}
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, p RegisterPayload) (Envelope, error) {
	return c.post(ctx, pathRegister, "", p)
}

// VerifyOtp confirms the emailed registration code.
func (c *Client) VerifyOtp(ctx context.Context, email string, otp int) (Envelope, error) {
	return c.post(ctx, pathVerifyOtp, "", verifyOtpRequest{Email: email, Otp: otp})
}

// ResendOtp asks the backend to email a fresh verification code.
func (c *Client) ResendOtp(ctx context.Context, email string) (Envelope, error) {
	return c.post(ctx, pathResendOtp, "", emailRequest{Email: email})
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, p LoginPayload) (Envelope, error) {
	return c.post(ctx, pathLogin, "", p)
}

// SetTransactionPin provisions the transaction PIN for the bearer's account.
func (c *Client) SetTransactionPin(ctx context.Context, token, newPin, confirmPin string) (Envelope, error) {
	return c.post(ctx, pathSetPin, token, setPinRequest{NewPin: newPin, ConfirmPin: confirmPin})
}

// VerifyTransactionPin checks a PIN against the one stored for the bearer.
func (c *Client) VerifyTransactionPin(ctx context.Context, token, pin string) (Envelope, error) {
	return c.post(ctx, pathVerifyPin, token, verifyPinRequest{Pin: pin})
}

// Logout revokes the bearer token server side.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.post(ctx, pathLogout, token, nil)
	return err
}

func (c *Client) post(ctx context.Context, path, token string, payload any) (Envelope, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return Envelope{}, fmt.Errorf("encode %s request: %w", path, err)
		}
	}

	// one key for every attempt so the backend can collapse retries
	idemKey := uuid.NewString()

	var env Envelope
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build %s request: %w", path, err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(idempotencyKeyHeader, idemKey)
		if reqID := requestIDFrom(ctx); reqID != "" {
			req.Header.Set(requestIDHeader, reqID)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("post %s: %w", path, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read %s response: %w", path, err)
		}

		decoded, decodeErr := decodeEnvelope(raw)
		if resp.StatusCode >= http.StatusBadRequest {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: decoded.Message, Envelope: decoded}
			if resp.StatusCode >= http.StatusInternalServerError {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if decodeErr != nil {
			return backoff.Permanent(fmt.Errorf("%s: %w", path, decodeErr))
		}
		env = decoded
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("gateway request retry", slog.String("path", path), slog.Duration("wait", wait), slog.Any("error", err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(c.retryPolicy(), ctx), notify); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (c *Client) retryPolicy() backoff.BackOff {
	if c.retryMaxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = c.retryMaxElapsed
	return b
}

// decodeEnvelope parses a response body into an Envelope. A body that is not
// a JSON object still yields a zero Envelope alongside the error.
func decodeEnvelope(raw []byte) (Envelope, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return Envelope{}, ErrMalformedResponse
	}

	env := Envelope{Body: body, Status: normalizeStatus(body["status"])}
	env.Message, _ = body["message"].(string)
	if env.Message == "" {
		env.Message = firstValidationError(body["errors"])
	}
	if data, ok := body["data"].(map[string]any); ok {
		env.Data = data
	}
	return env, nil
}

func normalizeStatus(v any) string {
	switch s := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(s))
	case bool:
		if s {
			return "success"
		}
		return "failed"
	default:
		return ""
	}
}

// firstValidationError pulls the first message out of a Laravel style
// {"errors": {"field": ["msg"]}} object or a plain list of messages.
func firstValidationError(v any) string {
	switch errs := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if msg := firstValidationError(errs[k]); msg != "" {
				return msg
			}
		}
	case []any:
		for _, item := range errs {
			if msg := firstValidationError(item); msg != "" {
				return msg
			}
		}
	case string:
		return errs
	}
	return ""
}
