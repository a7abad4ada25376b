// Package client talks to the platform's REST backend. Every response is
// normalized here into internal/model records before any view sees it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/cache"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/response"
	"golang.org/x/time/rate"
)

// Common client errors.
var (
	ErrSessionExpired = errors.New("session expired")
	ErrUserNotFound   = errors.New("user not found")
	ErrUnusableExam   = errors.New("exam has no usable content")
	ErrUnreachable    = errors.New("backend unreachable")
)

// maxBody caps how much of a response is read.
const maxBody = 10 << 20

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %d %s: %s", e.Status, e.Code, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond int
	// HTTPClient overrides the default client (tests use httptest's).
	HTTPClient *http.Client
	// Cache, when set, serves repeated list fetches for CacheTTL.
	Cache    cache.Cache
	CacheTTL time.Duration
	// OnSessionExpired runs after a 401 cleared the cached identity.
	OnSessionExpired func()
}

// Client is the shared HTTP client every view goes through.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	identity  *identity.Context
	cache     cache.Cache
	cacheTTL  time.Duration
	onExpired func()
	log       zerolog.Logger
}

// New creates a Client that reads credentials from idc.
func New(cfg Config, idc *identity.Context, log zerolog.Logger) *Client {
	h := &http.Client{}
	if cfg.HTTPClient != nil {
		// Copy so the timeout below stays local to this client.
		copied := *cfg.HTTPClient
		h = &copied
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = cfg.RatePerSecond
	}

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		http:      h,
		limiter:   rate.NewLimiter(limit, burst),
		identity:  idc,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		onExpired: cfg.OnSessionExpired,
		log:       log.With().Str("component", "api_client").Logger(),
	}
}

// SetSessionExpiredHook replaces the 401 hook.
func (c *Client) SetSessionExpiredHook(fn func()) {
	c.onExpired = fn
}

// Identity exposes the session context the client reads credentials from.
func (c *Client) Identity() *identity.Context {
	return c.identity
}

type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	// anonymous requests never carry a credential, so a 401 on them is a
	// credential failure rather than an expired session.
	anonymous bool
}

// do sends req and decodes the reply's data into out (which may be nil).
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	raw, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return decodeData(raw, out)
}

// send performs the round trip and returns the raw 2xx body.
func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", req.path, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	reqID := response.RequestIDFrom(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	httpReq.Header.Set("X-Request-ID", reqID)

	if !req.anonymous && c.identity != nil {
		token, err := c.identity.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	res, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Debug().Err(err).Str("method", req.method).Str("path", req.path).Msg("Request failed")
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, req.method, req.path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.path, err)
	}

	c.log.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", res.StatusCode).
		Dur("took", time.Since(start)).
		Str("request_id", reqID).
		Msg("Backend call")

	if res.StatusCode == http.StatusUnauthorized && !req.anonymous {
		c.expire(ctx)
		return nil, ErrSessionExpired
	}

	if res.StatusCode/100 != 2 {
		return nil, decodeError(res.StatusCode, raw)
	}
	return raw, nil
}

// expire clears the cached identity and tells the UI to go to login.
func (c *Client) expire(ctx context.Context) {
	if c.identity != nil {
		if err := c.identity.Clear(context.WithoutCancel(ctx)); err != nil {
			c.log.Error().Err(err).Msg("Clear identity after 401 failed")
		}
	}
	c.log.Info().Msg("Session expired, identity cleared")
	if c.onExpired != nil {
		c.onExpired()
	}
}

// envelope is the backend's standard response wrapper.
type envelope struct {
	Data     json.RawMessage     `json:"data"`
	Error    *response.ErrorBody `json:"error"`
	Message  string              `json:"message"`
	Metadata json.RawMessage     `json:"metadata"`
	Success  *bool               `json:"success"`
}

// decodeData unwraps {data: ...} envelopes and decodes bare bodies as-is.
func decodeData(raw []byte, out interface{}) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		if data, ok := fields["data"]; ok && isEnvelope(fields) {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode data: %w", err)
			}
			return nil
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func isEnvelope(fields map[string]json.RawMessage) bool {
	for _, k := range []string{"metadata", "error", "pagination", "success", "message"} {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return len(fields) == 1
}

func decodeError(status int, raw []byte) error {
	apiErr := &APIError{Status: status}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		} else if env.Message != "" {
			apiErr.Message = env.Message
		}
	}

	if apiErr.Code == "" {
		apiErr.Code = codeForStatus(status)
	}
	if apiErr.Message == "" {
		apiErr.Message = response.GetMessage(apiErr.Code)
	}
	return apiErr
}

func codeForStatus(status int) response.ErrCode {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return response.ErrValidation
	case status == http.StatusUnauthorized:
		return response.ErrInvalidCredentials
	case status == http.StatusForbidden:
		return response.ErrForbidden
	case status == http.StatusNotFound:
		return response.ErrNotFound
	case status == http.StatusConflict:
		return response.ErrConflict
	case status == http.StatusTooManyRequests:
		return response.ErrRateLimitExceeded
	case status >= 500:
		return response.ErrBackendUnavailable
	default:
		return response.ErrInternal
	}
}
