// Package authapi is the HTTP client for the photo service's /api/auth
// routes: login, register, refresh and logout.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/photoctl/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/wolfeidau/photoctl/internal/authapi"

	loginPath    = "/api/auth/login"
	registerPath = "/api/auth/register"
	refreshPath  = "/api/auth/refresh"
	logoutPath   = "/api/auth/logout"

	// RequestIDHeader carries a per call identifier for server side correlation.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes  = 1 << 20
	maxLogoutAttempts = 3
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\p{Han}]+$`)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
	}
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout takes precedence
// over Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogoutBackOff sets the retry policy used when notifying logout.
func WithLogoutBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

// Client talks to the Auth Gateway. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	validate   *validator.Validate
	tracer     trace.Tracer
	newBackOff func() backoff.BackOff
}

// New creates a client for the server in cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("server URL must be http or https, got %q", cfg.ServerURL)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("failed to register username validation: %w", err)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		validate:   validate,
		tracer:     otel.Tracer(tracerName),
		newBackOff: defaultBackOff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// Login exchanges a username or email and password for a session.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := c.check(ctx, "login", req); err != nil {
		return nil, err
	}
	var resp models.AuthResponse
	if err := c.do(ctx, "login", loginPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := c.check(ctx, "register", req); err != nil {
		return nil, err
	}
	var resp models.AuthResponse
	if err := c.do(ctx, "register", registerPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh trades a refresh token for a new access token and a rotated
// refresh token. It is never retried: the server invalidates the old refresh
// token on first use.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	req := models.RefreshRequest{RefreshToken: refreshToken}
	if err := c.check(ctx, "refresh", req); err != nil {
		return nil, err
	}
	var resp models.AuthResponse
	if err := c.do(ctx, "refresh", refreshPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the refresh token, or every session of the user when
// allSessions is set. Transient failures are retried a few times.
func (c *Client) Logout(ctx context.Context, refreshToken string, allSessions bool) error {
	req := models.LogoutRequest{RefreshToken: refreshToken, LogoutAllSessions: allSessions}
	if err := c.check(ctx, "logout", req); err != nil {
		return err
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.do(ctx, "logout", logoutPath, req, nil)
		if err != nil && !errors.Is(err, ErrUnavailable) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(maxLogoutAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().Err(err).Dur("retryIn", next).Msg("logout notification failed, retrying")
		}),
	)
	return err
}

func (c *Client) check(ctx context.Context, op string, req any) error {
	if err := c.validate.StructCtx(ctx, req); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}
	return nil
}

// envelope is the wrapper every /api response uses.
type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

func (c *Client) do(ctx context.Context, op, path string, body, out any) (err error) {
	endpoint := c.baseURL.JoinPath(path).String()
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "authapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.full", endpoint),
			attribute.String("request.id", requestID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	started := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("op", op).Str("requestID", requestID).Msg("auth request failed")
		return &Error{Op: op, Err: errors.Join(ErrUnavailable, err)}
	}
	defer res.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))

	log.Debug().
		Str("op", op).
		Str("requestID", requestID).
		Int("status", res.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("auth request")

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, StatusCode: res.StatusCode, Err: errors.Join(ErrUnavailable, err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &Error{Op: op, StatusCode: res.StatusCode, Err: statusError(res.StatusCode)}
		if decodeErr == nil {
			apiErr.Code = env.Code
			apiErr.Message = env.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}

	if decodeErr != nil {
		return &Error{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("%w: %v", ErrInvalidPayload, decodeErr)}
	}

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return &Error{Op: op, StatusCode: res.StatusCode, Code: env.Code, Message: env.Message, Err: ErrInvalidPayload}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("%w: %v", ErrInvalidPayload, err)}
	}

	return nil
}
