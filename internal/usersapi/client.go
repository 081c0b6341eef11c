// Package usersapi is the HTTP client for the external users REST API:
// list, get, create, update and delete under {base}/users[/:id].
package usersapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/brattlof/roster/internal/apperrors"
)

const (
	maxResponseBytes = 1 << 20
	listFlightPrefix = "list:"
	tracerName       = "github.com/brattlof/roster/internal/usersapi"
)

// Client talks to the users API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	flights singleflight.Group
	// generation counts finished mutations. A list flight only serves
	// callers that arrived in the generation it started in.
	generation atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracerProvider records request spans with tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// Result is the outcome of a successful mutation. User is set when the API
// echoed a record with an identifier; Message carries the API's
// informational message, if any.
type Result struct {
	User    *User
	Message string
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("users api base url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse users api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("users api base url %q must be http or https", trimmed)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// List fetches all users. Concurrent calls share one in-flight request; the
// result is not retained once that request finishes. A call made after a
// Create, Update or Delete through this client never joins a
// request that started before it.
func (c *Client) List(ctx context.Context) ([]User, error) {
	key := listFlightPrefix + strconv.FormatUint(c.generation.Load(), 10)
	ch := c.flights.DoChan(key, func() (interface{}, error) {
		return c.list(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.KindTransport, "list users", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]User)
		users := make([]User, len(shared))
		copy(users, shared)
		return users, nil
	}
}

func (c *Client) list(ctx context.Context) ([]User, error) {
	env, err := c.do(ctx, http.MethodGet, nil, nil)
	if err != nil {
		return nil, err
	}
	if isNull(env.Data) {
		return []User{}, nil
	}
	var users []User
	if err := json.Unmarshal(env.Data, &users); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDecode, "decode user list", err)
	}
	return users, nil
}

// Get fetches one user.
func (c *Client) Get(ctx context.Context, id string) (User, error) {
	env, err := c.do(ctx, http.MethodGet, []string{id}, nil)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := json.Unmarshal(env.Data, &u); err != nil {
		return User{}, apperrors.Wrap(apperrors.KindDecode, "decode user", err)
	}
	return u, nil
}

// Create posts a new user.
func (c *Client) Create(ctx context.Context, in Input) (Result, error) {
	env, err := c.do(ctx, http.MethodPost, nil, in)
	if err != nil {
		return Result{}, err
	}
	return env.result(), nil
}

// Update replaces the name and email of user id.
func (c *Client) Update(ctx context.Context, id string, in Input) (Result, error) {
	if strings.TrimSpace(id) == "" {
		return Result{}, apperrors.E(apperrors.KindInvalidInput, "user id is required")
	}
	env, err := c.do(ctx, http.MethodPut, []string{id}, in)
	if err != nil {
		return Result{}, err
	}
	return env.result(), nil
}

// Delete removes user id. The body is sent as well; the API ignores it.
func (c *Client) Delete(ctx context.Context, id string, in Input) (Result, error) {
	if strings.TrimSpace(id) == "" {
		return Result{}, apperrors.E(apperrors.KindInvalidInput, "user id is required")
	}
	env, err := c.do(ctx, http.MethodDelete, []string{id}, in)
	if err != nil {
		return Result{}, err
	}
	return env.result(), nil
}

func (c *Client) endpoint(ids []string) string {
	segments := []string{"users"}
	for _, id := range ids {
		segments = append(segments, url.PathEscape(id))
	}
	return c.baseURL.JoinPath(segments...).String()
}

func (c *Client) do(ctx context.Context, method string, ids []string, body any) (env envelope, err error) {
	if method != http.MethodGet {
		// Failed mutations count too: the API may have applied them.
		defer c.generation.Add(1)
	}
	target := c.endpoint(ids)
	ctx, span := c.tracer.Start(ctx, "users "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperrors.UserMessage(err))
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return envelope{}, apperrors.Wrap(apperrors.KindTransport, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, apperrors.Wrap(apperrors.KindTransport, method+" "+target, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, apperrors.Wrap(apperrors.KindTransport, "read response", err)
	}

	c.logger.Debug("users api call",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, apperrors.Status(resp.StatusCode, errorMessage(data))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return envelope{}, nil
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, apperrors.Wrap(apperrors.KindDecode, "decode response", err)
	}
	return env, nil
}

// result extracts an echoed user and message from a mutation response. Data
// that is not a user (an insert result, a count) is ignored; data that is a
// bare string is an API message.
func (e envelope) result() Result {
	res := Result{Message: e.Message}
	if isNull(e.Data) {
		return res
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		if res.Message == "" {
			res.Message = s
		}
		return res
	}
	var u User
	if err := json.Unmarshal(e.Data, &u); err == nil && u.ID != "" {
		res.User = &u
	}
	return res
}

func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		var s string
		if err := json.Unmarshal(env.Data, &s); err == nil && s != "" {
			return s
		}
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
			return e.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
