package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ordersaga/internal/logger"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName   = "ordersaga/transport"
	maxBodyBytes = 1 << 20
)

var (
	ErrTimeout     = errors.New("collaborator timed out")
	ErrUnreachable = errors.New("collaborator unreachable")
	ErrMalformed   = errors.New("collaborator response malformed")
)

// StatusError is a non-2xx answer from a collaborator.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
}

// IsNotFound reports whether err is a 404 from a collaborator.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client is a JSON-over-HTTP client for one collaborator. Every call is a
// single attempt bounded by the client timeout.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

type Option func(*Client)

// WithRoundTripper replaces the underlying transport. Requests still pass
// through the otelhttp wrapper, so trace headers are injected either way.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = otelhttp.NewTransport(rt) }
}

func NewClient(name, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.name }

// DoJSON sends in (if non-nil) as the JSON body and decodes a 2xx response
// into out (if non-nil). Failures wrap ErrTimeout, ErrUnreachable,
// ErrMalformed or a *StatusError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	ctx, span := c.tracer.Start(ctx, c.name+" "+method,
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("peer.service", c.name),
		),
	)
	defer span.End()

	log := logger.FromCtx(ctx).With(
		zap.String("collaborator", c.name),
		zap.String("method", method),
		zap.String("path", path),
	)

	err := c.do(ctx, method, path, in, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("collaborator call failed", zap.Error(err))
		return err
	}

	log.Debug("collaborator call succeeded")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.name, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.RequestIDFrom(ctx); id != "" {
		req.Header.Set(logger.RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", c.name, classify(err), err)
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("http.response.status_code", resp.StatusCode),
		attribute.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %w", c.name, classify(err), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Service: c.name, Code: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %w", c.name, ErrMalformed, err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrUnreachable
}
