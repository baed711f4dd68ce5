package ordersapi

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

const instrumentationName = "github.com/Additional-Code/orderdesk/ordersapi"

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

var tracer = otel.Tracer(instrumentationName)

// Module provides the order API client to Fx.
var Module = fx.Provide(New)

// Client talks to the order store over its REST contract. Every method is a
// single round trip without caching or retries.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
	requests   metric.Int64Counter
	duration   metric.Float64Histogram
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a Client from configuration.
func New(cfg config.Config, logger *zap.Logger) (*Client, error) {
	return NewClient(cfg.OrdersAPI.BaseURL, cfg.OrdersAPI.Timeout, logger)
}

// NewClient builds a Client for baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse orders api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("orders api url %q must be absolute", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := otel.Meter(instrumentationName)
	requests, err := meter.Int64Counter("ordersapi.requests",
		metric.WithDescription("Order API calls by operation and outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("ordersapi.duration",
		metric.WithDescription("Order API call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:   logger.Named("ordersapi"),
		requests: requests,
		duration: duration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListOrders fetches one page of orders matching filters. Any non-2xx
// response is a server error.
func (c *Client) ListOrders(ctx context.Context, filters dto.OrderFilters) (*dto.OrdersResponse, error) {
	var out dto.OrdersResponse
	err := c.do(ctx, call{
		operation: "list",
		method:    http.MethodGet,
		path:      "/orders",
		query:     filters.Query(),
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Orders == nil {
		out.Orders = []dto.Order{}
	}
	return &out, nil
}

// GetOrder fetches one order. A 2xx response without an order in it
// (empty, null or id-less) is NotFound.
func (c *Client) GetOrder(ctx context.Context, id dto.ID) (*dto.Order, error) {
	var out *dto.Order
	err := c.do(ctx, call{
		operation:  "get",
		method:     http.MethodGet,
		path:       orderPath(id),
		id:         id,
		notFoundOK: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return found(out, id)
}

// UpdateOrder applies a partial update and returns the stored order.
func (c *Client) UpdateOrder(ctx context.Context, id dto.ID, patch dto.OrderPatch) (*dto.Order, error) {
	var out *dto.Order
	err := c.do(ctx, call{
		operation:  "update",
		method:     http.MethodPatch,
		path:       orderPath(id),
		id:         id,
		body:       patch,
		notFoundOK: true,
		write:      true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return found(out, id)
}

// CreateOrder submits a new order; the server assigns its identifier.
func (c *Client) CreateOrder(ctx context.Context, order dto.Order) (*dto.Order, error) {
	order.ID = ""
	var out dto.Order
	err := c.do(ctx, call{
		operation: "create",
		method:    http.MethodPost,
		path:      "/orders",
		body:      order,
		write:     true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type call struct {
	operation  string
	method     string
	path       string
	query      url.Values
	id         dto.ID
	body       any
	notFoundOK bool
	write      bool
}

// found rejects a successful response that carried no order.
func found(out *dto.Order, id dto.ID) (*dto.Order, error) {
	if out == nil || out.ID.IsZero() {
		return nil, errorbank.NotFound("order not found",
			errorbank.WithDetail("id", id.String()),
			errorbank.WithDetail("reason", "empty response"))
	}
	return out, nil
}

func orderPath(id dto.ID) string {
	return "/orders/" + url.PathEscape(id.String())
}

func (c *Client) do(ctx context.Context, in call, out any) (err error) {
	ctx, span := tracer.Start(ctx, "ordersapi."+in.operation, trace.WithSpanKind(trace.SpanKindClient))
	if !in.id.IsZero() {
		span.SetAttributes(attribute.String("order.id", in.id.String()))
	}
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(errorbank.From(err).Kind())
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		attrs := metric.WithAttributes(
			attribute.String("operation", in.operation),
			attribute.String("outcome", outcome),
		)
		c.requests.Add(ctx, 1, attrs)
		c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()
	}()

	req, err := c.newRequest(ctx, in)
	if err != nil {
		return errorbank.Internal("build order api request", errorbank.WithCause(err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("order api unreachable", zap.String("operation", in.operation), zap.Error(err))
		return errorbank.Network("order api unreachable", errorbank.WithCause(err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(in, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) && in.notFoundOK {
			// Empty body; found() turns it into NotFound.
			return nil
		}
		if isTransportError(err) {
			return errorbank.Network("order api connection dropped", errorbank.WithCause(err))
		}
		return errorbank.Server("order api returned a malformed body",
			errorbank.WithCause(err),
			errorbank.WithDetail("status", resp.StatusCode))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, in call) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + in.path
	if in.query != nil {
		u.RawQuery = in.query.Encode()
	}

	var body io.Reader
	if in.body != nil {
		raw, err := json.Marshal(in.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) statusError(in call, resp *http.Response) error {
	message := serverMessage(resp)
	opts := []errorbank.Option{errorbank.WithDetail("status", resp.StatusCode)}
	if !in.id.IsZero() {
		opts = append(opts, errorbank.WithDetail("id", in.id.String()))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && in.notFoundOK:
		return errorbank.NotFound(fallback(message, "order not found"), opts...)
	case in.write && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity):
		return errorbank.Validation(fallback(message, "order rejected"), opts...)
	default:
		c.logger.Warn("order api error response",
			zap.String("operation", in.operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", message),
		)
		return errorbank.Server(fallback(message, fmt.Sprintf("order api responded %d", resp.StatusCode)), opts...)
	}
}

// serverMessage extracts {"error":{"message"}} or {"message"} from a failed
// response, or its trimmed text.
func serverMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var envelope struct {
		Error json.RawMessage `json:"error"`
		Msg   string          `json:"message"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		var nested struct {
			Message string `json:"message"`
		}
		if len(envelope.Error) > 0 && json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if len(envelope.Error) > 0 && json.Unmarshal(envelope.Error, &plain) == nil && plain != "" {
			return plain
		}
		if envelope.Msg != "" {
			return envelope.Msg
		}
		return ""
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func fallback(message, def string) string {
	if message == "" {
		return def
	}
	return message
}

func isTransportError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
