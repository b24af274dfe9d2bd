package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/leximpact/socio-fiscal-api/internal/platform/errors"
	"github.com/leximpact/socio-fiscal-api/internal/platform/telemetry/metrics"
	"github.com/leximpact/socio-fiscal-api/internal/platform/timeouts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	calculatePath     = "/calculate"
	maxErrorBodyBytes = 64 * 1024
	tracerName        = "github.com/leximpact/socio-fiscal-api/internal/services/simulation/engine"
)

// StatusError is a non-2xx answer from the engine.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine returned %d: %s", e.Status, e.Message)
}

// Message returns the engine's own message when err carries one.
func Message(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Client calls the engine calculation API over HTTP.
type Client struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewClient creates a client for the engine at baseURL. A zero timeout uses
// timeouts.EngineRequest.
func NewClient(baseURL string, timeout time.Duration, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = timeouts.EngineRequest
	}
	return &Client{
		url:     strings.TrimRight(strings.TrimSpace(baseURL), "/") + calculatePath,
		timeout: timeout,
		client:  client,
	}
}

// Calculate sends req to the engine and decodes its result.
func (c *Client) Calculate(ctx context.Context, req Request) (result Result, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.calculate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("engine.period", req.Period),
			attribute.StringSlice("engine.variables", req.Variables),
			attribute.Int("engine.reform.parameters", len(req.Reform)),
		),
	)
	started := time.Now()
	status := "error"
	defer func() {
		metrics.RecordEngineCall(status, time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode engine request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build engine request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeEngineUnavailable, "engine request", err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeEngineMismatch, "decode engine response", err)
	}
	return result, nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var payload struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	if message == "" {
		message = resp.Status
	}

	cause := &StatusError{Status: resp.StatusCode, Message: message}
	if resp.StatusCode >= 500 {
		return apperrors.Wrap(apperrors.CodeEngineUnavailable, "engine failure", cause)
	}
	return apperrors.WrapWithMetadata(apperrors.CodeEngineRejected, "engine rejected calculation",
		map[string]string{"Reason": message}, cause)
}
