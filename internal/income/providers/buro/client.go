package buro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"verigate/internal/income/models"
	"verigate/internal/platform/logger"
	"verigate/pkg/domain"
)

const (
	HeaderAPIKey  = "X-API-Key"
	HeaderSandbox = "X-Sandbox"

	maxBodyBytes = 5 << 20
)

// Config configures the HTTP client.
type Config struct {
	BaseURL        string
	APIKey         string
	Sandbox        bool
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Client talks to the Buró de Ingresos REST API. Every call is bounded by the
// configured timeouts and is attempted exactly once.
type Client struct {
	baseURL string
	apiKey  string
	sandbox bool
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New builds a client. BaseURL and APIKey are required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("buro base URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("buro base URL is invalid: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("buro API key is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.RequestTimeout

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		sandbox: cfg.Sandbox,
		http:    &http.Client{Timeout: cfg.RequestTimeout, Transport: transport},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchProfile calls GET /profile/{identifier}.
func (c *Client) FetchProfile(ctx context.Context, identifier domain.Identifier) (*models.ProfileSnapshot, error) {
	const op = "fetch_profile"
	body, err := c.get(ctx, op, "/profile/"+url.PathEscape(identifier.String()))
	if err != nil {
		return nil, err
	}
	profile, err := models.ParseProfile(body)
	if err != nil {
		return nil, NewProviderError(ErrorBadData, op, "profile body could not be parsed", err)
	}
	return profile, nil
}

// FetchEmployment calls GET /employments/{identifier}.
func (c *Client) FetchEmployment(ctx context.Context, identifier domain.Identifier) (*models.EmploymentSnapshot, error) {
	const op = "fetch_employment"
	body, err := c.get(ctx, op, "/employments/"+url.PathEscape(identifier.String()))
	if err != nil {
		return nil, err
	}
	employment, err := models.ParseEmployment(body)
	if err != nil {
		return nil, NewProviderError(ErrorBadData, op, "employment body could not be parsed", err)
	}
	return employment, nil
}

type verificationRequest struct {
	Identifier string `json:"identifier"`
	ExternalID string `json:"external_id,omitempty"`
}

type verificationResponse struct {
	VerificationID string `json:"verification_id"`
}

// RequestVerification calls POST /verifications and returns the provider's
// verification id when the response carries one.
func (c *Client) RequestVerification(ctx context.Context, identifier domain.Identifier, externalID string) (string, error) {
	const op = "request_verification"
	payload, err := json.Marshal(verificationRequest{Identifier: identifier.String(), ExternalID: externalID})
	if err != nil {
		return "", NewProviderError(ErrorInternal, op, "encode request", err)
	}

	body, err := c.do(ctx, op, http.MethodPost, "/verifications", payload)
	if err != nil {
		return "", err
	}
	var resp verificationResponse
	if len(bytes.TrimSpace(body)) > 0 {
		// The id is informational; an unexpected body does not fail an accepted request.
		_ = json.Unmarshal(body, &resp)
	}
	return resp.VerificationID, nil
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	return c.do(ctx, op, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	ctx, span := logger.StartSpan(ctx, "buro."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("provider.id", ProviderID),
		),
	)
	defer span.End()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, c.fail(span, NewProviderError(ErrorInternal, op, "build request", err))
	}
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sandbox {
		req.Header.Set(HeaderSandbox, "true")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(span, NewProviderError(categoryForTransport(err), op, "request failed", err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.fail(span, NewProviderError(categoryForTransport(err), op, "read response", err))
	}

	okStatus := resp.StatusCode == http.StatusOK
	if method == http.MethodPost {
		okStatus = resp.StatusCode >= 200 && resp.StatusCode < 300
	}
	if !okStatus {
		pe := NewProviderError(categoryForStatus(resp.StatusCode), op, "unexpected status", nil)
		pe.StatusCode = resp.StatusCode
		return nil, c.fail(span, pe)
	}
	return body, nil
}

func (c *Client) fail(span trace.Span, err *ProviderError) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Category))
	return err
}
