package powerwall

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DEFAULT_TIMEOUT = 10 * time.Second

	loginPath           = "/api/login/Basic"
	aggregatesPath      = "/api/meters/aggregates"
	operationPath       = "/api/operation"
	configCompletedPath = "/api/config/completed"
)

type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	insecure   bool
	forceSmOff bool
	logger     *zap.Logger
	instrument []GatewayInstrument
}

type GatewayInstrument struct {
	RecordTime func(endpoint string, d time.Duration)
}

type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithInsecureSkipVerify toggles TLS certificate verification. Gateways ship
// a self-signed certificate, so verification is skipped unless disabled here.
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Client) {
		c.insecure = skip
	}
}

func WithForceSmOff(force bool) ClientOption {
	return func(c *Client) {
		c.forceSmOff = force
	}
}

// WithHTTPClient replaces the transport entirely; timeout and TLS options are ignored.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithInstrument(instrument GatewayInstrument) ClientOption {
	return func(c *Client) {
		c.instrument = append(c.instrument, instrument)
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:  DEFAULT_TIMEOUT,
		insecure: true,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: c.insecure} //nolint:gosec
		// no connection outlives its exchange
		transport.DisableKeepAlives = true
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: transport,
		}
	}
	return c
}

func endpointURL(host, path string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("empty gateway host")
	}
	base := host
	if !strings.Contains(host, "://") {
		base = "https://" + host
	}
	return url.JoinPath(base, path)
}

func (c *Client) do(ctx context.Context, method, host, path, token string, body any) ([]byte, error) {
	defer recordTimer(path, c.instrument)()

	endpoint, err := endpointURL(host, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("gateway request", zap.String("method", method), zap.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrTransport, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}
	return data, nil
}

func recordTimer(endpoint string, instrument []GatewayInstrument) func() {
	if len(instrument) == 0 {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(endpoint, d)
		}
	}
}
