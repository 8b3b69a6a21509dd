package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iskng/embed-star/internal/domain"
	"github.com/iskng/embed-star/internal/tlsutil"
)

// baseProvider holds the HTTP plumbing common to every backend: the
// client, base URL, and the request/error-mapping helper.
type baseProvider struct {
	name       string
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

type baseConfig struct {
	Name       string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

func newBaseProvider(cfg baseConfig) *baseProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &baseProvider{
		name:       cfg.Name,
		client:     tlsutil.SecureHTTPClient(timeout),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (p *baseProvider) Name() string    { return p.name }
func (p *baseProvider) Model() string   { return p.model }
func (p *baseProvider) Dimensions() int { return p.dimensions }

// doRequest issues one JSON HTTP request and returns the raw response body,
// mapping network failures and 4xx/5xx status codes onto domain.Error's
// retryable/terminal split.
func (p *baseProvider) doRequest(ctx context.Context, method, endpoint string, body any, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("embedding: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrProviderTransient, err.Error()).
			WithRetryable(true).
			WithProvider(p.name)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, string(respBody), p.name)
	}

	return respBody, nil
}

// mapHTTPError classifies an HTTP status: network/5xx/429/timeout are
// ProviderTransient (retryable); 4xx other than 429 is ProviderTerminal.
func mapHTTPError(status int, msg, provider string) *domain.Error {
	kind := domain.ErrProviderTransient
	retryable := status >= 500

	if status == http.StatusTooManyRequests {
		retryable = true
	} else if status >= 400 && status < 500 {
		kind = domain.ErrProviderTerminal
		retryable = false
	}

	return domain.NewError(kind, fmt.Sprintf("http %d: %s", status, msg)).
		WithRetryable(retryable).
		WithProvider(provider)
}
