// Package transport provides the HTTP and websocket transports for venue communication.
package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"
)

// HTTPConfig holds the REST transport configuration.
type HTTPConfig struct {
	BaseURL      string            `validate:"required,url"`
	Timeout      time.Duration     `validate:"min=1ms"`
	MaxRetries   int               `validate:"min=0"`
	RetryWaitMin time.Duration     `validate:"min=0"`
	RetryWaitMax time.Duration     `validate:"min=0"`
	Headers      map[string]string `validate:"omitempty"`
}

// HTTPClient wraps a resty client with sonic JSON codecs and wire logging.
// It is safe for concurrent use.
type HTTPClient struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

// NewHTTPClient creates an HTTP client for the configured base URL.
func NewHTTPClient(config HTTPConfig, logger zerolog.Logger) (*HTTPClient, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid http config: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(config.MaxRetries)
	client.SetRetryWaitTime(config.RetryWaitMin)
	client.SetRetryMaxWaitTime(config.RetryWaitMax)
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})

	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return &HTTPClient{
		client: client,
		logger: logger,
	}, nil
}

// Post sends a JSON body to the given path and returns the raw response.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*resty.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("http client is closed")
	}

	return c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
}

// Get requests the given path with optional query parameters.
func (c *HTTPClient) Get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("http client is closed")
	}

	req := c.client.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	return req.Get(path)
}

// Close releases the underlying client. Subsequent calls fail.
func (c *HTTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}
