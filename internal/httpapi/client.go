// Package httpapi is the JSON-over-HTTP client shared by the graph and
// geocoding providers. Every failure it returns is a typed friendgeo error so
// callers can decide between retry, skip and abort.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/logger"
)

const bodyPreviewLen = 200

// Client sends GET requests with a fixed header set and decodes JSON replies
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// New creates a client rooted at baseURL
func New(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "friendgeo/1.0",
		},
		baseURL: baseURL,
		logger:  log,
	}
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHTTPClient replaces the underlying transport client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins path and query onto the base URL
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"path":   req.URL.Path,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		// a cancelled run is not a provider failure
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"path":     req.URL.Path,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Transient(err, "network error")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// GetJSON performs a GET against rawURL and decodes the JSON body into target
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeConfig, err, "failed to create request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errs.Transient(err, "failed to read response body")
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > bodyPreviewLen {
			bodyPreview = bodyPreview[:bodyPreviewLen] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         req.URL.Path,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse JSON")
	}
	return nil
}

func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"path":   resp.Request.URL.Path,
	}
	e := errs.FromStatusCode(resp.StatusCode, fmt.Sprintf("%s returned %d", resp.Request.URL.Path, resp.StatusCode))

	switch e.Type {
	case errs.ErrorTypeRateLimit:
		c.logger.WarnWithFields("rate limit exceeded", fields)
	case errs.ErrorTypeAuth:
		c.logger.ErrorWithFields("provider rejected credentials", fields)
	case errs.ErrorTypeNotFound:
		c.logger.WarnWithFields("resource not found", fields)
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
	}
	return e
}
