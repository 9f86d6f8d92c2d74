package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/urbanknots/pkg/cache"
	"github.com/matzehuels/urbanknots/pkg/errors"
	"github.com/matzehuels/urbanknots/pkg/pipeline"
	"github.com/matzehuels/urbanknots/pkg/session"
)

// Client talks to a Server. Transport failures and gateway or overload
// answers (502, 503, 504) are retried with backoff; everything else is
// returned as the server's error.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Resolve posts b to the server and returns the stored document.
func (c *Client) Resolve(ctx context.Context, b *pipeline.Bundle, opts pipeline.Options) (*ResolveResponse, error) {
	body, err := json.Marshal(ResolveRequest{Bundle: *b, Options: opts})
	if err != nil {
		return nil, err
	}
	var resp ResolveResponse
	if err := c.do(ctx, http.MethodPost, "/v1/resolve", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Document fetches a stored document.
func (c *Client) Document(ctx context.Context, id string) (*session.Record, error) {
	var rec session.Record
	if err := c.do(ctx, http.MethodGet, "/v1/documents/"+id, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteDocument removes a stored document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/documents/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	return cache.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return cache.Retryable(fmt.Errorf("%s %s: %w", method, path, err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return cache.Retryable(err)
		}
		if resp.StatusCode >= 400 {
			err := decodeError(resp.StatusCode, data)
			if retryableStatus(resp.StatusCode) {
				return cache.Retryable(err)
			}
			return err
		}
		if out == nil || len(data) == 0 {
			return nil
		}
		return json.Unmarshal(data, out)
	})
}

// retryableStatus reports whether a reply may succeed when sent again.
// Engine errors are deterministic, so only gateway and overload replies are.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// decodeError turns an error body back into a coded error.
func decodeError(status int, data []byte) error {
	var body ErrorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Code == "" {
		return errors.New(errors.ErrCodeInternal, "server answered %d: %s", status, bytes.TrimSpace(data))
	}
	return errors.New(body.Error.Code, "%s", body.Error.Message)
}
