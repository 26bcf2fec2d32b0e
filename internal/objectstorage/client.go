// Package objectstorage is the outbound collaborator client for the
// remote attachments/images service, invoked only as an idempotent
// best-effort delete hook during system removal (spec.md §1, §4.E, §6).
// Modelled on the teacher's internal/linear.Client: functional options,
// bearer auth, context-aware requests, bounded retry on transient status.
package objectstorage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxRetries            = 3
)

// Client talks to the remote object-storage service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (timeouts, transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient builds a Client targeting baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeleteAttachments best-effort deletes every attachment owned by
// entityID. Per §9's open question on ordering, this is always called
// after the local delete transaction has already committed; a failure
// here is surfaced to the caller but never rolls back local state.
func (c *Client) DeleteAttachments(ctx context.Context, entityID ids.ID) error {
	return c.delete(ctx, "/attachments", entityID)
}

// DeleteImages best-effort deletes every image owned by entityID.
func (c *Client) DeleteImages(ctx context.Context, entityID ids.ID) error {
	return c.delete(ctx, "/images", entityID)
}

func (c *Client) delete(ctx context.Context, path string, entityID ids.ID) error {
	u := c.baseURL + path + "?" + url.Values{"entity_id": {entityID.String()}}.Encode()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
		if err != nil {
			return fmt.Errorf("build delete request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return fmt.Errorf("object storage delete: %w", ctx.Err())
			}
			time.Sleep(backoff(attempt))
			continue
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusNoContent, http.StatusOK:
			return nil
		case http.StatusForbidden, http.StatusUnauthorized:
			return kinderr.New(kinderr.KindObjectStorageAuth, "object storage rejected credentials")
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			lastErr = kinderr.New(kinderr.KindObjectStorageServer, fmt.Sprintf("object storage returned %d", resp.StatusCode))
			time.Sleep(backoff(attempt))
			continue
		default:
			return kinderr.New(kinderr.KindObjectStorageServer, fmt.Sprintf("object storage returned %d", resp.StatusCode))
		}
	}
	return lastErr
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 200 * time.Millisecond
}
