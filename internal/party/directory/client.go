// Package directory implements the external person directory collaborator:
// an HTTP client plus a cache decorator that keeps hot lookups off the wire.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	domainerrors "gridconsent/pkg/domain-errors"
)

const defaultTimeout = 5 * time.Second

// Client talks to the person directory over HTTP. Calls carry a bounded
// timeout; network failures surface as dependency errors, never as
// validation failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each directory call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient constructs a person directory client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type findOrCreateRequest struct {
	NIN string `json:"nin"`
}

type findOrCreateResponse struct {
	InternalID string `json:"internalId"`
}

// FindOrCreateByNIN exchanges a national identity number for the canonical
// internal person identifier, creating the person on first sight.
func (c *Client) FindOrCreateByNIN(ctx context.Context, nin string) (string, error) {
	body, err := json.Marshal(findOrCreateRequest{NIN: nin})
	if err != nil {
		return "", fmt.Errorf("marshal person lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/persons", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build person lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domainerrors.Wrap(err, domainerrors.CodeTimeout, "person directory call timed out")
		}
		return "", domainerrors.Wrap(err, domainerrors.CodeDependency, "person directory unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out findOrCreateResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
			return "", domainerrors.Wrap(err, domainerrors.CodeDependency, "person directory returned an unreadable body")
		}
		if out.InternalID == "" {
			return "", domainerrors.New(domainerrors.CodeDependency, "person directory returned an empty internal id")
		}
		return out.InternalID, nil

	case resp.StatusCode == http.StatusBadRequest:
		return "", domainerrors.New(domainerrors.CodeValidation, "person directory rejected the national identity number")

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", domainerrors.New(domainerrors.CodeDependency, "person directory rejected the request")

	default:
		return "", domainerrors.Newf(domainerrors.CodeDependency, "person directory returned status %d", resp.StatusCode)
	}
}
