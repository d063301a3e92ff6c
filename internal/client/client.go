// Package client provides an HTTP client for the nfc-timecontrol API.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evcraddock/nfc-timecontrol/internal/location"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// Client is an HTTP client for the nfc-timecontrol API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// VisitEntry is a visit with its duration in minutes.
type VisitEntry struct {
	visit.Visit
	Minutes int64 `json:"minutes"`
}

// OpenEntry is the open/closed state of one place.
type OpenEntry struct {
	Place   string     `json:"place"`
	Open    bool       `json:"open"`
	CheckIn *time.Time `json:"check_in,omitempty"`
	Minutes int64      `json:"minutes"`
	Visits  int64      `json:"visits,omitempty"`
}

// Status is the response from GET /api/status.
type Status struct {
	Empty bool         `json:"empty"`
	Open  []*OpenEntry `json:"open"`
}

// ScanRequest is the body of POST /api/scan. Set either Tag or Place.
type ScanRequest struct {
	Tag   []byte          `json:"-"`
	Place string          `json:"place,omitempty"`
	Fixes []*location.Fix `json:"fixes,omitempty"`
}

// ScanResponse is the response from POST /api/scan.
type ScanResponse struct {
	Ignored  bool          `json:"ignored"`
	Reason   string        `json:"reason,omitempty"`
	Action   visit.Action  `json:"action,omitempty"`
	Label    string        `json:"label,omitempty"`
	Visit    *visit.Visit  `json:"visit,omitempty"`
	Location *location.Fix `json:"location,omitempty"`
}

// Places returns a summary of every place.
func (c *Client) Places(ctx context.Context) ([]*visit.Summary, error) {
	var sums []*visit.Summary
	if err := c.get(ctx, "/api/places", &sums); err != nil {
		return nil, err
	}
	return sums, nil
}

// Visits returns the visits of a place, newest first.
func (c *Client) Visits(ctx context.Context, place string) ([]*VisitEntry, error) {
	var visits []*VisitEntry
	if err := c.get(ctx, placePath(place, "/visits"), &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

// Open reports whether a place has an open visit.
func (c *Client) Open(ctx context.Context, place string) (*OpenEntry, error) {
	var open OpenEntry
	if err := c.get(ctx, placePath(place, "/open"), &open); err != nil {
		return nil, err
	}
	return &open, nil
}

// DeletePlace removes a place and returns how many visits were removed.
func (c *Client) DeletePlace(ctx context.Context, place string) (int64, error) {
	var resp struct {
		Removed int64 `json:"removed"`
	}
	if err := c.send(ctx, http.MethodDelete, placePath(place, ""), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Status lists the places with an open visit.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.get(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Scan sends a tag read or a manual check toggle.
func (c *Client) Scan(ctx context.Context, req ScanRequest) (*ScanResponse, error) {
	body := struct {
		Tag string `json:"tag,omitempty"`
		ScanRequest
	}{ScanRequest: req}
	if len(req.Tag) > 0 {
		body.Tag = base64.StdEncoding.EncodeToString(req.Tag)
	}

	var resp ScanResponse
	if err := c.send(ctx, http.MethodPost, "/api/scan", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func placePath(place, suffix string) string {
	return "/api/places/" + url.PathEscape(place) + suffix
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.send(ctx, http.MethodGet, path, nil, result)
}

// send performs a request with an optional JSON body and decodes the response.
func (c *Client) send(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		return fmt.Errorf("server error: %s", msg)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
