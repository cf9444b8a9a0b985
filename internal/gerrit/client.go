// Package gerrit talks to a Gerrit code review server: a minimal REST
// client and the asynchronous voting driver that turns a run's aggregate
// fault state into an approve/reject vote.
package gerrit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client issues authenticated requests against a Gerrit server.
type Client struct {
	// BaseURL is the server root, without a trailing slash.
	BaseURL string

	// Username and Password authenticate via HTTP basic auth against the
	// /a/ endpoints.
	Username string
	Password string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// ReviewInput is the body of a set-review call.
type ReviewInput struct {
	Message string         `json:"message,omitempty"`
	Labels  map[string]int `json:"labels,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	extra := strings.TrimSpace(e.Body)
	if extra != "" {
		extra = ": " + extra
	}
	return fmt.Sprintf("gerrit: %s: %s%s", e.URL, e.Status, extra)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// post sends body as JSON to path and, when target is non-nil, decodes the
// response after stripping Gerrit's anti-XSSI header line.
func (c *Client) post(path string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(c.BaseURL, "/") + path
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("gerrit: %s: %w", url, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("gerrit: reading response from %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}
	if target != nil {
		// Responses begin with an anti-XSSI line such as )]}' before the
		// JSON payload.
		if i := bytes.IndexByte(respBody, '\n'); i >= 0 {
			respBody = respBody[i:]
		}
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("gerrit: %s: malformed json response", url)
		}
	}
	return nil
}

// SetReview posts a review (message plus label votes) on a revision of a
// change.
func (c *Client) SetReview(changeID, revision string, review ReviewInput) error {
	path := fmt.Sprintf("/a/changes/%s/revisions/%s/review", changeID, revision)
	return c.post(path, review, nil)
}

// Submit asks the server to submit the change.
func (c *Client) Submit(changeID string) error {
	path := fmt.Sprintf("/a/changes/%s/submit", changeID)
	return c.post(path, struct{}{}, nil)
}
