// Package client talks to a bookmarkd server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/bookmarkd/internal/outline"
	"github.com/dgallion1/bookmarkd/internal/session"
)

// ErrNotFound is returned when the server has no such document.
var ErrNotFound = errors.New("document not found")

// Client communicates with the bookmarkd HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// OutlineRequest is the body for PUT /api/documents/{docID}/outline.
type OutlineRequest struct {
	*outline.Outline
	Annotations []outline.Placement `json:"annotations,omitempty"`
}

// PutOutline loads a document on the server from an outline.
func (c *Client) PutOutline(ctx context.Context, docID string, req OutlineRequest) (*session.Summary, error) {
	var summary session.Summary
	if err := c.do(ctx, http.MethodPut, docPath(docID)+"/outline", req, &summary); err != nil {
		return nil, fmt.Errorf("put outline %s: %w", docID, err)
	}
	return &summary, nil
}

// Document returns the summary of a loaded document.
func (c *Client) Document(ctx context.Context, docID string) (*session.Summary, error) {
	var summary session.Summary
	if err := c.do(ctx, http.MethodGet, docPath(docID), nil, &summary); err != nil {
		return nil, fmt.Errorf("get document %s: %w", docID, err)
	}
	return &summary, nil
}

// Resolve finds the parent bookmark of a single position.
func (c *Client) Resolve(ctx context.Context, docID string, page int, y float64) (*session.Resolution, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("y", strconv.FormatFloat(y, 'g', -1, 64))

	var res session.Resolution
	if err := c.do(ctx, http.MethodGet, docPath(docID)+"/resolve?"+q.Encode(), nil, &res); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", docID, err)
	}
	return &res, nil
}

// AnnotationsChanged posts a batch of annotation events and returns their
// resolutions in order.
func (c *Client) AnnotationsChanged(ctx context.Context, docID string, events []outline.Placement) ([]session.Resolution, error) {
	var result struct {
		Resolutions []session.Resolution `json:"resolutions"`
	}
	body := map[string]any{"events": events}
	if err := c.do(ctx, http.MethodPost, docPath(docID)+"/annotations", body, &result); err != nil {
		return nil, fmt.Errorf("annotations %s: %w", docID, err)
	}
	return result.Resolutions, nil
}

// DeleteDocument tears the document down on the server.
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	if err := c.do(ctx, http.MethodDelete, docPath(docID), nil, nil); err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, apiError(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError extracts the message from a {"error": ...} body.
func apiError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

func docPath(docID string) string {
	return "/api/documents/" + url.PathEscape(docID)
}
