// Package client talks to a brickhunt server. Client is the persistence
// gateway of a session over the HTTP API, and Channel streams its remote
// changes over a websocket.
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

	"github.com/h0rv/brickhunt/internal/api"
	"github.com/h0rv/brickhunt/internal/domain"
)

// ErrServer indicates an unexpected response from the server.
var ErrServer = errors.New("server error")

// Client is an HTTP client for the brickhunt API.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

// New creates a client for the server at baseURL.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: u,
	}, nil
}

// ParseToken accepts a bare token or a share link and returns the token.
func ParseToken(s string) string {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Scheme != "" {
		s = u.Path
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// ServerFromLink returns the server base URL of a share link, or false when s
// is not a share link.
func ServerFromLink(s string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	i := strings.LastIndex(u.Path, api.SessionsPath+"/")
	if i < 0 {
		return "", false
	}
	u.Path = u.Path[:i]
	u.RawQuery, u.Fragment = "", ""
	return u.String(), true
}

// ShareURL returns the link collaborators use to open token on this server.
func (c *Client) ShareURL(token string) string {
	return c.baseURL.String() + sessionPath(token)
}

// CreateSession asks the server to create a session for setNum.
func (c *Client) CreateSession(ctx context.Context, setNum string) (api.CreateSessionResponse, error) {
	var resp api.CreateSessionResponse
	if err := c.do(ctx, http.MethodPost, api.SessionsPath, api.CreateSessionRequest{SetNum: setNum}, &resp); err != nil {
		return api.CreateSessionResponse{}, fmt.Errorf("failed to create session: %w", err)
	}
	return resp, nil
}

// LoadSession returns the session and its items.
func (c *Client) LoadSession(ctx context.Context, token string) (domain.Session, []domain.LineItem, error) {
	var resp api.SessionResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(token), nil, &resp); err != nil {
		return domain.Session{}, nil, fmt.Errorf("failed to load session: %w", err)
	}
	return resp.Session.Domain(), api.DomainItems(resp.Items), nil
}

// UpdateFound sends a found-quantity delta and returns the stored value.
func (c *Client) UpdateFound(ctx context.Context, token string, itemID int64, delta int) (int, error) {
	var resp domain.Notification
	path := sessionPath(token) + "/items/" + strconv.FormatInt(itemID, 10) + "/found"
	if err := c.do(ctx, http.MethodPost, path, api.UpdateFoundRequest{Delta: delta}, &resp); err != nil {
		return 0, fmt.Errorf("failed to update item %d: %w", itemID, err)
	}
	return resp.QtyFound, nil
}

// ResetAll zeroes every item of the session.
func (c *Client) ResetAll(ctx context.Context, token string) error {
	if err := c.do(ctx, http.MethodPost, sessionPath(token)+"/reset", struct{}{}, nil); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	return nil
}

func sessionPath(token string) string {
	return api.SessionsPath + "/" + url.PathEscape(token)
}

// do sends an API request and decodes the JSON response into resp when it is not nil.
// Error responses are mapped back onto domain errors.
func (c *Client) do(ctx context.Context, method, path string, body, resp interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return decodeError(res)
	}
	if resp == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func decodeError(res *http.Response) error {
	var body api.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch res.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case http.StatusUnprocessableEntity:
		return &domain.ValidationError{Index: -1, Field: "request", Reason: msg}
	case http.StatusBadGateway:
		return &domain.ProviderError{Op: "fetch set", Err: errors.New(msg)}
	default:
		return fmt.Errorf("%w: status %d: %s", ErrServer, res.StatusCode, msg)
	}
}
