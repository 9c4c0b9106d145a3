package supabase

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
)

// Client represents a Supabase client
type Client struct {
	URL        string
	ServiceKey string
	HTTPClient *http.Client
}

// NewClient creates a new Supabase client
func NewClient(url, serviceKey string) *Client {
	return &Client{
		URL:        strings.TrimRight(url, "/"),
		ServiceKey: serviceKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is returned for any response with a status of 400 or above
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase error (status %d): %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a Supabase error with the given status
func IsStatus(err error, status int) bool {
	var se *Error
	return errors.As(err, &se) && se.StatusCode == status
}

// Query selects rows from a table. Filters use PostgREST syntax,
// e.g. "user_id": {"eq.abc"}, "order": {"occurred_at.asc"}.
func (c *Client) Query(ctx context.Context, table string, query url.Values) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.restURL(table, query), nil, nil)
	return body, err
}

// Count returns the exact number of rows matching the filters
func (c *Client) Count(ctx context.Context, table string, query url.Values) (int, error) {
	q := cloneValues(query)
	q.Set("select", "id")
	q.Set("limit", "1")

	_, header, err := c.do(ctx, http.MethodHead, c.restURL(table, q), nil, map[string]string{
		"Prefer": "count=exact",
	})
	if err != nil {
		return 0, err
	}

	return parseContentRangeTotal(header.Get("Content-Range"))
}

// Upsert inserts or updates records in a table.
// onConflict specifies the columns to detect conflicts (e.g., "user_id,item_name")
func (c *Client) Upsert(ctx context.Context, table string, data any, onConflict string) ([]byte, error) {
	q := url.Values{}
	q.Set("on_conflict", onConflict)

	body, _, err := c.do(ctx, http.MethodPost, c.restURL(table, q), data, map[string]string{
		// resolution=merge-duplicates will update existing rows
		"Prefer": "return=representation,resolution=merge-duplicates",
	})
	return body, err
}

// DeleteWhere deletes records matching a query
func (c *Client) DeleteWhere(ctx context.Context, table string, query url.Values) error {
	if len(query) == 0 {
		return fmt.Errorf("refusing to delete from %s without a filter", table)
	}
	_, _, err := c.do(ctx, http.MethodDelete, c.restURL(table, query), nil, nil)
	return err
}

// VerifyToken verifies a JWT token with Supabase
func (c *Client) VerifyToken(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.ServiceKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	body, _, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}

	return &user, nil
}

// User represents a Supabase user
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *Client) restURL(table string, query url.Values) string {
	u := fmt.Sprintf("%s/rest/v1/%s", c.URL, table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do runs a request authenticated with the service key
func (c *Client) do(ctx context.Context, method, url string, data any, headers map[string]string) ([]byte, http.Header, error) {
	var reader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("apikey", c.ServiceKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.ServiceKey))
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, resp.Header, nil
}

// parseContentRangeTotal reads the total from a header like "0-0/42" or "*/0"
func parseContentRangeTotal(h string) (int, error) {
	i := strings.LastIndexByte(h, '/')
	if i < 0 || i == len(h)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", h)
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return 0, fmt.Errorf("invalid count in Content-Range %q: %w", h, err)
	}
	return n, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
