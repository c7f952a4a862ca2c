// Package glances fetches JSON snapshots from a local Glances agent.
package glances

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ErrUnknownEndpoint is returned for names outside the allow-list.
var ErrUnknownEndpoint = errors.New("glances: unknown endpoint")

// Endpoints are the only plugin names the server will request upstream.
var Endpoints = map[string]bool{
	"cpu":          true,
	"mem":          true,
	"memswap":      true,
	"load":         true,
	"fs":           true,
	"network":      true,
	"diskio":       true,
	"sensors":      true,
	"uptime":       true,
	"system":       true,
	"quicklook":    true,
	"percpu":       true,
	"processcount": true,
	"processlist":  true,
}

// Allowed reports whether name may be fetched.
func Allowed(name string) bool {
	return Endpoints[name]
}

// Response is an upstream body together with its content type.
type Response struct {
	Body        []byte
	ContentType string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
			},
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch requests one allow-listed endpoint. Failures are returned as-is;
// the client never retries.
func (c *Client) Fetch(ctx context.Context, endpoint string) (*Response, error) {
	if !Allowed(endpoint) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: HTTP %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	return &Response{Body: body, ContentType: contentType}, nil
}

// Processes returns the current process list sorted by CPU, highest first.
func (c *Client) Processes(ctx context.Context) ([]Process, error) {
	resp, err := c.Fetch(ctx, "processlist")
	if err != nil {
		return nil, err
	}

	var procs []*Process
	if err := json.Unmarshal(resp.Body, &procs); err != nil {
		return nil, fmt.Errorf("decode processlist: %w", err)
	}

	result := make([]Process, 0, len(procs))
	for _, p := range procs {
		if p == nil || p.CPUPercent == nil {
			continue
		}
		result = append(result, *p)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CPU() > result[j].CPU()
	})
	return result, nil
}

// Ping checks that the agent answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Fetch(ctx, "system")
	return err
}
