package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Health() (map[string]interface{}, error) {
	return c.get("/api/health")
}

func (c *Client) Status() (map[string]interface{}, error) {
	return c.get("/api/openclaw")
}

func (c *Client) Tokens24h() (map[string]interface{}, error) {
	return c.get("/api/openclaw/history")
}

func (c *Client) Tokens() (map[string]interface{}, error) {
	return c.get("/api/tokens")
}

func (c *Client) History(rng string) (map[string]interface{}, error) {
	path := "/api/history"
	if rng != "" {
		path += "?range=" + url.QueryEscape(rng)
	}
	return c.get(path)
}

func (c *Client) Processes() (map[string]interface{}, error) {
	return c.get("/api/processes")
}

func (c *Client) Cron() (map[string]interface{}, error) {
	return c.get("/api/cron")
}

func (c *Client) Connections() (map[string]interface{}, error) {
	return c.get("/api/connections")
}

func (c *Client) Quote() (map[string]interface{}, error) {
	return c.get("/api/quote")
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	url := c.baseURL + path

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result, nil
}
