// Package client queries the coordinator status API over HTTP.
package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"yqhp/matmul-engine/api/rest"
)

// Config holds the configuration for the status client.
type Config struct {
	// BaseURL is the coordinator HTTP address (e.g., "http://localhost:8080").
	BaseURL string

	// Timeout bounds each request.
	Timeout time.Duration
}

// DefaultConfig returns a default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8080",
		Timeout: 5 * time.Second,
	}
}

// Client is a status API client.
type Client struct {
	config *Config
	http   *fasthttp.Client
}

// NewClient creates a status client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		config: config,
		http: &fasthttp.Client{
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
		},
	}
}

// Health returns the health response.
func (c *Client) Health() (*rest.HealthResponse, error) {
	var out rest.HealthResponse
	if err := c.get("/api/v1/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Members returns the joined members.
func (c *Client) Members() (*rest.MemberListResponse, error) {
	var out rest.MemberListResponse
	if err := c.get("/api/v1/cluster/members", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Size returns the number of joined members.
func (c *Client) Size() (int, error) {
	var out rest.SizeResponse
	if err := c.get("/api/v1/cluster/size", &out); err != nil {
		return 0, err
	}
	return out.Size, nil
}

// Stats returns the executor latency statistics.
func (c *Client) Stats() (*rest.StatsResponse, error) {
	var out rest.StatsResponse
	if err := c.get("/api/v1/executor/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(path string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(c.config.BaseURL, "/") + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := c.http.DoTimeout(req, resp, c.config.Timeout); err != nil {
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		var errResp rest.ErrorResponse
		if err := sonic.Unmarshal(resp.Body(), &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("%s 返回 %d: %s", path, resp.StatusCode(), errResp.Message)
		}
		return fmt.Errorf("%s 返回 %d", path, resp.StatusCode())
	}

	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", path, err)
	}
	return nil
}
