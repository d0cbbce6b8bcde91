// Package client is a thin HTTP JSON client over the registry API,
// used by the CLI.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeops-dev/registry/pkg/topology"
	"github.com/codeops-dev/registry/pkg/types"
)

const basePath = "/api/v1/registry"

// Client talks to one registry server with one bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for the server at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// apiError mirrors the server's error envelope.
type apiError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("registry: %s (status %d)", e.Message, e.Status)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var parsed apiError
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
			apiErr.Message = parsed.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Healthz answers whether the server process is up.
func (c *Client) Healthz(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

// servicePage is the paged list envelope for services.
type servicePage struct {
	Content       []*types.Service `json:"content"`
	TotalElements int              `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	IsLast        bool             `json:"isLast"`
}

// ListServices fetches every service of the team, following pages.
func (c *Client) ListServices(ctx context.Context, teamID string) ([]*types.Service, error) {
	var all []*types.Service
	for pageNum := 0; ; pageNum++ {
		query := url.Values{}
		query.Set("page", fmt.Sprintf("%d", pageNum))
		query.Set("size", "200")

		var pg servicePage
		err := c.get(ctx, fmt.Sprintf("%s/teams/%s/services", basePath, teamID), query, &pg)
		if err != nil {
			return nil, err
		}
		all = append(all, pg.Content...)
		if pg.IsLast {
			return all, nil
		}
	}
}

// TeamStats fetches the team's topology statistics.
func (c *Client) TeamStats(ctx context.Context, teamID string) (*topology.Stats, error) {
	var stats topology.Stats
	err := c.get(ctx, fmt.Sprintf("%s/teams/%s/topology/stats", basePath, teamID), nil, &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// StartupOrder fetches the team's dependency-ordered service list.
func (c *Client) StartupOrder(ctx context.Context, teamID string) ([]*types.Service, error) {
	var order []*types.Service
	err := c.get(ctx, fmt.Sprintf("%s/teams/%s/dependencies/startup-order", basePath, teamID), nil, &order)
	if err != nil {
		return nil, err
	}
	return order, nil
}
