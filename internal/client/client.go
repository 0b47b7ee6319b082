// Package client implements the HTTP client the CLI uses to talk to a hub.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ainternet/ainthub/internal/types"
)

// Client talks to a hub's API server. AgentKey may be empty for public
// reads.
type Client struct {
	BaseURL  string
	AgentKey string
}

// NewClient creates a client for the hub at baseURL.
func NewClient(baseURL, agentKey string) *Client {
	return &Client{BaseURL: baseURL, AgentKey: agentKey}
}

// Register registers a new domain and returns the one-time agent key in the
// response.
func (c *Client) Register(req types.RegisterRequest) (*types.RegisterResponse, error) {
	var resp types.RegisterResponse
	if err := c.post("/api/ains/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resolve looks up a domain.
func (c *Client) Resolve(domain string) (*types.ResolveResponse, error) {
	var resp types.ResolveResponse
	if err := c.get("/api/ains/resolve/"+url.PathEscape(domain), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns all active domains.
func (c *Client) List() (*types.ListResponse, error) {
	var resp types.ListResponse
	if err := c.get("/api/ains/list", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search returns active domains filtered by capability and minimum trust.
func (c *Client) Search(capability string, minTrust float64) (*types.ListResponse, error) {
	q := url.Values{}
	if capability != "" {
		q.Set("capability", capability)
	}
	if minTrust > 0 {
		q.Set("min_trust", strconv.FormatFloat(minTrust, 'f', -1, 64))
	}
	var resp types.ListResponse
	if err := c.get("/api/ains/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Push sends a message to another agent.
func (c *Client) Push(req types.PushRequest) (*types.PushResponse, error) {
	var resp types.PushResponse
	if err := c.post("/api/ipoll/push", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pull drains the caller's inbox.
func (c *Client) Pull(agent string, markRead bool) (*types.PullResponse, error) {
	path := "/api/ipoll/pull/" + url.PathEscape(agent) + "?mark_read=" + strconv.FormatBool(markRead)
	var resp types.PullResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Respond acknowledges a received message.
func (c *Client) Respond(pollID, response string) (*types.RespondResponse, error) {
	var resp types.RespondResponse
	if err := c.post("/api/ipoll/respond", types.RespondRequest{PollID: pollID, Response: response}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns hub-wide counters.
func (c *Client) Status() (*types.StatusResponse, error) {
	var resp types.StatusResponse
	if err := c.get("/api/ipoll/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(path string, out any) error {
	req, err := http.NewRequest("GET", c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", c.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.AgentKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.AgentKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var errResp types.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("%s: %s", errResp.Error, errResp.Message)
}
