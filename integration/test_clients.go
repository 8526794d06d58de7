package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const mcpProtocolVersion = "2025-03-26"

var requestID atomic.Int64

func newRPCRequest(method string, params any) map[string]any {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      requestID.Add(1),
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	return req
}

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "integration-test",
			"version": "1.0.0",
		},
	}
}

// MCPStreamableClient speaks MCP over the streamable HTTP transport
type MCPStreamableClient struct {
	endpoint  string
	token     string
	sessionID string
	client    *http.Client
}

// NewMCPStreamableClient creates a client for the /mcp endpoint
func NewMCPStreamableClient(baseURL, token string) *MCPStreamableClient {
	return &MCPStreamableClient{
		endpoint: baseURL + "/mcp",
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Initialize runs the MCP handshake and remembers the session id
func (c *MCPStreamableClient) Initialize() (map[string]any, error) {
	result, err := c.SendMCPRequest("initialize", initializeParams())
	if err != nil {
		return nil, err
	}
	if err := c.notify("notifications/initialized"); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *MCPStreamableClient) post(body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.sessionID != "" {
		req.Header.Set("Mcp-Session-Id", c.sessionID)
	}
	return c.client.Do(req)
}

func (c *MCPStreamableClient) notify(method string) error {
	resp, err := c.post(map[string]any{"jsonrpc": "2.0", "method": method})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// SendMCPRequest sends a JSON-RPC request and returns the decoded response
func (c *MCPStreamableClient) SendMCPRequest(method string, params any) (map[string]any, error) {
	resp, err := c.post(newRPCRequest(method, params))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request returned %d: %s", resp.StatusCode, body)
	}
	if id := resp.Header.Get("Mcp-Session-Id"); id != "" {
		c.sessionID = id
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(resp.Body)
	}
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return result, nil
}

// readSSEResponse returns the first data payload that is a JSON-RPC response
func readSSEResponse(body io.Reader) (map[string]any, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		if _, hasID := msg["id"]; hasID {
			return msg, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("stream ended without a response")
}

// MCPSSEClient speaks MCP over the SSE transport
type MCPSSEClient struct {
	baseURL         string
	token           string
	messageEndpoint string
	conn            io.ReadCloser
	events          chan string
}

// NewMCPSSEClient creates a client for the /sse endpoint
func NewMCPSSEClient(baseURL, token string) *MCPSSEClient {
	return &MCPSSEClient{baseURL: baseURL, token: token}
}

// Connect opens the event stream and waits for the message endpoint
func (c *MCPSSEClient) Connect() error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/sse", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.token)

	// No timeout, the stream stays open
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("SSE connection failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return fmt.Errorf("SSE connection returned %d: %s", resp.StatusCode, body)
	}

	c.conn = resp.Body
	c.events = make(chan string, 16)
	go func() {
		defer close(c.events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				tracef("SSE data: %s", data)
				c.events <- data
			}
		}
	}()

	select {
	case endpoint, ok := <-c.events:
		if !ok {
			return fmt.Errorf("stream closed before the endpoint event")
		}
		c.messageEndpoint = endpoint
		return nil
	case <-time.After(5 * time.Second):
		c.Close()
		return fmt.Errorf("no message endpoint received")
	}
}

// MessageEndpoint is the URL announced by the server
func (c *MCPSSEClient) MessageEndpoint() string {
	return c.messageEndpoint
}

// Initialize runs the MCP handshake
func (c *MCPSSEClient) Initialize() (map[string]any, error) {
	result, err := c.SendMCPRequest("initialize", initializeParams())
	if err != nil {
		return nil, err
	}
	if err := c.postMessage(map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"}); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *MCPSSEClient) postMessage(body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.messageEndpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("message endpoint returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// SendMCPRequest posts a request and waits for its response on the stream
func (c *MCPSSEClient) SendMCPRequest(method string, params any) (map[string]any, error) {
	req := newRPCRequest(method, params)
	if err := c.postMessage(req); err != nil {
		return nil, err
	}

	timeout := time.After(10 * time.Second)
	for {
		select {
		case data, ok := <-c.events:
			if !ok {
				return nil, fmt.Errorf("stream closed while waiting for %s", method)
			}
			var msg map[string]any
			if err := json.Unmarshal([]byte(data), &msg); err != nil {
				continue
			}
			// JSON numbers decode as float64
			if id, ok := msg["id"].(float64); ok && int64(id) == req["id"].(int64) {
				return msg, nil
			}
		case <-timeout:
			return nil, fmt.Errorf("timed out waiting for %s", method)
		}
	}
}

// Close closes the event stream
func (c *MCPSSEClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
