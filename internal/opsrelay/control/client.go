package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client talks to a running daemon over its control socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a control client. An empty socketPath selects
// DefaultSocketPath.
func NewClient(socketPath string) *Client {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Client{
		socketPath: socketPath,
		timeout:    connTimeout,
	}
}

// SetTimeout sets the connection timeout for the client.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Send sends one action to the daemon and returns its response.
func (c *Client) Send(action string) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to control socket %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	conn.SetDeadline(deadline)

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(Request{Action: action}); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var response Response
	if err := decoder.Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

// Status gets the daemon's runtime state.
func (c *Client) Status() (*Response, error) {
	return c.Send("status")
}

// Reload asks the daemon to reload its configuration now.
func (c *Client) Reload() (*Response, error) {
	return c.Send("reload")
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (*Response, error) {
	return c.Send("stop")
}

// IsRunning reports whether a daemon answers on the socket.
func (c *Client) IsRunning() bool {
	response, err := c.Status()
	return err == nil && response.Success
}
