// Package control implements the Unix socket protocol between the
// running relay daemon and the CLI.
package control

import "time"

// DefaultSocketPath is where the daemon listens unless overridden.
const DefaultSocketPath = "/tmp/opsrelay.sock"

// connTimeout bounds each control exchange on both ends.
const connTimeout = 5 * time.Second

// Request is a single control command.
type Request struct {
	Action string `json:"action"`
}

// Response is the daemon's reply to a control request.
type Response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Handler processes control requests. The running service implements it.
type Handler interface {
	HandleControl(req Request) Response
}
