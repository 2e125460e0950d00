package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dimasma0305/opsrelay/internal/log"
)

// Server answers control requests on a Unix socket.
type Server struct {
	socketPath string
	listener   net.Listener
	mu         sync.Mutex
	handler    Handler
}

// NewServer creates a control server. An empty socketPath selects
// DefaultSocketPath.
func NewServer(socketPath string, handler Handler) *Server {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
	}
}

// Init creates the socket and starts listening.
func (s *Server) Init() error {
	// Remove stale socket from a previous run
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Error("Failed to remove existing socket file: %v", err)
	}

	socketDir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(socketDir, 0750); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}

	// Owner only; the socket can stop the daemon
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Info("Control socket listening: %s", s.socketPath)
	return nil
}

// Close stops listening and removes the socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	err := s.listener.Close()
	s.listener = nil

	if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
		log.Error("Failed to remove socket file: %v", removeErr)
	}
	return err
}

// Run accepts connections until the context is cancelled. Closing the
// server unblocks the accept loop.
func (s *Server) Run(ctx context.Context) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if listener == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.DebugH3("Control socket loop stopped")
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					log.Error("Failed to accept control connection: %v", err)
					continue
				}
			}

			go s.handleConnection(conn)
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		response := Response{
			Success: false,
			Error:   fmt.Sprintf("failed to decode request: %v", err),
		}
		_ = encoder.Encode(response)
		return
	}

	response := s.handler.HandleControl(req)

	if err := encoder.Encode(response); err != nil {
		log.Error("Failed to send control response: %v", err)
	}
}
