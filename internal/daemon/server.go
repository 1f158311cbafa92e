package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/usecase"
)

// maxLineBytes bounds one request line; anything larger is malformed.
const maxLineBytes = 1 << 20

// Server exposes the engine's message contract over a unix domain
// socket: one JSON request per line, one JSON response per line.
type Server struct {
	socketPath string
	engine     *usecase.Engine
	logger     *zap.Logger
	listener   net.Listener
}

// NewServer creates a message server for the given socket path.
func NewServer(socketPath string, engine *usecase.Engine, logger *zap.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		engine:     engine,
		logger:     logger,
	}
}

// Listen binds the socket, removing a stale one left by a previous run.
func (s *Server) Listen() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Serve accepts connections until the context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		go s.handleConn(conn)
	}
}

// Close shuts the listener and removes the socket file.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req usecase.Request
		resp := usecase.Response{}
		if err := json.Unmarshal(line, &req); err != nil {
			resp = usecase.Response{
				OK:        false,
				Error:     "malformed message",
				ErrorKind: usecase.ErrKindValidation,
			}
		} else {
			resp = s.engine.Dispatch(req)
		}

		out, err := json.Marshal(resp)
		if err != nil {
			s.logger.Warn("failed to encode response", zap.Error(err))
			return
		}
		out = append(out, '\n')
		if _, err := writer.Write(out); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
}

// Client is the CLI side of the socket contract.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the daemon's socket.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 5 * time.Second}
}

// Call sends one request and waits for its response.
func (c *Client) Call(req usecase.Request) (usecase.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return usecase.Response{}, errors.New("daemon not running (run 'sitemon start')")
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return usecase.Response{}, err
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return usecase.Response{}, err
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return usecase.Response{}, err
		}
		return usecase.Response{}, errors.New("connection closed by daemon")
	}

	var resp usecase.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return usecase.Response{}, err
	}
	return resp, nil
}
