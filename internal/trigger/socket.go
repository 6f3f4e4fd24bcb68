package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Control commands understood by the socket.
const (
	CmdTrigger = "trigger"
	CmdQuit    = "quit"
)

// ControlMessage is one request on the control socket.
type ControlMessage struct {
	Cmd string `json:"cmd"`
}

// ControlReply answers a ControlMessage.
type ControlReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// DefaultSocketPath returns the control socket location for this user.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "aayu.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("aayu-%d.sock", os.Getuid()))
}

// Socket is a Trigger fed by a unix domain socket. Triggers are only
// accepted while Wait is blocked; the client is told "busy" otherwise.
type Socket struct {
	path    string
	ln      net.Listener
	waiting atomic.Bool
	pending chan struct{}
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

// ListenSocket replaces any stale socket at path and starts serving.
func ListenSocket(path string, logger *slog.Logger) (*Socket, error) {
	if logger == nil {
		logger = slog.Default()
	}
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	s := &Socket{
		path:    path,
		ln:      ln,
		pending: make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go s.serve()
	return s, nil
}

func (s *Socket) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warn("⚠️  Control socket accept failed", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Socket) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}

	reply := ControlReply{OK: true}
	switch msg.Cmd {
	case CmdTrigger:
		reply = ControlReply{Error: "busy"}
		if s.waiting.Load() {
			select {
			case s.pending <- struct{}{}:
				reply = ControlReply{OK: true}
			default:
			}
		}
	case CmdQuit:
		s.once.Do(func() { close(s.quit) })
	default:
		reply = ControlReply{Error: fmt.Sprintf("unknown command %q", msg.Cmd)}
	}
	s.logger.Debug("Control message", "cmd", msg.Cmd, "ok", reply.OK)
	_ = json.NewEncoder(conn).Encode(reply)
}

// Wait blocks until a trigger command arrives.
// A trigger accepted while the previous Wait was returning is dropped.
func (s *Socket) Wait(ctx context.Context) error {
	select {
	case <-s.pending:
		s.logger.Debug("Dropped stale trigger")
	default:
	}

	s.waiting.Store(true)
	defer s.waiting.Store(false)

	select {
	case <-s.pending:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Quit is closed when a client asks the daemon to exit.
func (s *Socket) Quit() <-chan struct{} {
	return s.quit
}

// Close stops serving and removes the socket file.
func (s *Socket) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	err := s.ln.Close()
	_ = os.Remove(s.path)
	return err
}

// SendCommand sends cmd to the daemon listening on path.
func SendCommand(ctx context.Context, path, cmd string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	var reply ControlReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !reply.OK {
		return errors.New(reply.Error)
	}
	return nil
}
