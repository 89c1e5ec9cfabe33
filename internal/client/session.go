// Package client drives a tool server as a child process: it owns the
// process lifecycle, the handshake, and request/response pairing over
// the line protocol.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"deploypilot/internal/protocol"
	"deploypilot/internal/tools"
)

// ErrNoResponse is returned when the server closes or stays silent
// past the call deadline.
var ErrNoResponse = errors.New("no response from server")

// ErrBadResponse is returned when the server's line is not a valid
// response object.
var ErrBadResponse = errors.New("malformed response from server")

const (
	// DefaultHandshakeTimeout bounds the initial exchange.
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultCallTimeout bounds a single tool call. Tool work can
	// involve cloning and package installs, so this is generous.
	DefaultCallTimeout = 120 * time.Second
	// cleanupGrace bounds the wait for the child after stdin closes.
	cleanupGrace = 5 * time.Second
)

// Session is one connection to a running tool server. The protocol is
// strictly request/response in order, so a single pending call at a
// time is the contract.
type Session struct {
	stdin    io.WriteCloser
	lines    <-chan string
	cmd      *exec.Cmd
	done     chan struct{}
	logger   *zap.Logger
	desynced bool

	HandshakeTimeout time.Duration
	CallTimeout      time.Duration

	tools []tools.Summary
}

// NewSession builds a session over explicit streams. Used directly in
// tests; Start wires it to a child process.
func NewSession(stdin io.WriteCloser, stdout io.Reader, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return &Session{
		stdin:            stdin,
		lines:            lines,
		logger:           logger,
		HandshakeTimeout: DefaultHandshakeTimeout,
		CallTimeout:      DefaultCallTimeout,
	}
}

// Start launches the server process given as an argv vector and
// returns a connected session. The child's stderr is forwarded to the
// logger so server-side logging stays visible.
func Start(ctx context.Context, argv []string, logger *zap.Logger) (*Session, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty server command")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting server %s: %w", argv[0], err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug("server stderr", zap.String("line", scanner.Text()))
		}
	}()

	sess := NewSession(stdin, stdout, logger)
	sess.cmd = cmd
	sess.done = make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(sess.done)
	}()
	return sess, nil
}

// Tools returns the descriptors advertised during the handshake.
func (s *Session) Tools() []tools.Summary {
	return s.tools
}

// Handshake performs the initialize exchange and the initial tool
// listing. It must run before Call.
func (s *Session) Handshake() error {
	resp, err := s.roundTrip(protocol.Request{Type: protocol.TypeInitialize}, s.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if resp.Type != protocol.TypeInitializeResult {
		return fmt.Errorf("initialize: unexpected response type %q: %s", resp.Type, resp.Message)
	}
	if !supportsVersion(resp.SupportedVersions, protocol.ProtocolVersion) {
		return fmt.Errorf("initialize: server supports %v, need %s", resp.SupportedVersions, protocol.ProtocolVersion)
	}

	listed, err := s.roundTrip(protocol.Request{Type: protocol.TypeListTools}, s.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("list_tools: %w", err)
	}
	if listed.Type != protocol.TypeListToolsResult {
		return fmt.Errorf("list_tools: unexpected response type %q: %s", listed.Type, listed.Message)
	}
	s.tools = listed.Tools
	s.logger.Info("handshake complete", zap.Int("tools", len(s.tools)))
	return nil
}

// Call executes one tool and returns its textual content. A server
// error response becomes a Go error carrying the server's message.
func (s *Session) Call(name string, args map[string]any) (string, error) {
	resp, err := s.roundTrip(protocol.Request{
		Type:      protocol.TypeExecuteTool,
		Name:      name,
		Arguments: args,
	}, s.CallTimeout)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", name, err)
	}
	switch resp.Type {
	case protocol.TypeExecuteToolResult:
		return resp.Content, nil
	case protocol.TypeError:
		return "", fmt.Errorf("server error calling %s: %s", name, resp.Message)
	default:
		return "", fmt.Errorf("calling %s: unexpected response type %q", name, resp.Type)
	}
}

func (s *Session) roundTrip(req protocol.Request, timeout time.Duration) (protocol.Response, error) {
	// After a timeout the answer to the abandoned request is still in
	// flight; reading the next line would pair it with the wrong
	// request. The session is unusable from that point on.
	if s.desynced {
		return protocol.Response{}, fmt.Errorf("%w: session desynchronized by an earlier timeout", ErrNoResponse)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("encoding request: %w", err)
	}
	if _, err := s.stdin.Write(append(data, '\n')); err != nil {
		return protocol.Response{}, fmt.Errorf("writing request: %w", err)
	}

	select {
	case line, ok := <-s.lines:
		if !ok {
			return protocol.Response{}, ErrNoResponse
		}
		var resp protocol.Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return protocol.Response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		return resp, nil
	case <-time.After(timeout):
		s.desynced = true
		return protocol.Response{}, fmt.Errorf("%w: timed out after %s", ErrNoResponse, timeout)
	}
}

// Cleanup closes the server's input so it shuts down on its own, then
// escalates to a kill if the process outlives the grace period.
func (s *Session) Cleanup() {
	_ = s.stdin.Close()
	if s.cmd == nil {
		return
	}
	select {
	case <-s.done:
	case <-time.After(cleanupGrace):
		s.logger.Warn("server did not exit, killing")
		_ = s.cmd.Process.Kill()
		<-s.done
	}
}

func supportsVersion(versions []string, want string) bool {
	for _, v := range versions {
		if v == want {
			return true
		}
	}
	return false
}
