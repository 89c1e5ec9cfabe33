package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"deploypilot/internal/tools"
)

// maxLineBytes bounds one request line. Arguments can carry whole file
// contents, so the default scanner limit is far too small.
const maxLineBytes = 10 * 1024 * 1024

// Server reads requests line by line and answers each one before
// reading the next. The response order therefore always matches the
// request order.
type Server struct {
	registry *tools.Registry
	logger   *zap.Logger
	in       io.Reader
	out      io.Writer
}

// NewServer wires a dispatch loop over the given streams.
func NewServer(registry *tools.Registry, logger *zap.Logger, in io.Reader, out io.Writer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{registry: registry, logger: logger, in: in, out: out}
}

// Serve runs until the input stream closes or ctx is cancelled. Input
// closure is the normal shutdown path and returns nil.
func (s *Server) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	writer := bufio.NewWriter(s.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.logger.Warn("malformed request line", zap.Error(err))
			if err := s.write(writer, errorResponse(fmt.Sprintf("invalid request: %v", err))); err != nil {
				return err
			}
			continue
		}

		resp := s.dispatch(ctx, req)
		if err := s.write(writer, resp); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	s.logger.Info("input closed, shutting down")
	return nil
}

// dispatch answers one request. A panicking tool is converted into an
// error response so one bad handler cannot take the whole channel down.
func (s *Server) dispatch(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool panicked", zap.String("tool", req.Name), zap.Any("panic", r))
			resp = errorResponse(fmt.Sprintf("internal error executing tool %s", req.Name))
		}
	}()

	switch req.Type {
	case TypeInitialize:
		return Response{
			Type:              TypeInitializeResult,
			SupportedVersions: []string{ProtocolVersion},
			Tools:             s.registry.Describe(),
		}
	case TypeListTools:
		return Response{
			Type:  TypeListToolsResult,
			Tools: s.registry.Describe(),
		}
	case TypeExecuteTool:
		tool, ok := s.registry.Resolve(req.Name)
		if !ok {
			return errorResponse(fmt.Sprintf("unknown tool: %s", req.Name))
		}
		s.logger.Info("executing tool", zap.String("tool", req.Name))
		result, err := tool.Execute(ctx, req.Arguments)
		if err != nil {
			return errorResponse(fmt.Sprintf("executing tool %s: %v", req.Name, err))
		}
		return Response{Type: TypeExecuteToolResult, Content: result.Content}
	default:
		return errorResponse(fmt.Sprintf("unknown request type: %s", req.Type))
	}
}

func (s *Server) write(w *bufio.Writer, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return w.Flush()
}

func errorResponse(message string) Response {
	return Response{Type: TypeError, Message: message}
}
