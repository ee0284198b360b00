package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// maxRequestBytes bounds a single request line.
const maxRequestBytes = 4 << 20

// StdioServer reads one JSON request per line and writes one JSON response
// per line. Requests run concurrently; responses are written as they finish
// and carry the request id.
type StdioServer struct {
	handler Handler
	in      io.Reader
	out     io.Writer
	mu      sync.Mutex // Guards out
	logger  *zap.Logger
}

// NewStdioServer creates a server reading from in and writing to out.
func NewStdioServer(handler Handler, in io.Reader, out io.Writer, logger *zap.Logger) *StdioServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StdioServer{handler: handler, in: in, out: out, logger: logger}
}

// Serve processes requests until the input ends or ctx is cancelled, then
// waits for in-flight requests to finish. On cancellation the reader goroutine
// stays blocked on in until the caller closes it or the process exits.
func (s *StdioServer) Serve(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	s.logger.Info("stdio bridge started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stdio bridge stopping", zap.Error(ctx.Err()))
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("failed to read requests: %w", err)
				}
				s.logger.Info("stdio bridge input closed")
				return nil
			}
			s.accept(ctx, line, &inflight)
		}
	}
}

func (s *StdioServer) accept(ctx context.Context, line []byte, inflight *sync.WaitGroup) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var req domain.CommandRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("malformed request line", zap.Error(err))
		s.write(malformedRequest("", err))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		s.write(s.handler.Handle(ctx, req))
	}()
}

func (s *StdioServer) write(resp domain.CommandResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode response", zap.String("id", resp.ID), zap.Error(err))
		data, _ = json.Marshal(domain.CommandResponse{
			ID:    resp.ID,
			Error: &domain.ResponseError{Kind: domain.KindInternal, Message: "failed to encode response"},
		})
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		s.logger.Error("failed to write response", zap.String("id", resp.ID), zap.Error(err))
	}
}
