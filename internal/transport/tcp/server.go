// Package tcp serves questions over a raw TCP socket, one request per connection.
package tcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/metrics"
	"github.com/kailas-cloud/ragd/internal/usecase/chat"
	"github.com/kailas-cloud/ragd/internal/usecase/pipeline"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (chat.Answer, error)
	Ready() bool
}

// StatusReporter exposes the processing pipeline state.
type StatusReporter interface {
	Status() pipeline.Status
}

// Config holds server limits.
type Config struct {
	Addr           string
	BufferSize     int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
}

const drainTimeout = 100 * time.Millisecond

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("tcp: server closed")

// Server is the question server.
type Server struct {
	cfg    Config
	asker  Asker
	status StatusReporter
	logger *zap.Logger
	sem    *semaphore.Weighted

	closing  atomic.Bool
	mu       sync.Mutex
	ln       net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	baseCtx  context.Context
	cancelFn context.CancelFunc
}

// NewServer creates a Server. status may be nil.
func NewServer(cfg Config, asker Asker, status StatusReporter, logger *zap.Logger) *Server {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16384
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		asker:    asker,
		status:   status,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
		conns:    make(map[net.Conn]struct{}),
		baseCtx:  ctx,
		cancelFn: cancel,
	}
}

// ListenAndServe listens on cfg.Addr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections on ln until Shutdown. It always returns a non-nil error.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("TCP server listening", zap.String("addr", ln.Addr().String()))

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Warn("Accept error, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		if !s.sem.TryAcquire(1) {
			metrics.TCPConnectionsTotal.WithLabelValues("rejected").Inc()
			s.logger.Warn("Connection rejected, server busy", zap.String("remote", conn.RemoteAddr().String()))
			if !s.admitReject() {
				_ = conn.Close()
				return ErrServerClosed
			}
			go s.reject(conn)
			continue
		}

		if !s.admit(conn) {
			s.sem.Release(1)
			_ = conn.Close()
			return ErrServerClosed
		}
		metrics.TCPConnectionsTotal.WithLabelValues("accepted").Inc()
		go s.serveConn(conn)
	}
}

// admit registers conn unless Shutdown has started.
func (s *Server) admit(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

// admitReject counts a busy reply in the shutdown wait unless Shutdown has started.
func (s *Server) admitReject() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

// Shutdown stops accepting and waits for in-flight requests. When ctx expires
// the remaining connections are closed and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelFn()
		return nil
	case <-ctx.Done():
		s.cancelFn()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

func (s *Server) reject(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = writeResponse(conn, Response{Status: StatusError, Answer: MsgBusy}, false)
	s.drain(conn)
}

// drain half-closes conn and discards unread input so Close does not reset
// the connection before the client has read the reply.
func (s *Server) drain(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(drainTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, int64(s.cfg.BufferSize)))
}

func (s *Server) serveConn(conn net.Conn) {
	start := time.Now()
	metrics.TCPInFlight.Inc()
	defer func() {
		_ = conn.Close()
		s.untrack(conn)
		metrics.TCPInFlight.Dec()
		s.sem.Release(1)
		s.wg.Done()
	}()

	log := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))

	var (
		kind string
		resp Response
		req  parsedRequest
	)
	raw, err := s.readRequest(conn)
	switch {
	case errors.Is(err, ErrRequestTooLarge):
		kind = "invalid"
		resp = Response{Status: StatusError, Answer: MsgTooLarge}
		req.plain = plainFrame(raw)
	case err != nil:
		log.Debug("Connection closed before request", zap.Error(err))
		return
	default:
		req = parseRequest(raw)
		kind, resp = s.handle(log, req)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if werr := writeResponse(conn, resp, req.plain); werr != nil {
		log.Warn("Failed to write response", zap.Error(werr))
	}
	if errors.Is(err, ErrRequestTooLarge) {
		s.drain(conn)
	}

	duration := time.Since(start)
	metrics.TCPRequestsTotal.WithLabelValues(kind, resp.Status).Inc()
	metrics.TCPRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
	log.Info("tcp_request",
		zap.String("kind", kind),
		zap.String("status", resp.Status),
		zap.Bool("plaintext", req.plain),
		zap.Duration("latency", duration),
	)
}

// readRequest reads until a complete frame, EOF, or the buffer limit.
func (s *Server) readRequest(conn net.Conn) ([]byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	buf := make([]byte, 0, min(s.cfg.BufferSize, 4096))
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if len(buf)+n > s.cfg.BufferSize {
			// the overflowing read is kept so the reply format can be chosen
			return append(buf, chunk[:n]...), ErrRequestTooLarge
		}
		buf = append(buf, chunk[:n]...)
		if complete(buf) {
			return buf, nil
		}
		if err != nil {
			// a half-closed or idle client still gets an answer for what it sent
			if (errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded)) && len(buf) > 0 {
				return buf, nil
			}
			return buf, err
		}
	}
}

func (s *Server) handle(log *zap.Logger, req parsedRequest) (string, Response) {
	switch req.Command {
	case "":
	case CommandPing:
		return "ping", Response{Status: StatusSuccess, Answer: "pong"}
	case CommandStatus:
		return "status", s.statusResponse()
	default:
		return "invalid", Response{Status: StatusError, Answer: MsgUnknownCmd}
	}

	question := req.Question
	ans, err := s.asker.Ask(s.baseCtx, question)
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return "question", Response{Status: StatusError, Answer: MsgEmptyQuestion}
	case errors.Is(err, domain.ErrNotReady):
		return "question", Response{Status: StatusError, Answer: MsgNotReady}
	case err != nil:
		log.Error("Question failed", zap.Error(err))
		return "question", Response{Status: StatusError, Answer: msgInternalError + err.Error()}
	}

	elapsed := math.Round(ans.Duration.Seconds()*100) / 100
	return "question", Response{Status: StatusSuccess, Answer: ans.Text, Time: &elapsed}
}

func (s *Server) statusResponse() Response {
	ready := s.asker.Ready()
	resp := Response{Status: StatusSuccess, Answer: "not ready", Ready: &ready}
	if ready {
		resp.Answer = "ready"
	}
	if s.status != nil {
		st := s.status.Status()
		resp.Pipeline = &st
	}
	return resp
}

func writeResponse(w io.Writer, resp Response, plain bool) error {
	if plain {
		_, err := io.WriteString(w, resp.Answer+"\n")
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = w.Write(data)
	return err
}
