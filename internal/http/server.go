package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

// Server runs the gin engine as a suture service. Ready is closed once the
// listener is bound.
type Server struct {
	Engine *gin.Engine

	addr            string
	shutdownTimeout time.Duration
	log             *logger.Logger
	ready           chan struct{}
}

func NewServer(log *logger.Logger, addr string, shutdownTimeout time.Duration, cfg RouterConfig) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		Engine:          NewRouter(cfg),
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		log:             log.With("component", "HTTPServer"),
		ready:           make(chan struct{}),
	}
}

func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("HTTP server listening", "addr", ln.Addr().String())
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *Server) String() string { return "http-server" }
