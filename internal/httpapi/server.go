// Package httpapi exposes the Chord peer's data and control planes over
// HTTP: key/value storage, membership control, crash simulation and
// ring introspection.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retorded/chordkv/internal/peer"
)

// Server wraps the gin router and stdlib http.Server around one Peer.
type Server struct {
	peer       *peer.Peer
	http       *http.Server
	ringClient *http.Client
	log        *zap.Logger
}

// New builds a Server bound to addr, routing requests against p.
func New(addr string, p *peer.Peer, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		peer:       p,
		ringClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
	s.registerRoutes(router)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.Use(s.crashMiddleware())

	r.GET("/storage/:key", s.handleGetStorage)
	r.PUT("/storage/:key", s.handlePutStorage)
	r.GET("/node-info", s.handleNodeInfo)
	r.GET("/join", s.handleJoin)
	r.GET("/leave", s.handleLeave)
	r.GET("/sim-crash", s.handleSimCrash)
	r.GET("/sim-recover", s.handleSimRecover)
	r.GET("/ring", s.handleRing)
}

// crashMiddleware simulates a dead peer: every route but /sim-recover
// is refused with 500 once SimCrash has been called.
func (s *Server) crashMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.peer.Crashed() && c.FullPath() != "/sim-recover" {
			c.String(http.StatusInternalServerError, "oh no I crashed :(")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Start serves until Shutdown is called; ErrServerClosed is not an error.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
