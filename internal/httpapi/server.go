// Package httpapi wraps the execution endpoint, the debug session
// endpoints, and the error envelope in an emicklei/go-restful WebService.
package httpapi

import (
	"context"
	"net/http"

	restful "github.com/emicklei/go-restful"

	"github.com/vru6650/tracehost/internal/langa"
	"github.com/vru6650/tracehost/internal/langb"
	"github.com/vru6650/tracehost/internal/session"
	"github.com/vru6650/tracehost/internal/tconfig"
	"github.com/vru6650/tracehost/pkg/logflags"
)

// Server exposes tracehost's execution and debug endpoints over HTTP.
type Server struct {
	cfg    *tconfig.Config
	runner *langb.Runner
	store  *session.Store

	container  *restful.Container
	httpServer *http.Server
}

// NewServer builds a Server bound to cfg.ListenAddr, wiring routes exactly
// as service/rest.RESTServer.Run wires its WebService.
func NewServer(cfg *tconfig.Config) (*Server, error) {
	langa.SetCacheSize(cfg.InstrumentCacheSize)

	runner, err := langb.NewRunner(cfg.TracerPath, cfg.TempDir, cfg.LangBExt, cfg.TracerTimeoutSec)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		runner:    runner,
		store:     session.NewStore(),
		container: restful.NewContainer(),
	}

	ws := new(restful.WebService)
	ws.
		Path("").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Route(ws.POST("/execute").To(s.doExecute)).
		Route(ws.POST("/debug/start").To(s.doDebugStart)).
		Route(ws.POST("/debug/command").To(s.doDebugCommand)).
		Route(ws.GET("/status").To(s.doStatus))
	s.container.Add(ws)

	s.httpServer = &http.Server{Addr: cfg.ListenAddr, Handler: s.container}
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	logflags.HTTPLogger().WithField("addr", s.cfg.ListenAddr).Info("server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
