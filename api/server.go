// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package api is the HTTP/JSON gateway of the metadata catalog. Every call
// passes through the request interceptor before it reaches a service; errors
// are mapped to a status payload with a matching HTTP code.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"tracdap.io/tracmeta/metadata/metaservice"
	"tracdap.io/tracmeta/pkg/config"
)

var mon = monkit.Package()

// Error is the error class for gateway failures.
var Error = errs.Class("api")

var requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tracmeta_api_requests_total",
	Help: "API requests by method and status code",
}, []string{"method", "code"})

// Caller identity headers. The fronting proxy strips these from external
// traffic and injects them after authentication.
const (
	HeaderUserID   = "X-Tracmeta-User-Id"
	HeaderUserName = "X-Tracmeta-User-Name"
	HeaderSystem   = "X-Tracmeta-System"
)

// Server is the gateway HTTP server.
type Server struct {
	log         *zap.Logger
	conf        config.APIConfig
	interceptor *metaservice.Interceptor
	writer      *metaservice.WriteService
	reader      *metaservice.ReadService

	router *mux.Router
}

// NewServer wires the gateway routes.
func NewServer(log *zap.Logger, conf config.APIConfig,
	interceptor *metaservice.Interceptor,
	writer *metaservice.WriteService, reader *metaservice.ReadService) *Server {

	server := &Server{
		log:         log,
		conf:        conf,
		interceptor: interceptor,
		writer:      writer,
		reader:      reader,
		router:      mux.NewRouter(),
	}
	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	httpServer := &http.Server{
		Addr:         s.conf.Listen,
		Handler:      s.router,
		ReadTimeout:  s.conf.ReadTimeout,
		WriteTimeout: s.conf.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- httpServer.ListenAndServe() }()
	s.log.Info("api gateway listening", zap.String("addr", s.conf.Listen))

	select {
	case err := <-errc:
		return Error.Wrap(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.conf.ShutdownTimeout)
	defer cancel()
	return Error.Wrap(httpServer.Shutdown(shutdownCtx))
}

func (s *Server) registerRoutes() {
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	public := s.router.PathPrefix("/api/v1").Subrouter()
	public.HandleFunc("/platform-info", s.handlePlatformInfo).Methods(http.MethodGet)
	public.HandleFunc("/tenants", s.handleListTenants).Methods(http.MethodGet)
	public.HandleFunc("/resources", s.handleListResources).Methods(http.MethodGet)
	public.HandleFunc("/resources/{resource}", s.handleResourceInfo).Methods(http.MethodGet)

	public.HandleFunc("/{tenant}/create-object", s.writeHandler(metaservice.MethodCreateObject, s.writer.CreateObject)).Methods(http.MethodPost)
	public.HandleFunc("/{tenant}/update-object", s.writeHandler(metaservice.MethodUpdateObject, s.writer.UpdateObject)).Methods(http.MethodPost)
	public.HandleFunc("/{tenant}/update-tag", s.writeHandler(metaservice.MethodUpdateTag, s.writer.UpdateTag)).Methods(http.MethodPost)
	public.HandleFunc("/{tenant}/write-batch", s.handleWriteBatch(metaservice.MethodWriteBatch)).Methods(http.MethodPost)
	public.HandleFunc("/{tenant}/read-object", s.handleReadObject).Methods(http.MethodPost)
	public.HandleFunc("/{tenant}/read-batch", s.handleReadBatch).Methods(http.MethodPost)
	public.HandleFunc("/{tenant}/search", s.handleSearch).Methods(http.MethodPost)

	trusted := s.router.PathPrefix("/trusted/v1").Subrouter()
	trusted.HandleFunc("/{tenant}/create-object", s.writeHandler(metaservice.MethodTrustedCreateObject, s.writer.CreateObject)).Methods(http.MethodPost)
	trusted.HandleFunc("/{tenant}/update-object", s.writeHandler(metaservice.MethodTrustedUpdateObject, s.writer.UpdateObject)).Methods(http.MethodPost)
	trusted.HandleFunc("/{tenant}/update-tag", s.writeHandler(metaservice.MethodTrustedUpdateTag, s.writer.UpdateTag)).Methods(http.MethodPost)
	trusted.HandleFunc("/{tenant}/write-batch", s.handleWriteBatch(metaservice.MethodTrustedWriteBatch)).Methods(http.MethodPost)
	trusted.HandleFunc("/{tenant}/preallocate-ids", s.handlePreallocate).Methods(http.MethodPost)
	trusted.HandleFunc("/{tenant}/create-preallocated-object", s.writeHandler(metaservice.MethodTrustedCreatePreallocated, s.writer.CreatePreallocatedObject)).Methods(http.MethodPost)
}

// callerContext attaches the caller identity from the request headers. With
// no user id header the context carries no caller and the interceptor
// rejects the call.
func callerContext(r *http.Request) context.Context {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return r.Context()
	}
	return metaservice.WithCaller(r.Context(), metaservice.Caller{
		UserID:   userID,
		UserName: r.Header.Get(HeaderUserName),
		Trusted:  r.Header.Get(HeaderSystem) == "true",
	})
}
