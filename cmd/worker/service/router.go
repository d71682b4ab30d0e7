package service

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
)

// NewRouter mounts the worker's HTTP surface:
//
//	GET  /health
//	GET  /metrics                    when metrics is non-nil
//	POST /modules/vertical-builder   Pub/Sub push intake
//	POST /verticalbuilder.v1.BuildService/{SubmitBuild,GetReceipt}
func NewRouter(svc *BuildService, metrics http.Handler, allowedOrigins []string, logger *slog.Logger, opts ...connect.HandlerOption) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(logger))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	r.HandleFunc(PushPath, svc.HandlePush).Methods(http.MethodPost)

	path, handler := NewBuildServiceHandler(svc, opts...)
	r.PathPrefix(path).Handler(CORSMiddleware(allowedOrigins)(handler))

	return r
}
