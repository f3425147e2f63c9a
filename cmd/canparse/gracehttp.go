package main

import (
	"context"
	"net/http"
	"time"

	"CANParse/base"

	"github.com/cockroachdb/errors"
)

const shutdownTimeout = 5 * time.Second

type HttpServer struct {
	Server   *http.Server
	shutdown chan struct{}
}

func NewHttpServer(cfg *base.HttpServer, whiteList http.Handler) *HttpServer {
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.HealthCheckURI, Pong) // ping路由
	mux.Handle(cfg.WhiteListURI, whiteList)  // 设置白名单

	return &HttpServer{
		Server: &http.Server{
			Addr:    cfg.ServerAddr,
			Handler: mux,
		},
		shutdown: make(chan struct{}),
	}
}

// ListenAndServe blocks until the server stops. After a shutdown it waits
// for WaitExitSignal to finish draining.
func (s *HttpServer) ListenAndServe() error {
	err := s.Server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		// expected error after calling Server.Shutdown().
		err = nil
	} else if err != nil {
		return errors.Wrap(err, "unexpected error from ListenAndServe")
	}

	log.Debugln("waiting for shutdown finishing...")
	<-s.shutdown
	log.Debugln("shutdown finished")
	return nil
}

// WaitExitSignal shuts the server down once ctx is done.
func (s *HttpServer) WaitExitSignal(ctx context.Context, timeout time.Duration) {
	// blocks here until there's a signal
	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Server.Shutdown(sctx); err != nil {
		log.Errorln("shutting down: " + err.Error())
	} else {
		log.Debugln("shutdown processed successfully")
	}
	close(s.shutdown)
}

func Pong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
