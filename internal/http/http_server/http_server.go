package http_server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pairdrawgo/internal/http/presencehandler"
	"pairdrawgo/internal/ws"
)

type httpServer struct {
	listenPort      uint16
	srv             http.Server
	ln              net.Listener
	wsSrv           *ws.WsServer
	presenceHandler *presencehandler.Handler
}

func NewHttpServer(listenPort uint16, wsSrv *ws.WsServer, ph *presencehandler.Handler) *httpServer {
	return &httpServer{
		listenPort:      listenPort,
		wsSrv:           wsSrv,
		presenceHandler: ph,
	}
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	routerEngine := gin.New()
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// REST API
	routerEngine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	h.presenceHandler.Register(routerEngine)

	h.srv = http.Server{
		Handler: routerEngine,
	}

	return h.srv.Serve(h.ln)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish.
func (h *httpServer) Dispose() error {
	// Not derived from the signal context; that one is already done
	// by the time we get here and would skip the drain.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ask the server to shut down.
	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn’t finish in time
	}

	// If the context’s deadline expired, log it for observability.
	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
		log.Println("shutdown timeout (10 s)")
	}

	return nil
}
