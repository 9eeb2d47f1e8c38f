// Command reactor-server runs the TCP reactor as a standalone echo
// service, loading its configuration from an optional file argument.
//
// Grounded on the reference reactor's examples/main.go entrypoint shape
// (construct a handler, construct the engine, serve), extended with the
// config-file loading and signal-driven shutdown the reference examples
// never needed since they run for a fixed test duration.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/moqsien/processes/logger"

	"github.com/reactorcore/tcpreactor/internal/config"
	"github.com/reactorcore/tcpreactor/internal/tcpconn"
	"github.com/reactorcore/tcpreactor/server"
)

type echoHandler struct{}

func (echoHandler) OnNewConnection(conn *tcpconn.Conn) {
	logger.Println("accepted connection from", conn.RemoteAddr())
}

func (echoHandler) OnMessage(conn *tcpconn.Conn) (needMore bool) {
	if conn.InboundLen() == 0 {
		return true
	}
	buf := make([]byte, conn.InboundLen())
	n, _ := conn.ReadInbound(buf)
	conn.QueueOutbound(buf[:n])
	return false
}

func (echoHandler) OnClose(conn *tcpconn.Conn) {
	logger.Println("connection closed", conn.RemoteAddr())
}

func loadConfig() *config.Config {
	if len(os.Args) < 2 {
		return config.Default()
	}
	cfg, err := config.Load(os.Args[1])
	if err != nil {
		logger.Warningf("failed to load config %q, using defaults: %v", os.Args[1], err)
		return config.Default()
	}
	return cfg
}

func main() {
	cfg := loadConfig()

	srv, err := server.New(cfg, echoHandler{})
	if err != nil {
		logger.Errorf("failed to construct server: %v", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Println("shutting down")
		srv.Shutdown()
	}()

	logger.Println("listening on", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Errorf("server exited: %v", err)
	}
	_ = srv.Close()
}
