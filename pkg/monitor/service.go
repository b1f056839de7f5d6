// Package monitor serves the readings of a running stream: the latest one
// over HTTP, each new one over a websocket, and the stream's Prometheus
// metrics.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const writeTimeout = 5 * time.Second

type Server struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader

	readingMutex  sync.RWMutex
	latestReading *types.Reading

	// ws clients for broadcasting live readings
	wsClientsMutex sync.RWMutex
	wsClients      map[*websocket.Conn]*sync.Mutex

	httpServer *http.Server
}

func NewServer(gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:   logger,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // read-only local view
			},
		},
		wsClients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "telem stream monitor",
			"status":  "running",
			"clients": s.ClientCount(),
		})
	})

	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		reading := s.Latest()
		if reading == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "No readings available yet",
			})
			return
		}
		writeJSON(w, http.StatusOK, reading)
	})

	mux.HandleFunc("/ws", s.handleWebSocket)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on addr in the background. The returned address is the
// one actually bound, useful with ":0".
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server stopped", "error", err)
		}
	}()
	s.logger.Info("stream monitor listening", "addr", listener.Addr().String())
	return listener.Addr().String(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.wsClientsMutex.Lock()
	for conn := range s.wsClients {
		conn.Close()
		delete(s.wsClients, conn)
	}
	s.wsClientsMutex.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Latest() *types.Reading {
	s.readingMutex.RLock()
	defer s.readingMutex.RUnlock()
	return s.latestReading
}

// Publish records reading as the latest and broadcasts it to every
// websocket client. Clients that fail to receive it are dropped.
func (s *Server) Publish(reading types.Reading) {
	s.readingMutex.Lock()
	s.latestReading = &reading
	s.readingMutex.Unlock()

	payload, err := json.Marshal(reading)
	if err != nil {
		return
	}

	s.wsClientsMutex.RLock()
	clients := make(map[*websocket.Conn]*sync.Mutex, len(s.wsClients))
	for client, writeMu := range s.wsClients {
		clients[client] = writeMu
	}
	s.wsClientsMutex.RUnlock()

	for client, writeMu := range clients {
		writeMu.Lock()
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := client.WriteMessage(websocket.TextMessage, payload)
		writeMu.Unlock()
		if err != nil {
			s.removeClient(client)
		}
	}
}

func (s *Server) ClientCount() int {
	s.wsClientsMutex.RLock()
	defer s.wsClientsMutex.RUnlock()
	return len(s.wsClients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", "error", err)
		return
	}

	writeMu := &sync.Mutex{}

	// Send current reading immediately if available
	if reading := s.Latest(); reading != nil {
		if payload, err := json.Marshal(reading); err == nil {
			conn.WriteMessage(websocket.TextMessage, payload)
		}
	}

	s.wsClientsMutex.Lock()
	s.wsClients[conn] = writeMu
	s.wsClientsMutex.Unlock()

	// Keep connection alive until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.removeClient(conn)
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.wsClientsMutex.Lock()
	delete(s.wsClients, conn)
	s.wsClientsMutex.Unlock()
	conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
