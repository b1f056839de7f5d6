package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/gorilla/websocket"
)

var ErrGaveUp = errors.New("max reconnect attempts reached")

type Options struct {
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	// Connection is considered dead after this long without a message
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:     10,
		BaseRetryDelay: 2 * time.Second,
		MaxRetryDelay:  60 * time.Second,
		ReadTimeout:    10 * time.Second,
		PingInterval:   5 * time.Second,
	}
}

// Listen connects to a stream monitor at host and calls handle for each
// reading until ctx ends (returns nil) or reconnecting fails MaxRetries
// times in a row (returns ErrGaveUp).
func Listen(ctx context.Context, host string, options Options, handle func(types.Reading), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	// WebSocket server URL
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	retryCount := 0
	for {
		if retryCount > 0 {
			// Calculate retry delay with exponential backoff
			retryDelay := time.Duration(1<<(retryCount-1)) * options.BaseRetryDelay
			if retryDelay > options.MaxRetryDelay {
				retryDelay = options.MaxRetryDelay
			}
			logger.Info("retrying connection", "delay", retryDelay, "attempt", retryCount+1, "max_attempts", options.MaxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		logger.Info("connecting to stream monitor", "url", u.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		conn, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("connection failed", "error", err)
			retryCount++
			if retryCount >= options.MaxRetries {
				return errors.Join(ErrGaveUp, err)
			}
			continue
		}

		logger.Info("connected, accepting readings")
		retryCount = 0

		handleConnection(ctx, conn, options, handle, logger)
		conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("connection lost, will retry")
		retryCount = 1
	}
}

func handleConnection(
	ctx context.Context,
	conn *websocket.Conn,
	options Options,
	handle func(types.Reading),
	logger *slog.Logger,
) {
	done := make(chan struct{})

	conn.SetReadDeadline(time.Now().Add(options.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(options.ReadTimeout))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("websocket error", "error", err)
				} else {
					logger.Debug("connection closed", "error", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(options.ReadTimeout))

			if messageType != websocket.TextMessage {
				logger.Debug("unexpected message type", "type", messageType)
				continue
			}
			var reading types.Reading
			if err := json.Unmarshal(message, &reading); err != nil {
				logger.Warn("failed to parse reading", "message", string(message))
				continue
			}
			handle(reading)
		}
	}()

	// Pings keep the read deadline moving while the stream is idle
	ticker := time.NewTicker(options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("failed to send ping", "error", err)
				return
			}
		case <-ctx.Done():
			err := conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			if err != nil {
				logger.Debug("error sending close message", "error", err)
			}
			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
