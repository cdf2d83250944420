// internal/api/stream.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/events"
)

const (
	streamBuffer     = 64
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
	streamPongWait   = 2 * streamPingPeriod
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleStream pushes token.detected events to a websocket client. A slow
// client loses events instead of stalling the bus.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Stream disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()

	frames := make(chan events.TokenDetectedEvent, streamBuffer)
	sub := s.bus.SubscribeFunc(events.TokenDetected, func(_ context.Context, e events.Event) error {
		ev, ok := e.(events.TokenDetectedEvent)
		if !ok {
			return nil
		}
		select {
		case frames <- ev:
		default:
			s.logger.Debug("Stream client too slow, dropping frame", zap.String("mint", ev.Token.Mint))
		}
		return nil
	})
	defer sub.Unsubscribe()

	s.logger.Info("📡 Stream client connected", zap.String("remote", r.RemoteAddr))

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			s.logger.Info("Stream client disconnected", zap.String("remote", r.RemoteAddr))
			return
		case ev := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("Stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed and
// closes closed when the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxRequestBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
