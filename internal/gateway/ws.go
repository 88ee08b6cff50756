package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/roman-kulish/groundlink/internal/vehicle"
)

const (
	frameState   = "state"
	frameEvent   = "event"
	frameAck     = "ack"
	frameError   = "error"
	commandFrame = "command."

	maxDecodeErrorsPerConn = 3
)

// wsFrame is the envelope for every WebSocket message. Clients send
// "command.axis", "command.arm" and "command.mode" frames; the server sends
// "state" once, then "event" per change, and "ack" or "error" per command.
type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func (p *wsPeer) write(typ, requestID string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(wsFrame{Type: typ, RequestID: requestID, Payload: raw})
}

func (s *Server) serveWS(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()

	logger := s.logger.With(slog.String("remote", conn.Request().RemoteAddr))
	logger.Info("websocket client connected")
	defer logger.Info("websocket client disconnected")

	// unblocks the read loop when the server shuts down
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	events, unsubscribe := s.ctrl.Subscribe(ctx)
	defer unsubscribe()

	peer := &wsPeer{encoder: json.NewEncoder(conn)}

	stateCtx, stateCancel := context.WithTimeout(ctx, s.requestTimeout)
	st, err := s.ctrl.State(stateCtx)
	stateCancel()
	if err != nil {
		_ = peer.write(frameError, "", errorResponse{Error: err.Error()})
		return
	}
	if err = peer.write(frameState, "", st); err != nil {
		return
	}

	go func() {
		defer cancel()
		for ev := range events {
			if err := peer.write(frameEvent, "", toEventMessage(ev)); err != nil {
				return
			}
		}
	}()

	s.readCommands(ctx, conn, peer, logger)
}

func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, peer *wsPeer, logger *slog.Logger) {
	decoder := json.NewDecoder(conn)
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			decodeErrors++
			_ = peer.write(frameError, "", errorResponse{Error: "invalid frame"})
			if decodeErrors >= maxDecodeErrorsPerConn {
				logger.Warn("dropping websocket client", slog.String("error", err.Error()))
				return
			}
			// the decoder cannot resync after a syntax error
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		typ, ok := strings.CutPrefix(frame.Type, commandFrame)
		if !ok {
			_ = peer.write(frameError, frame.RequestID, errorResponse{Error: "unsupported frame type"})
			continue
		}

		cmd, err := decodeCommand(vehicle.CommandType(typ), frame.Payload, time.Now())
		if err == nil {
			submitCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
			err = s.ctrl.Submit(submitCtx, cmd)
			cancel()
		}
		if err != nil {
			_ = peer.write(frameError, frame.RequestID, errorResponse{Error: err.Error()})
			continue
		}
		_ = peer.write(frameAck, frame.RequestID, nil)
	}
}
