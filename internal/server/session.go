package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBuffer = 64
)

// ErrSessionClosed is returned when sending to a session that has gone away
var ErrSessionClosed = errors.New("session closed")

// Session is one browser tab playing its own game over a websocket
type Session struct {
	id     string
	conn   *websocket.Conn
	engine *blackjack.Engine
	clock  quartz.Clock
	send   chan []byte
	logger *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, engine *blackjack.Engine, clock quartz.Clock, logger *log.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     id,
		conn:   conn,
		engine: engine,
		clock:  clock,
		send:   make(chan []byte, sendBuffer),
		logger: logger.WithPrefix("session").With("id", id),
		ctx:    ctx,
		cancel: cancel,
	}
	engine.Subscribe(s)
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session has shut down
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Start pushes the current state and begins pumping frames
func (s *Session) Start() {
	s.sendState(s.engine.Snapshot())
	go s.writePump()
	go s.readPump()
}

// Close stops the engine and the connection. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.engine.Close()
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

// OnEvent forwards every engine change to the browser
func (s *Session) OnEvent(event blackjack.GameEvent) {
	s.logger.Debug("Engine event", "type", event.EventType())
	s.sendState(event.Snapshot())
}

func (s *Session) sendState(snap blackjack.Snapshot) {
	state := protocol.StateFromSnapshot(snap)
	if err := s.sendPayload(&state); err != nil {
		s.logger.Debug("Dropped state update", "error", err)
	}
}

func (s *Session) sendError(code, message string) {
	if err := s.sendPayload(&protocol.Error{Code: code, Message: message}); err != nil {
		s.logger.Debug("Dropped error message", "error", err)
	}
}

func (s *Session) sendPayload(payload any) error {
	data, err := protocol.Marshal(payload, s.clock.Now())
	if err != nil {
		return err
	}

	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- data:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
		s.logger.Warn("Session send buffer full, closing session")
		// May be running inside an engine publish; close off this goroutine
		go func() { _ = s.Close() }()
		return ErrSessionClosed
	}
}

// readPump handles incoming frames from the browser
func (s *Session) readPump() {
	defer func() { _ = s.Close() }()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		s.handleMessage(data)
	}
}

// writePump handles outgoing frames and keepalive pings
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.Close()
	}()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage applies one client frame to the engine
func (s *Session) handleMessage(data []byte) {
	payload, err := protocol.Unmarshal(data)
	if err != nil {
		s.sendError(protocol.CodeInvalidMessage, err.Error())
		return
	}

	action, ok := payload.(*protocol.Action)
	if !ok {
		s.sendError(protocol.CodeInvalidMessage, "expected an action message")
		return
	}

	s.logger.Debug("Received action", "action", action.Action)

	switch action.Action {
	case protocol.ActionNewGame:
		err = s.engine.NewGame()
	case protocol.ActionHit:
		err = s.engine.Hit()
	case protocol.ActionStand:
		s.engine.Stand()
	default:
		s.sendError(protocol.CodeUnknownAction, "unknown action: "+action.Action)
		return
	}

	if errors.Is(err, blackjack.ErrDeckExhausted) {
		s.sendError(protocol.CodeDeckExhausted, err.Error())
	} else if err != nil {
		s.logger.Error("Action failed", "action", action.Action, "error", err)
	}
}
