package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ibrahim-murtaza/ColorGrid/internal/entity"
	"github.com/ibrahim-murtaza/ColorGrid/internal/pool"
	"github.com/ibrahim-murtaza/ColorGrid/internal/repository"
)

type waitingPool interface {
	Enqueue(entry pool.Entry) (*pool.Pair, int)
	Remove(connID string)
}

type matchRegistry interface {
	Create(first, second *entity.PlayerSlot) *entity.Match
	Get(id string) (*entity.Match, error)
	Finalize(match *entity.Match)
	OnDisconnect(connID string, notify func(opponentConnID string, snap entity.MatchSnapshot))
}

type matchRecords interface {
	GetByID(ctx context.Context, id string) (*repository.MatchRecord, error)
}

// Server routes connection events to the pool, registry and matches, and
// fans results out to the right connections. It holds no game logic.
type Server struct {
	logger   *slog.Logger
	pool     waitingPool
	registry matchRegistry
	records  matchRecords

	upgrader websocket.Upgrader

	connsMu sync.RWMutex
	conns   map[string]*connection

	handlers map[string]func(ctx context.Context, conn *connection, message *Message) error
}

func New(logger *slog.Logger, waiting waitingPool, registry matchRegistry, records matchRecords) *Server {
	server := &Server{
		logger:   logger,
		pool:     waiting,
		registry: registry,
		records:  records,

		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},

		conns: make(map[string]*connection),

		handlers: make(map[string]func(context.Context, *connection, *Message) error),
	}

	server.handlers[ActionSeekMatch] = server.handleSeekMatch
	server.handlers[ActionCancelMatch] = server.handleCancelMatch
	server.handlers[ActionJoinMatch] = server.handleJoinMatch
	server.handlers[ActionMakeMove] = server.handleMakeMove
	server.handlers[ActionForfeitMatch] = server.handleForfeit

	return server
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  0, // persistent bidirectional connections
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection upgrades the connection and runs its read loop until the
// client goes away.
func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := &connection{
		id: GenerateConnID(),
		ws: ws,
	}

	that.connsMu.Lock()
	that.conns[conn.id] = conn
	that.connsMu.Unlock()

	log.Info("WebSocket connection established", "connID", conn.id)

	defer that.dropConnection(conn)

	that.readMessages(ctx, conn)
}

// dropConnection removes the connection from every structure that may
// reference it: the connection table, the waiting pool, and any live match
// (which starts the disconnect grace timer).
func (that *Server) dropConnection(conn *connection) {
	log := that.logger.With("method", "dropConnection", "connID", conn.id)

	that.connsMu.Lock()
	delete(that.conns, conn.id)
	that.connsMu.Unlock()

	that.pool.Remove(conn.id)
	that.registry.OnDisconnect(conn.id, that.notifyOpponentLost)

	conn.close()

	log.Info("connection dropped")
}

// readMessages - processes messages from the client. Every failure is
// scoped to one event and answered on the originating connection.
func (that *Server) readMessages(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "readMessages", "connID", conn.id)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			log.Info("connection read ended", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			that.sendError(conn, "malformed message")
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			that.sendError(conn, fmt.Sprintf("unknown action %q", message.Action))
			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// notifyOpponentLost tells the surviving player that the grace timer
// confirmed the opponent's disconnect.
func (that *Server) notifyOpponentLost(opponentConnID string, snap entity.MatchSnapshot) {
	log := that.logger.With("method", "notifyOpponentLost", "matchID", snap.ID)

	conn, ok := that.lookup(opponentConnID)
	if !ok {
		log.Warn("opponent connection not found")
		return
	}

	if err := conn.send(ActionOpponentLost, struct{}{}); err != nil {
		log.Error("failed to send opponent-lost-connection", "error", err)
	}
}

func (that *Server) lookup(connID string) (*connection, bool) {
	that.connsMu.RLock()
	defer that.connsMu.RUnlock()

	conn, ok := that.conns[connID]

	return conn, ok
}

// broadcast sends one event to every connection currently bound to the
// match's two slots.
func (that *Server) broadcast(snap entity.MatchSnapshot, action string, payload any) {
	log := that.logger.With("method", "broadcast", "matchID", snap.ID)

	for _, connID := range []string{snap.Player1.ConnID, snap.Player2.ConnID} {
		if connID == "" {
			continue
		}

		conn, ok := that.lookup(connID)
		if !ok {
			log.Warn("connection not found", "connID", connID)
			continue
		}

		if err := conn.send(action, payload); err != nil {
			log.Error("failed to send event", "action", action, "error", err)
		}
	}
}

func (that *Server) sendError(conn *connection, message string) {
	if err := conn.send(ActionMatchError, ErrorPayload{Message: message}); err != nil {
		that.logger.Error("failed to send error response", "connID", conn.id, "error", err)
	}
}

// connection wraps one client socket. Writes are serialized by the
// connection's own mutex, so concurrent fan-outs never interleave frames.
type connection struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func (that *connection) send(action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if err = that.ws.WriteJSON(Message{Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *connection) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	_ = that.ws.Close()
}
