package push

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Snapshot - сообщение клиенту: вся коллекция на момент версии Version.
type Snapshot struct {
	Type    string      `json:"type"`
	Version uint64      `json:"version"`
	Tasks   []task.Task `json:"tasks"`
}

// Hub рассылает подключенным клиентам снимки доски после каждого изменения Store.
type Hub struct {
	store          *board.Store
	upgrader       websocket.Upgrader
	allowedOrigins []string
	writeTimeout   time.Duration
	pingInterval   time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]context.CancelFunc
}

type HubOption func(*Hub)

// WithAllowedOrigins разрешает апгрейд для перечисленных Origin. "*" разрешает все.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		h.allowedOrigins = origins
	}
}

func WithPingInterval(interval time.Duration) HubOption {
	return func(h *Hub) {
		if interval > 0 {
			h.pingInterval = interval
		}
	}
}

func NewHub(store *board.Store, options ...HubOption) *Hub {
	h := &Hub{
		store:        store,
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		clients:      make(map[*websocket.Conn]context.CancelFunc),
	}
	for _, opt := range options {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 32 * 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Push: Апгрейд не удался", zap.Error(err), zap.String("client_ip", r.RemoteAddr))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	h.register(conn, cancel)
	defer h.unregister(conn)

	logger.Info("Push: Клиент подключен",
		zap.String("client_ip", r.RemoteAddr),
		zap.Int("clients", h.ClientCount()))

	// чтение нужно только для обработки close и pong
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.pump(ctx, conn); err != nil {
		logger.Debug("Push: Соединение закрыто", zap.Error(err))
	}
}

func (h *Hub) pump(ctx context.Context, conn *websocket.Conn) error {
	changes, unsubscribe := h.store.Subscribe()
	defer unsubscribe()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	if err := h.send(conn); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if err := h.send(conn); err != nil {
				return err
			}
		case <-ping.C:
			deadline := time.Now().Add(h.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) send(conn *websocket.Conn) error {
	version := h.store.Version()
	msg := Snapshot{Type: "snapshot", Version: version, Tasks: h.store.All()}
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return conn.WriteJSON(msg)
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close отключает всех клиентов.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, cancel := range h.clients {
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second))
	}
}

func (h *Hub) register(conn *websocket.Conn, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = cancel
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	cancel, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		cancel()
	}
	conn.Close()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return strings.Contains(origin, "://"+strings.TrimSpace(r.Host))
}
