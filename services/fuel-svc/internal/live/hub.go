// Package live рассылает снимки статистики по websocket всем открытым
// вкладкам пользователя после каждой записи или импорта.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/config"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/metrics"
	"fueltracker/services/fuel-svc/internal/analysis"
	"fueltracker/services/fuel-svc/internal/middleware"
)

// MessageStatistics тип сообщения со снимком статистики
const MessageStatistics = "statistics"

// Message сообщение ленты
type Message struct {
	Type   string                   `json:"type"`
	SentAt time.Time                `json:"sentAt"`
	Data   *analysis.StatisticsData `json:"data"`
}

// SnapshotFunc текущий снимок пользователя, отправляется сразу после подключения
type SnapshotFunc func(ctx context.Context, userID string) (analysis.StatisticsData, error)

// Hub держит соединения по пользователям
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	closed   bool
	cfg      config.LiveConfig
	snapshot SnapshotFunc
	upgrader websocket.Upgrader
}

// NewHub создаёт hub. snapshot может быть nil.
func NewHub(cfg config.LiveConfig, snapshot SnapshotFunc) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 8
	}
	return &Hub{
		clients:  make(map[string]map[*client]struct{}),
		cfg:      cfg,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin проверяет CORS middleware, токен проверен auth
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Publish рассылает снимок всем соединениям пользователя
func (h *Hub) Publish(userID string, stats analysis.StatisticsData) {
	payload, err := encode(stats)
	if err != nil {
		logger.Log.Warn("Live message encoding failed", "user_id", userID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		c.enqueue(payload)
	}
}

// Connections число открытых соединений пользователя
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// ServeHTTP GET /api/v1/live: upgrade и регистрация соединения
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, r, pkgerrors.New(pkgerrors.CodeUnauthenticated, "authentication required"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		logger.FromContext(r.Context()).Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := newClient(userID, conn, h.cfg)
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	logger.FromContext(r.Context()).Info("Live client connected", "user_id", userID)

	// Начальный снимок, чтобы клиент не ждал следующей записи
	if h.snapshot != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.cfg.WriteTimeout)
		stats, err := h.snapshot(ctx, userID)
		cancel()
		if err != nil {
			logger.FromContext(r.Context()).Warn("Initial live snapshot failed", "user_id", userID, "error", err)
		} else if payload, err := encode(stats); err == nil {
			c.enqueue(payload)
		}
	}

	go c.writePump()
	go func() {
		c.readPump()
		h.remove(c)
		logger.Log.Info("Live client disconnected", "user_id", userID)
	}()
}

// Close закрывает все соединения, новые не принимаются
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for userID, set := range h.clients {
		for c := range set {
			c.stop()
			metrics.Get().LiveConnections.Dec()
		}
		delete(h.clients, userID)
	}
	return nil
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	metrics.Get().LiveConnections.Inc()
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	c.stop()
	metrics.Get().LiveConnections.Dec()
}

func encode(stats analysis.StatisticsData) ([]byte, error) {
	return json.Marshal(Message{Type: MessageStatistics, SentAt: time.Now().UTC(), Data: &stats})
}

