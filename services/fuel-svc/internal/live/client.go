package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fueltracker/pkg/config"
	"fueltracker/pkg/logger"
	edgemetrics "fueltracker/services/fuel-svc/internal/metrics"
)

const maxMessageSize = 4096

// client одно websocket соединение
type client struct {
	userID   string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once

	pingInterval time.Duration
	writeTimeout time.Duration
}

func newClient(userID string, conn *websocket.Conn, cfg config.LiveConfig) *client {
	return &client{
		userID:       userID,
		conn:         conn,
		send:         make(chan []byte, cfg.SendBuffer),
		done:         make(chan struct{}),
		pingInterval: cfg.PingInterval,
		writeTimeout: cfg.WriteTimeout,
	}
}

// enqueue не блокирует: медленный клиент теряет сообщение, следующий снимок его заменит
func (c *client) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
		edgemetrics.Get().RecordLiveMessage(true)
	default:
		edgemetrics.Get().RecordLiveMessage(false)
		logger.Log.Warn("Dropping live message, buffer full", "user_id", c.userID)
	}
}

func (c *client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// readPump читает входящие кадры (только control) до ошибки или закрытия
func (c *client) readPump() {
	defer c.stop()

	pongWait := c.pingInterval * 2
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("Live connection read closed", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.writeTimeout))
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}
