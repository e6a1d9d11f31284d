package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"walletd/internal/metrics"
	"walletd/internal/models"
	"walletd/internal/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	pushWriteWait  = 10 * time.Second
	pushPongWait   = 60 * time.Second
	pushPingPeriod = 54 * time.Second
	pushSendBuffer = 256
)

// Push message types
const (
	PushTypeConnectionEstablished = "connection_established"
	PushTypeTransferResult        = "transfer_result"
	PushTypeSessionLocked         = "session_locked"
	PushTypeNetworkPulse          = "network_pulse"
)

// WebSocket Upgrader, the router only serves loopback clients
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection information
type Connection struct {
	ID       string          `json:"id"`
	Address  string          `json:"address,omitempty"` // empty receives every message
	Conn     *websocket.Conn `json:"-"`
	Send     chan []byte     `json:"-"`
	LastPing time.Time       `json:"last_ping"`
}

// PushMessage base structure
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Addresses []string    `json:"-"` // recipients by watched address, empty means broadcast
	Data      interface{} `json:"data"`
}

// WebSocketPushService fans applied transfer results out to local clients
type WebSocketPushService struct {
	connections map[string]*Connection // key: connectionID
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	logger      *logrus.Logger
}

func NewWebSocketPushService(logger *logrus.Logger) *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		hub:         make(chan PushMessage, pushSendBuffer),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
		logger:      logger,
	}

	go service.run()
	return service
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)

		case conn := <-s.unregister:
			s.handleUnregister(conn)

		case message := <-s.hub:
			s.handleBroadcast(message)

		case <-s.done:
			s.closeAll()
			return
		}
	}
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	s.connections[conn.ID] = conn
	s.mutex.Unlock()
	metrics.WebSocketConnections.Inc()

	s.logger.WithFields(logrus.Fields{
		"conn_id": conn.ID,
		"address": conn.Address,
	}).Info("📱 [WebSocketPush] connection registered")

	s.sendToConnection(conn, s.newMessage(PushTypeConnectionEstablished, nil, map[string]interface{}{
		"connection_id": conn.ID,
		"address":       conn.Address,
	}))
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	_, exists := s.connections[conn.ID]
	delete(s.connections, conn.ID)
	s.mutex.Unlock()
	if !exists {
		return
	}

	metrics.WebSocketConnections.Dec()
	close(conn.Send)
	if conn.Conn != nil {
		conn.Conn.Close()
	}
	s.logger.WithField("conn_id", conn.ID).Info("📱 [WebSocketPush] connection unregistered")
}

func (s *WebSocketPushService) closeAll() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id, conn := range s.connections {
		close(conn.Send)
		delete(s.connections, id)
		metrics.WebSocketConnections.Dec()
	}
}

func (s *WebSocketPushService) handleBroadcast(message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.WithError(err).Error("❌ [WebSocketPush] failed to marshal message")
		return
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sent, dropped := 0, 0
	for _, conn := range s.connections {
		if !wantsMessage(conn, message) {
			continue
		}
		select {
		case conn.Send <- data:
			sent++
		default:
			dropped++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"type":       message.Type,
		"message_id": message.MessageID,
		"sent":       sent,
		"dropped":    dropped,
	}).Debug("📤 [WebSocketPush] message delivered")
}

func wantsMessage(conn *Connection, message PushMessage) bool {
	if conn.Address == "" || len(message.Addresses) == 0 {
		return true
	}
	for _, addr := range message.Addresses {
		if utils.SameAddress(conn.Address, addr) {
			return true
		}
	}
	return false
}

func (s *WebSocketPushService) sendToConnection(conn *Connection, message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.WithError(err).Error("❌ [WebSocketPush] failed to marshal message")
		return
	}
	select {
	case conn.Send <- data:
	default:
		s.logger.WithField("conn_id", conn.ID).Warn("⚠️ [WebSocketPush] send buffer full")
	}
}

func (s *WebSocketPushService) newMessage(kind string, addresses []string, data interface{}) PushMessage {
	return PushMessage{
		Type:      kind,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.NewString(),
		Addresses: addresses,
		Data:      data,
	}
}

func (s *WebSocketPushService) enqueue(message PushMessage) {
	select {
	case s.hub <- message:
	case <-s.done:
	}
}

// HandleWebSocket upgrades the request. address filters pushes to one wallet, empty receives all.
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request, address string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("❌ [WebSocketPush] upgrade failed")
		return
	}

	connection := &Connection{
		ID:       uuid.NewString(),
		Address:  address,
		Conn:     conn,
		Send:     make(chan []byte, pushSendBuffer),
		LastPing: time.Now(),
	}

	select {
	case s.register <- connection:
	case <-s.done:
		conn.Close()
		return
	}

	go s.handleConnectionWrite(connection)
	go s.handleConnectionRead(connection)
}

func (s *WebSocketPushService) handleConnectionWrite(conn *Connection) {
	ticker := time.NewTicker(pushPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.WithError(err).WithField("conn_id", conn.ID).Warn("❌ [WebSocketPush] write failed")
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleConnectionRead only services control frames, clients never send data
func (s *WebSocketPushService) handleConnectionRead(conn *Connection) {
	defer func() {
		select {
		case s.unregister <- conn:
		case <-s.done:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(pushPongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pushPongWait))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Warn("❌ [WebSocketPush] read error")
			}
			return
		}
	}
}

// PushTransferResult delivers an applied result to clients watching the sender or the recipient
func (s *WebSocketPushService) PushTransferResult(result *models.TransferResult) {
	s.enqueue(s.newMessage(PushTypeTransferResult, []string{result.From, result.To}, result))
}

// PushSessionLocked tells every client the vault is locked
func (s *WebSocketPushService) PushSessionLocked() {
	s.enqueue(s.newMessage(PushTypeSessionLocked, nil, map[string]interface{}{"unlocked": false}))
}

// PushNetworkPulse broadcasts the latest block and fee levels
func (s *WebSocketPushService) PushNetworkPulse(pulse models.NetworkPulse) {
	s.enqueue(s.newMessage(PushTypeNetworkPulse, nil, pulse))
}

// GetActiveConnections current connection count
func (s *WebSocketPushService) GetActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}

// Close stops the hub and closes every connection
func (s *WebSocketPushService) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
