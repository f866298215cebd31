package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/config"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by the CORS middleware
	},
}

// StatusSource produces snapshots to push
type StatusSource interface {
	Status() simulation.Snapshot
}

// Message is the envelope of every frame in both directions
type Message struct {
	Type       string               `json:"type"`
	ClientID   string               `json:"clientId,omitempty"`
	Message    string               `json:"message,omitempty"`
	IntervalMs int64                `json:"intervalMs,omitempty"`
	Data       *simulation.Snapshot `json:"data,omitempty"`
	Timestamp  int64                `json:"timestamp,omitempty"`
}

// Handler streams engine snapshots over WebSocket
type Handler struct {
	source  StatusSource
	cfg     config.StreamConfig
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(source StatusSource, cfg config.StreamConfig, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		source:  source,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleConnection upgrades the request and pushes a snapshot every push
// interval. The interval starts at the session's simulation speed; clients may
// override it or ask for an immediate snapshot.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	log := h.logger.With(zap.String("client", clientID))
	log.Debug("Stream client connected")

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	done := make(chan struct{})
	defer close(done)

	requests := make(chan Message, 8)
	go h.readLoop(conn, requests, done)

	if err := h.send(conn, Message{Type: "system", ClientID: clientID, Message: "Connected to ringsim stream"}); err != nil {
		return
	}

	interval := h.cfg.Clamp(time.Duration(h.source.Status().Settings.SimulationSpeedMs) * time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case <-ticker.C:
			if err := h.sendSnapshot(conn); err != nil {
				log.Debug("Stream write failed", zap.Error(err))
				return
			}

		case msg, ok := <-requests:
			if !ok {
				log.Debug("Stream client disconnected")
				return
			}

			var err error
			switch msg.Type {
			case "ping":
				err = h.send(conn, Message{Type: "pong"})
			case "status":
				err = h.sendSnapshot(conn)
			case "interval":
				interval = h.cfg.Clamp(time.Duration(msg.IntervalMs) * time.Millisecond)
				ticker.Reset(interval)
				err = h.send(conn, Message{Type: "interval", IntervalMs: interval.Milliseconds()})
			default:
				err = h.sendError(conn, "unknown message type")
			}
			if err != nil {
				log.Debug("Stream write failed", zap.Error(err))
				return
			}
		}
	}
}

// readLoop decodes client frames until the connection fails, then closes out
func (h *Handler) readLoop(conn *websocket.Conn, out chan<- Message, done <-chan struct{}) {
	defer close(out)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.record("in", "frame")

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			msg = Message{Type: "invalid"}
		}
		select {
		case out <- msg:
		case <-done:
			return
		}
	}
}

func (h *Handler) sendSnapshot(conn *websocket.Conn) error {
	snap := h.source.Status()
	return h.send(conn, Message{Type: "snapshot", Data: &snap})
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	msg.Timestamp = time.Now().UnixMilli()

	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}

	if h.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	h.record("out", msg.Type)
	return nil
}

func (h *Handler) sendError(conn *websocket.Conn, text string) error {
	return h.send(conn, Message{Type: "error", Message: text})
}

func (h *Handler) record(direction, kind string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, kind)
	}
}
