package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Inbound message types
const (
	// TypeSelect validates a scanned location code and binds the session to it
	TypeSelect = "select_location"
	// TypeKey carries the scanner buffer as typed so far
	TypeKey = "key"
	// TypeEnter submits the buffer without waiting for the quiet period
	TypeEnter = "enter"
)

// Inbound is a message sent by a terminal
type Inbound struct {
	Type       string    `json:"type"`
	LocationID uuid.UUID `json:"location_id,omitempty"`
	Value      string    `json:"value,omitempty"`
}

// Scanner is the part of the scan service a terminal session drives
type Scanner interface {
	ValidateLocationCode(ctx context.Context, actor stocktakingapp.Actor, locationID uuid.UUID, req stocktakingapp.ValidateLocationRequest) (*stocktakingapp.LocationMetadataResponse, error)
	ScanPallet(ctx context.Context, actor stocktakingapp.Actor, locationID uuid.UUID, req stocktakingapp.ScanPalletRequest) (*stocktakingapp.ScanPalletResponse, error)
}

// Config tunes the session handler
type Config struct {
	Debounce     time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
	// AllowedOrigins empty accepts any origin
	AllowedOrigins []string
}

// Handler upgrades /ws/scan requests into scan sessions
type Handler struct {
	hub      *Hub
	scanner  Scanner
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(hub *Hub, scanner Scanner, cfg Config, logger *zap.Logger) *Handler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = stocktakingapp.DefaultScanDebounce
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = 2 * cfg.PingInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{hub: hub, scanner: scanner, cfg: cfg, logger: logger}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Serve runs one terminal session. It expects JWT claims on the context.
// GET /ws/scan
func (h *Handler) Serve(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	userID, err := claims.UserUUID()
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, userID: userID, roles: claims.Roles}
	s := &session{
		handler: h,
		client:  cl,
		actor:   stocktakingapp.Actor{UserID: userID, Roles: claims.Roles},
	}
	s.run(context.WithoutCancel(c.Request.Context()))
}

// session is the state of one connected terminal
type session struct {
	handler *Handler
	client  *client
	actor   stocktakingapp.Actor

	mu       sync.Mutex
	location uuid.UUID
}

func (s *session) run(parent context.Context) {
	h := s.handler
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	h.hub.register(s.client)
	defer h.hub.unregister(s.client)

	input := stocktakingapp.NewScanInput(h.cfg.Debounce, func(barcode string) {
		s.scan(ctx, barcode)
	})
	defer func() { input.Stop() }()

	conn := s.client.conn
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})
	go s.keepAlive(ctx)

	if err := s.client.send(Outbound{Type: TypeReady, Data: map[string]string{
		"user_id": s.actor.UserID.String(),
	}}); err != nil {
		return
	}

	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("ws read failed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case TypeSelect:
			// a new location discards whatever was typed for the old one
			input.Stop()
			input = stocktakingapp.NewScanInput(h.cfg.Debounce, func(barcode string) {
				s.scan(ctx, barcode)
			})
			s.selectLocation(ctx, msg)
		case TypeKey:
			input.Type(msg.Value)
		case TypeEnter:
			input.Flush()
		default:
			s.fail(shared.Validation("Unknown message type %q", msg.Type))
		}
	}
}

func (s *session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.handler.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.client.ping(); err != nil {
				return
			}
		}
	}
}

func (s *session) selectLocation(ctx context.Context, msg Inbound) {
	if msg.LocationID == uuid.Nil {
		s.fail(shared.Validation("location_id is required"))
		return
	}
	meta, err := s.handler.scanner.ValidateLocationCode(ctx, s.actor, msg.LocationID,
		stocktakingapp.ValidateLocationRequest{Code: msg.Value})
	if err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	s.location = msg.LocationID
	s.mu.Unlock()
	_ = s.client.send(Outbound{Type: TypeLocation, Data: meta})
}

// scan runs on the debouncer's goroutine
func (s *session) scan(ctx context.Context, barcode string) {
	s.mu.Lock()
	location := s.location
	s.mu.Unlock()
	if location == uuid.Nil {
		s.fail(shared.Validation("Scan a location before scanning pallets"))
		return
	}

	result, err := s.handler.scanner.ScanPallet(ctx, s.actor, location,
		stocktakingapp.ScanPalletRequest{Barcode: barcode})
	if err != nil {
		s.fail(err)
		return
	}
	_ = s.client.send(Outbound{Type: TypeScanResult, Data: result})
}

func (s *session) fail(err error) {
	payload := &ErrorPayload{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		payload = &ErrorPayload{Code: domainErr.Code, Message: domainErr.Message}
	} else {
		s.handler.logger.Error("ws scan failed",
			zap.String("user_id", s.actor.UserID.String()),
			zap.Error(err),
		)
	}
	_ = s.client.send(Outbound{Type: TypeError, Error: payload})
}
