// Package server exposes the WebSocket command channel controllers connect
// to, plus status endpoints for dashboards and the operator console.
package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/uzairdeveloper223/DriveDroid/internal/log"
	"github.com/uzairdeveloper223/DriveDroid/pkg/hub"
	"github.com/uzairdeveloper223/DriveDroid/pkg/protocol"
	"github.com/uzairdeveloper223/DriveDroid/pkg/session"
)

// ControllerConnection represents a connected controller app.
type ControllerConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a command back to the controller.
func (c *ControllerConnection) Send(cmd *protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := cmd.Bytes()
	if err != nil {
		return err
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Server manages controller WebSocket connections and feeds their commands
// into the session.
type Server struct {
	app     *fiber.App
	session *session.Session
	status  *hub.Hub

	mu          sync.RWMutex
	controllers map[string]*ControllerConnection

	// Stats
	messagesReceived atomic.Uint64
	messagesDropped  atomic.Uint64
}

// New creates the server over the given session. Status changes are
// broadcast to /ws/status listeners.
func New(sess *session.Session) *Server {
	s := &Server{
		session:     sess,
		controllers: make(map[string]*ControllerConnection),
		status:      hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "DriveDroid Server",
		DisableStartupMessage: true,
	})

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/control", websocket.New(s.handleController))
	s.status.RegisterRoute(app, "/ws/status")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/targets", s.handleTargets)

	sess.OnStatus(func(st session.Status) {
		s.status.BroadcastJSON(st)
	})

	s.app = app
	return s
}

// Listen serves on the given port. Blocks until Shutdown.
func (s *Server) Listen(port string) error {
	go s.status.Run()
	return s.app.Listen(":" + port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ControllerCount returns the number of connected controllers.
func (s *Server) ControllerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.controllers)
}

// handleController handles one controller WebSocket connection for its
// whole lifetime.
func (s *Server) handleController(c *websocket.Conn) {
	id := uuid.NewString()[:8]

	ctrl := &ControllerConnection{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	s.mu.Lock()
	s.controllers[id] = ctrl
	s.mu.Unlock()

	log.Info("controller channel open", "id", id, "remote", c.RemoteAddr())
	s.session.HandleConnect(id)

	defer func() {
		s.mu.Lock()
		delete(s.controllers, id)
		s.mu.Unlock()
		// Connection loss means "center and release", whatever the cause.
		s.session.HandleDisconnect(id)
		log.Info("controller channel closed", "id", id)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("controller read ended", "id", id, "error", err)
			return
		}

		ctrl.mu.Lock()
		ctrl.LastSeen = time.Now()
		ctrl.mu.Unlock()

		s.messagesReceived.Add(1)

		cmd, err := protocol.ParseCommand(data)
		if err != nil {
			s.messagesDropped.Add(1)
			log.Warn("dropping malformed message", "id", id, "error", err)
			continue
		}
		s.session.HandleCommand(cmd)
	}
}

// Stats contains channel statistics.
type Stats struct {
	Controllers      int    `json:"controllers"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesDropped  uint64 `json:"messages_dropped"`
}

// GetStats returns channel statistics.
func (s *Server) GetStats() Stats {
	return Stats{
		Controllers:      s.ControllerCount(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesDropped:  s.messagesDropped.Load(),
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"session": s.session.Status(),
		"channel": s.GetStats(),
	})
}

func (s *Server) handleTargets(c *fiber.Ctx) error {
	targets, err := s.session.ListTargets()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"targets": targets,
		"current": s.session.Target(),
	})
}
