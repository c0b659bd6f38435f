// Package server exposes the voice assistant over HTTP: a websocket endpoint
// for live conversation sessions, a credential update endpoint, and a
// one-shot audio upload endpoint.
package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Priya-Diwakar/nova-voice-assistant/internal/config"
)

type Server struct {
	app  *fiber.App
	keys *config.Store

	staticDir string
}

type Option func(*Server)

// WithStaticDir sets the directory served at the root path.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.staticDir = dir
		}
	}
}

func New(keys *config.Store, opts ...Option) *Server {
	server := &Server{
		keys:      keys,
		staticDir: "./static",
	}
	for _, opt := range opts {
		opt(server)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	server.app = app

	app.Static("/", server.staticDir)
	app.Post("/set-keys", server.handleSetKeys)
	app.Post("/upload-audio", server.handleUploadAudio)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(server.handleSession))

	return server
}

// Listen blocks serving on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
