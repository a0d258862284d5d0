package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-livevoice/pkg/hub"
	"github.com/teslashibe/go-livevoice/pkg/i18n"
	"github.com/teslashibe/go-livevoice/pkg/live"
)

// MuteRequest is the body of POST /api/session/mute. Without a body the
// mute state is toggled.
type MuteRequest struct {
	Muted *bool `json:"muted"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(TranscriptView{Turns: s.turns})
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	if s.ctrl == nil {
		return fiber.ErrNotImplemented
	}
	if err := s.ctrl.Start(c.UserContext()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
			"label": s.errorLabel(err),
		})
	}
	return c.JSON(s.Status())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if s.ctrl == nil {
		return fiber.ErrNotImplemented
	}
	if err := s.ctrl.Stop(); err != nil {
		return s.controlError(c, err)
	}
	return c.JSON(s.Status())
}

func (s *Server) handleMute(c *fiber.Ctx) error {
	if s.ctrl == nil {
		return fiber.ErrNotImplemented
	}

	var req MuteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
	}

	var (
		muted bool
		err   error
	)
	if req.Muted == nil {
		muted, err = s.ctrl.ToggleMute()
	} else {
		muted = *req.Muted
		err = s.ctrl.SetMuted(muted)
	}
	if err != nil {
		return s.controlError(c, err)
	}
	return c.JSON(fiber.Map{"muted": muted})
}

func (s *Server) controlError(c *fiber.Ctx, err error) error {
	if errors.Is(err, live.ErrNotStarted) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) errorLabel(err error) string {
	var e *live.Error
	if errors.As(err, &e) {
		return i18n.ErrorText(s.cfg.Lang, e.Kind)
	}
	return i18n.Message(s.cfg.Lang, i18n.KeyError)
}

func (s *Server) handleWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			conn.Close()
			return
		}
		client.Run()
	}
}
