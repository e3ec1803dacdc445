package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/handsfree/pkg/controller"
	"github.com/teslashibe/handsfree/pkg/hub"
)

// SpeakRequest is the body of POST /api/speak.
type SpeakRequest struct {
	Text string `json:"text"`
	Wait bool   `json:"wait"`
}

// ConfigRequest is the body of PATCH /api/config.
type ConfigRequest struct {
	AutoStart       *bool   `json:"auto_start"`
	Language        *string `json:"language"`
	ProvideFeedback *bool   `json:"provide_feedback"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	s.ctrl.Start()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.ctrl.Stop()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req SpeakRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "text is required")
	}

	done := s.ctrl.Speak(req.Text)
	s.Record(hub.TypeSpeech, req.Text)
	if !req.Wait {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
	}

	select {
	case outcome := <-done:
		return c.JSON(fiber.Map{"outcome": outcome})
	case <-time.After(s.speakTimeout):
		return errorJSON(c, fiber.StatusGatewayTimeout, "speech did not finish in time")
	}
}

func (s *Server) handleConfig(c *fiber.Ctx) error {
	var req ConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid body")
	}
	if req.Language != nil && strings.TrimSpace(*req.Language) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "language must not be empty")
	}

	s.ctrl.UpdateConfig(controller.Patch{
		AutoStart:       req.AutoStart,
		Language:        req.Language,
		ProvideFeedback: req.ProvideFeedback,
	})
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

func (s *Server) handleActivity(c *fiber.Ctx) error {
	s.activityMu.RLock()
	defer s.activityMu.RUnlock()
	return c.JSON(s.activity)
}

func (s *Server) handleBridge(c *fiber.Ctx) error {
	return c.JSON(s.bridge.Info())
}
