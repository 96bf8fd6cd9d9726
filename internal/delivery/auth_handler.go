package delivery

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/domain"
)

const agentLocal = "agent"

// requireAgent validates the bearer token and stashes the agent on the
// request context.
func (s *Server) requireAgent(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if header == "" || token == header {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Missing bearer token",
		})
	}

	agent, err := s.authenticator.Authenticate(c.Context(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid token",
		})
	}

	c.Locals(agentLocal, agent)
	return c.Next()
}

func (s *Server) agentFromCtx(c *fiber.Ctx) *domain.Agent {
	agent, _ := c.Locals(agentLocal).(*domain.Agent)
	return agent
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Email and password are required",
		})
	}

	agent, token, err := s.authenticator.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid email or password",
			})
		}
		s.logger.Error("login failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal error",
		})
	}

	if err := s.store.SetOnline(c.Context(), agent.ID, true); err != nil {
		s.logger.Warn("failed to mark agent online on login", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"token": token,
			"agent": agent,
		},
	})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	agent := s.agentFromCtx(c)

	if err := s.store.SetOnline(c.Context(), agent.ID, false); err != nil {
		s.logger.Warn("failed to mark agent offline on logout", zap.Error(err))
	}
	if err := s.redis.SetAgentOnline(c.Context(), agent.ID, false); err != nil {
		s.logger.Warn("failed to mirror agent offline on logout", zap.Error(err))
	}

	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"agent": s.agentFromCtx(c)},
	})
}

type updateProfileRequest struct {
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	agent := s.agentFromCtx(c)

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	stored, err := s.store.FindByID(c.Context(), agent.ID)
	if err != nil {
		s.logger.Error("failed to load agent for profile update", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal error",
		})
	}

	if req.Name != "" {
		stored.Name = req.Name
	}
	if req.Avatar != nil {
		stored.Avatar = *req.Avatar
	}

	if err := s.store.SaveAgent(c.Context(), stored); err != nil {
		s.logger.Error("failed to save agent profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"agent": stored},
	})
}
