package delivery

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/domain"
	mongostore "github.com/huynd94/system-live-chat/internal/infrastructure/mongo"
)

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	filter := mongostore.ConversationFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   int64(c.QueryInt("page", 1)),
		Limit:  int64(c.QueryInt("limit", 20)),
	}
	if filter.Status != "" &&
		filter.Status != domain.StatusWaiting &&
		filter.Status != domain.StatusActive &&
		filter.Status != domain.StatusClosed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid status filter",
		})
	}

	conversations, total, err := s.store.List(c.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list conversations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"conversations": conversations,
			"pagination": fiber.Map{
				"current":      filter.Page,
				"count":        len(conversations),
				"totalRecords": total,
			},
		},
	})
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	conversation, err := s.store.Find(c.Context(), c.Params("conversation_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Conversation not found",
			})
		}
		s.logger.Error("failed to load conversation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"conversation": conversation},
	})
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	messages, total, err := s.store.ListMessages(c.Context(),
		c.Params("conversation_id"),
		int64(c.QueryInt("page", 1)),
		int64(c.QueryInt("limit", 50)))
	if err != nil {
		s.logger.Error("failed to list messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"messages": messages,
			"pagination": fiber.Map{
				"count":        len(messages),
				"totalRecords": total,
			},
		},
	})
}

// handleConnectionStatus is the dashboard's live-presence read path,
// backed by the Redis mirror.
func (s *Server) handleConnectionStatus(c *fiber.Ctx) error {
	status, err := s.redis.GetConversationUsers(c.Context(), c.Params("conversation_id"))
	if err != nil {
		s.logger.Error("failed to read connection status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to get connection status",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    status,
	})
}

// handleAssign routes through the lifecycle service so assignment
// exclusivity holds across REST and websocket callers.
func (s *Server) handleAssign(c *fiber.Ctx) error {
	agent := s.agentFromCtx(c)

	conversation, err := s.lifecycle.Assign(c.Context(), c.Params("conversation_id"), agent.ID)
	if err != nil {
		return s.conversationError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"conversation": conversation},
	})
}

func (s *Server) handleClose(c *fiber.Ctx) error {
	agent := s.agentFromCtx(c)

	conversation, err := s.lifecycle.Close(c.Context(), c.Params("conversation_id"), agent.ID)
	if err != nil {
		return s.conversationError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"conversation": conversation},
	})
}

func (s *Server) conversationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Conversation not found",
		})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Conversation already assigned to another agent",
		})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Only the assigned agent may do this",
		})
	case errors.Is(err, domain.ErrClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Conversation is closed",
		})
	default:
		s.logger.Error("conversation operation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal error",
		})
	}
}
