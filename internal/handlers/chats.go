package handlers

import (
	"errors"
	"net/http"

	"artchat-backend/internal/models"
	"artchat-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CreateChatHandler finds or creates the chat between the authenticated user
// and the given receiver.
func CreateChatHandler(directory services.Directory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		var req models.CreateChatRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.ReceiverID == 0 {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Receiver ID required"})
		}

		chat, isNew, err := directory.FindOrCreate(c.Context(), userID, req.ReceiverID)
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid participant pair"})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		status := http.StatusOK
		if isNew {
			status = http.StatusCreated
		}
		return c.Status(status).JSON(chat)
	}
}

// ListChatsHandler returns the authenticated user's chat summaries, newest
// activity first.
func ListChatsHandler(directory services.Directory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		chats, err := directory.ListForUser(c.Context(), userID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch chats"})
		}
		if chats == nil {
			chats = []models.ChatSummary{}
		}
		return c.JSON(chats)
	}
}

// GetChatHandler returns a single chat with both participants' profiles.
// Only participants may read it.
func GetChatHandler(directory services.Directory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)
		chatID := c.Params("chat_id")

		chat, err := directory.GetByID(c.Context(), chatID, userID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrForbidden) {
				return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "chat not found"})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(chat)
	}
}
