package handlers

import (
	"context"
	"log"

	"artchat-backend/internal/models"
	"artchat-backend/internal/services"
	"artchat-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebSocketHandler handles the websocket connection
func WebSocketHandler(gw *Gateway) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		// Retrieve user info from locals (set by middleware)
		userID := c.Locals("user_id").(int)
		username, _ := c.Locals("username").(string)

		// Generate a unique ID for this connection
		connID := uuid.New().String()

		cameOnline := gw.Rooms.RegisterConnection(connID, userID, username, c)
		// Every connection belongs to its user's room from the start so
		// cross-device events (refresh_chats) reach it without an explicit
		// join_user_room.
		gw.Rooms.Join(UserRoom(userID), connID)
		if cameOnline {
			gw.announcePresence(gw.Presence.MarkOnline(context.Background(), userID))
		}

		// Cleanup must run no matter how the read loop exits: presence and
		// room membership is corrected even on abrupt network failures.
		// Online/offline is decided per instance: a user connected to two
		// gateway processes can be announced offline when the last local
		// connection drops, until their next connect corrects the record.
		defer func() {
			wentOffline := gw.Rooms.UnregisterConnection(connID)
			if wentOffline {
				gw.announcePresence(gw.Presence.MarkOffline(context.Background(), userID))
			}
			c.Close()
		}()

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("error: %v", err)
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}

			gw.HandleEvent(c, connID, userID, msg)
		}
	})
}

// announcePresence broadcasts a user_status_update for an actual transition.
func (g *Gateway) announcePresence(rec *models.PresenceRecord, changed bool, err error) {
	if err != nil {
		utils.LogError(err, "Presence")
		return
	}
	if !changed {
		return
	}
	g.Rooms.BroadcastToAll(map[string]interface{}{
		"event":    "user_status_update",
		"userId":   rec.UserID,
		"status":   rec.Status,
		"lastSeen": rec.LastSeen,
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT token before upgrading
func AuthMiddleware(c *fiber.Ctx) error {
	// Get token from query param `access_token` or Authorization header
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}

	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	// Store user info in locals
	// claims["user_id"] comes as float64 from JSON
	if uid, ok := claims["user_id"].(float64); ok {
		c.Locals("user_id", int(uid))
	} else {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}

	if u, ok := claims["username"].(string); ok {
		c.Locals("username", u)
	}

	return c.Next()
}
