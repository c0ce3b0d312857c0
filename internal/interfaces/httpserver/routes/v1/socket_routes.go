package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/listen-api/internal/infrastructure/auth"
	"jan-server/services/listen-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/listen-api/internal/interfaces/httpserver/responses"
)

// RegisterSocketRoutes registers the snapshot push channel.
func RegisterSocketRoutes(router gin.IRoutes, handler *handlers.SocketHandler) {
	router.GET("/rooms/:id/ws", subscribe(handler))
}

// subscribe godoc
// @Summary      Subscribe to room snapshots
// @Description  Upgrades to a websocket that receives the current snapshot and then every new version.
// @Description  Browsers pass the bearer token as the access_token query parameter.
// @Tags         Rooms
// @Param        id path string true "Room ID"
// @Success      101 {string} string "Switching Protocols"
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/ws [get]
func subscribe(handler *handlers.SocketHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		snap, err := handler.Snapshot(c, id)
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		handler.Serve(c, id, auth.UserID(c), snap)
	}
}
