package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jan-server/services/listen-api/internal/infrastructure/auth"
	"jan-server/services/listen-api/internal/interfaces/httpserver/handlers"
	roomreq "jan-server/services/listen-api/internal/interfaces/httpserver/requests/room"
	"jan-server/services/listen-api/internal/interfaces/httpserver/responses"
	roomres "jan-server/services/listen-api/internal/interfaces/httpserver/responses/room"
)

// RegisterPresenceRoutes registers join, heartbeat and leave.
func RegisterPresenceRoutes(router gin.IRoutes, handler *handlers.RoomHandler) {
	router.POST("/rooms/:id/presence", joinRoom(handler))
	router.POST("/rooms/:id/presence/heartbeat", heartbeat(handler))
	router.DELETE("/rooms/:id/presence", leaveRoom(handler))
	router.GET("/rooms/:id/presence", listPresence(handler))
}

// joinRoom godoc
// @Summary      Join a room
// @Description  Marks the caller present. During a live broadcast the caller's listener leg is connected first.
// @Tags         Presence
// @Accept       json
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        request body roomreq.JoinRequest false "Display metadata"
// @Success      200 {object} roomres.MutationResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/presence [post]
func joinRoom(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomreq.JoinRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			responses.HandleBindError(c, err)
			return
		}

		res, err := handler.Join(c.Request.Context(), c.Param("id"), auth.UserID(c), req.ToMeta(auth.DisplayName(c)))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// heartbeat godoc
// @Summary      Refresh presence
// @Description  Keeps the caller present. Does not bump the room version.
// @Tags         Presence
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} roomres.MutationResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/presence/heartbeat [post]
func heartbeat(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := handler.Heartbeat(c.Request.Context(), c.Param("id"), auth.UserID(c))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// leaveRoom godoc
// @Summary      Leave a room
// @Tags         Presence
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} roomres.MutationResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/presence [delete]
func leaveRoom(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := handler.Leave(c.Request.Context(), c.Param("id"), auth.UserID(c))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// listPresence godoc
// @Summary      List present identities
// @Tags         Presence
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} roomres.PresenceResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/presence [get]
func listPresence(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		entries, err := handler.ListPresence(c.Request.Context(), id)
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewPresenceResponse(id, entries))
	}
}
