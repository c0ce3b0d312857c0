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

// RegisterLiveRoutes registers live broadcast and transport credential routes.
func RegisterLiveRoutes(router gin.IRoutes, handler *handlers.RoomHandler) {
	router.POST("/rooms/:id/live", startLive(handler))
	router.DELETE("/rooms/:id/live", stopLive(handler))
	router.GET("/rooms/:id/transport", transportCredential(handler))
}

// startLive godoc
// @Summary      Start a live broadcast
// @Description  Owner only. Connects the owner as publisher and every present listener before switching modes.
// @Description  Returns the publisher credential. Nothing changes when the audio relay fails.
// @Tags         Live
// @Accept       json
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        request body roomreq.StartLiveRequest true "Broadcast"
// @Success      200 {object} roomres.LiveResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/live [post]
func startLive(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomreq.StartLiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleBindError(c, err)
			return
		}

		res, cred, err := handler.StartLive(c.Request.Context(), c.Param("id"), auth.UserID(c), req.ToDomain(auth.DisplayName(c)))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewLiveResponse(res, cred))
	}
}

// stopLive godoc
// @Summary      Stop the live broadcast
// @Description  Owner only. Every transport leg is closed before the room returns to idle.
// @Tags         Live
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} roomres.MutationResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/live [delete]
func stopLive(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := handler.StopLive(c.Request.Context(), c.Param("id"), auth.UserID(c))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// transportCredential godoc
// @Summary      Get the caller's transport credential
// @Tags         Live
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} roomres.CredentialResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/transport [get]
func transportCredential(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := handler.TransportCredential(c.Request.Context(), c.Param("id"), auth.UserID(c))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewCredentialResponse(cred))
	}
}
