package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"jan-server/services/listen-api/internal/infrastructure/auth"
	"jan-server/services/listen-api/internal/interfaces/httpserver/handlers"
	roomreq "jan-server/services/listen-api/internal/interfaces/httpserver/requests/room"
	"jan-server/services/listen-api/internal/interfaces/httpserver/responses"
	roomres "jan-server/services/listen-api/internal/interfaces/httpserver/responses/room"
)

// RegisterRoomRoutes registers the room lifecycle routes.
func RegisterRoomRoutes(router gin.IRoutes, handler *handlers.RoomHandler) {
	router.POST("/rooms", createRoom(handler))
	router.GET("/rooms", listRooms(handler))
	router.GET("/rooms/:id", getRoom(handler))
	router.DELETE("/rooms/:id", deleteRoom(handler))
}

// createRoom godoc
// @Summary      Create a listening room
// @Description  Creates a room owned by the caller. The id is generated when omitted.
// @Tags         Rooms
// @Accept       json
// @Produce      json
// @Param        request body roomreq.CreateRoomRequest false "Room"
// @Success      201 {object} room.Snapshot
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms [post]
func createRoom(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomreq.CreateRoomRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			responses.HandleBindError(c, err)
			return
		}

		snap, err := handler.CreateRoom(c.Request.Context(), auth.UserID(c), req.ToDomain())
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusCreated, snap)
	}
}

// listRooms godoc
// @Summary      List listening rooms
// @Tags         Rooms
// @Produce      json
// @Success      200 {object} roomres.ListRoomsResponse
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms [get]
func listRooms(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		snaps, err := handler.ListRooms(c.Request.Context())
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewListRoomsResponse(snaps))
	}
}

// getRoom godoc
// @Summary      Get a room snapshot
// @Description  Returns the authoritative state of a room stamped with the server time.
// @Tags         Rooms
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} room.Snapshot
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id} [get]
func getRoom(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := handler.GetRoom(c.Request.Context(), c.Param("id"))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, snap)
	}
}

// deleteRoom godoc
// @Summary      Delete a room
// @Description  Owner only. A live broadcast is stopped first.
// @Tags         Rooms
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} roomres.DeleteRoomResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id} [delete]
func deleteRoom(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := handler.DeleteRoom(c.Request.Context(), id, auth.UserID(c)); err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewDeleteRoomResponse(id))
	}
}

// bindOptionalJSON binds the body into obj; an empty body is accepted.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
