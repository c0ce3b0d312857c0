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

// RegisterQueueRoutes registers queue and queued playback routes.
func RegisterQueueRoutes(router gin.IRoutes, handler *handlers.RoomHandler) {
	router.POST("/rooms/:id/queue", enqueue(handler))
	router.DELETE("/rooms/:id/queue/:entryId", removeEntry(handler))
	router.POST("/rooms/:id/queue/skip", skip(handler))
	router.POST("/rooms/:id/queue/start", startQueue(handler))
	router.POST("/rooms/:id/track-ended", trackEnded(handler))
	router.POST("/rooms/:id/playback", setPlaying(handler))
}

// enqueue godoc
// @Summary      Add a track to the queue
// @Description  Owner only. Starts playback immediately when the room is idle.
// @Tags         Queue
// @Accept       json
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        request body roomreq.EnqueueRequest true "Track"
// @Success      200 {object} roomres.MutationResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/queue [post]
func enqueue(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomreq.EnqueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleBindError(c, err)
			return
		}

		res, err := handler.Enqueue(c.Request.Context(), c.Param("id"), auth.UserID(c), req.ToDomain())
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// removeEntry godoc
// @Summary      Remove a queued track
// @Description  Owner only. The current track cannot be removed; skip it instead.
// @Tags         Queue
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        entryId path string true "Queue entry ID"
// @Success      200 {object} roomres.MutationResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/queue/{entryId} [delete]
func removeEntry(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := handler.RemoveEntry(c.Request.Context(), c.Param("id"), auth.UserID(c), c.Param("entryId"))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// skip godoc
// @Summary      Skip the current track
// @Description  Owner only. With a marker the skip only applies if that track is still current, so repeated skips advance once. Without a marker the skip is unconditional.
// @Tags         Queue
// @Accept       json
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        request body roomreq.SkipRequest false "Observed track"
// @Success      200 {object} roomres.MutationResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/queue/skip [post]
func skip(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomreq.SkipRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			responses.HandleBindError(c, err)
			return
		}

		res, err := handler.Skip(c.Request.Context(), c.Param("id"), auth.UserID(c), req.Marker())
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// startQueue godoc
// @Summary      Resume queued playback
// @Description  Owner only. Starts the next queued track from idle.
// @Tags         Queue
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} roomres.MutationResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/queue/start [post]
func startQueue(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := handler.StartQueue(c.Request.Context(), c.Param("id"), auth.UserID(c))
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// trackEnded godoc
// @Summary      Report the end of the current track
// @Description  Any present listener may report. Stale or early reports return applied=false.
// @Tags         Queue
// @Accept       json
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        request body roomreq.MarkerRequest true "Observed track"
// @Success      200 {object} roomres.MutationResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/track-ended [post]
func trackEnded(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomreq.MarkerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleBindError(c, err)
			return
		}

		res, err := handler.TrackEnded(c.Request.Context(), c.Param("id"), auth.UserID(c), req.ToDomain())
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}

// setPlaying godoc
// @Summary      Pause or resume the current track
// @Tags         Queue
// @Accept       json
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        request body roomreq.PlaybackRequest true "Playback"
// @Success      200 {object} roomres.MutationResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/playback [post]
func setPlaying(handler *handlers.RoomHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomreq.PlaybackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleBindError(c, err)
			return
		}

		res, err := handler.SetPlaying(c.Request.Context(), c.Param("id"), auth.UserID(c), *req.Playing)
		if err != nil {
			responses.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, roomres.NewMutationResponse(res))
	}
}
