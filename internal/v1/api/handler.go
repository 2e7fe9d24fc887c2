// Package api exposes the request/response surface: room minting and room
// lookup. Joining happens over the duplex channel; this is the only way
// rooms come to exist.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/huddlekit/huddle/internal/v1/room"
	"go.uber.org/zap"
)

// Handler serves the room creation and lookup endpoints.
type Handler struct {
	registry *room.Registry
}

// NewHandler wires the handler to the registry.
func NewHandler(registry *room.Registry) *Handler {
	return &Handler{registry: registry}
}

type createRoomRequest struct {
	HostID string `json:"hostId"`
}

// CreateRoom mints a fresh room code and registers an empty room.
// The optional hostId is advisory; the host role is assigned to the first
// participant that joins over the duplex channel.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	code, err := h.registry.Mint()
	if err != nil {
		logging.Error(c.Request.Context(), "failed to mint room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	if req.HostID != "" {
		logging.Info(c.Request.Context(), "room created for host",
			zap.String("roomId", code), zap.String("hostId", req.HostID))
	}

	c.JSON(http.StatusOK, gin.H{"roomId": code, "success": true})
}

// GetRoom reports whether a room exists and how many participants it has.
func (h *Handler) GetRoom(c *gin.Context) {
	r, ok := h.registry.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roomId":           r.Code,
		"participantCount": r.Size(),
		"exists":           true,
	})
}
