// Package health exposes liveness and readiness probes.
package health

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// Handler serves the health check endpoints.
type Handler struct {
	uploadDir string
}

// NewHandler creates a health handler that treats the upload directory as
// the one external dependency worth probing.
func NewHandler(uploadDir string) *Handler {
	return &Handler{uploadDir: uploadDir}
}

// Liveness reports that the process is running.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness reports whether the server can take traffic. Uploads land on
// local disk, so a missing or unwritable upload directory means not ready.
func (h *Handler) Readiness(c *gin.Context) {
	info, err := os.Stat(h.uploadDir)
	if err != nil || !info.IsDir() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "upload directory unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
