package mockapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the JSON response for the health check endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Version is reported by /health. It is set by the CLI from build info.
var Version = "dev"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}
