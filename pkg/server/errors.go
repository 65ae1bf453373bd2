package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
	"github.com/ujjwalredd/Axiomeer/pkg/marketplace"
)

// mapError translates a service error into a status code and the message
// shown to the client. Unknown errors are internal.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, marketplace.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "App not found"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "Run not found"
	case errors.Is(err, catalog.ErrExists):
		return http.StatusConflict, "App with this id already exists"
	case errors.Is(err, marketplace.ErrHistoryDisabled):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(RequestIDHeader)),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": msg})
}
