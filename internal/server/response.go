package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dasida/tutor/internal/apperr"
	"github.com/dasida/tutor/internal/turnlock"
)

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// fail maps the error taxonomy onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		respondError(c, http.StatusBadRequest, "invalid_request", err)
	case apperr.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, turnlock.ErrBusy):
		respondError(c, http.StatusConflict, "turn_in_progress", err)
	case apperr.IsGeneration(err):
		s.log.Warn("generation failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusBadGateway, "generation_failed", err)
	default:
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, "internal", errors.New("internal server error"))
	}
}
