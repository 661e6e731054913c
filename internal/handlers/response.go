package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
	"github.com/deckforge/deckforge-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondMappedError classifies pipeline errors into the API error shape:
// auth problems come back 401, rate limiting 502 (upstream exhausted its
// retries), anything carrying an apierr keeps its own status.
func RespondMappedError(c *gin.Context, err error) {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
		RespondError(c, ae.Status, ae.Code, err)
	case errors.Is(err, anthropic.ErrAuth):
		RespondError(c, http.StatusUnauthorized, "llm_auth", err)
	case errors.Is(err, anthropic.ErrRateLimited):
		RespondError(c, http.StatusBadGateway, "llm_rate_limited", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
