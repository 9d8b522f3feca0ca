package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studysprint/studysprint-backend/internal/domain"
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

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps the sentinel errors onto their HTTP shape.
func RespondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, domain.ErrConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	case errors.Is(err, domain.ErrInvalidState):
		RespondError(c, http.StatusConflict, "invalid_state", err)
	case domain.IsStorageError(err):
		RespondError(c, http.StatusInternalServerError, "storage_failed", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
