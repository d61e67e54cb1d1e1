package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tapu45/CurioAi-sub001/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
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

// RespondFromError shapes err into the envelope. *apierr.Error values keep
// their status and code; anything else becomes a 500 internal_error.
func RespondFromError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := ae.Code
		if code == "" {
			code = "internal_error"
		}
		RespondError(c, status, code, err)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal_error", err)
}
