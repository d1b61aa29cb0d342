package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
)

// ErrorCodeKey holds the apierr code of a failed request in the gin context.
const ErrorCodeKey = "api_error_code"

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

// MarkAPIError records err on the request for logging and returns its
// apierr mapping. Handlers that write their own error body call it directly.
func MarkAPIError(c *gin.Context, err error) *apierr.Error {
	ae := apierr.From(err)
	_ = c.Error(err)
	c.Set(ErrorCodeKey, ae.Code)
	return ae
}

// RespondAPIError maps err through apierr.From. Internal errors are not
// echoed to the client.
func RespondAPIError(c *gin.Context, err error) {
	ae := MarkAPIError(c, err)
	if ae.Status >= http.StatusInternalServerError && ae.Code == "internal" {
		RespondError(c, ae.Status, ae.Code, nil)
		return
	}
	RespondError(c, ae.Status, ae.Code, ae)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
