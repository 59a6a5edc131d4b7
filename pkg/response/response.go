package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhive/backend/internal/apperr"
)

// Body is the standard API response envelope. Code holds the stable error
// kind on failures so clients can match without parsing the message.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Code: string(apperr.KindInvalidArgument), Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Code: "unauthorized", Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Code: string(apperr.KindForbidden), Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Code: string(apperr.KindNotFound), Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Code: string(apperr.KindConflict), Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Code: string(apperr.KindResourceExhausted), Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Code: "internal", Error: err})
}

// Error maps a service error to its HTTP status by apperr kind. Errors
// without a kind become 500 with a generic message.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		Internal(c, "internal error")
		return
	}
	c.JSON(status, Body{Success: false, Code: string(kind), Error: errMessage(err)})
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindInvalidState:      http.StatusConflict,
	apperr.KindInvalidArgument:   http.StatusBadRequest,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindResourceExhausted: http.StatusServiceUnavailable,
}

func errMessage(err error) string {
	if e, ok := err.(*apperr.Error); ok {
		return e.Message
	}
	return err.Error()
}
