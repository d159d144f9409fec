package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error is the error payload of a failed response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeConflict      = "DUPLICATE_RESOURCE"
)

// Handle maps err onto the appropriate response, sending data on success.
func Handle(c *gin.Context, data interface{}, err error) {
	switch {
	case err == nil:
		Success(c, data)
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response; POSTs return 201.
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}
	c.JSON(status, Response{Success: true, Data: data})
}

func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, ErrCodeNotFound, message)
}

func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func InternalError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

func Conflict(c *gin.Context, message string) {
	fail(c, http.StatusConflict, ErrCodeConflict, message)
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   &Error{Code: code, Message: message},
	})
}
