package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response represents a standard API response
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page wraps a listing with its item count
type Page struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// List sends a successful listing of count items
func List(c *gin.Context, items interface{}, count int) {
	Success(c, Page{Data: items, Count: count})
}

// Error sends an error response
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// Abort sends an error response and stops the handler chain
func Abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest sends a 400 bad request response
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound sends a 404 not found response
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError sends a 500 internal server error response
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// ErrorRule maps errors matching Target to an HTTP status. An empty Message
// sends the error text.
type ErrorRule struct {
	Target  error
	Status  int
	Message string
}

// ErrorMap translates service errors to responses. The first matching rule
// wins; unmatched errors are sent as 500.
type ErrorMap []ErrorRule

// Write sends the response for err
func (m ErrorMap) Write(c *gin.Context, err error) {
	for _, rule := range m {
		if !errors.Is(err, rule.Target) {
			continue
		}
		message := rule.Message
		if message == "" {
			message = err.Error()
		}
		Error(c, rule.Status, message)
		return
	}
	InternalError(c, err.Error())
}
