package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetrent/service-rental/internal/domain"
)

// envelope is the standard JSON response body.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    *pageMeta   `json:"meta,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pageMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// success writes a 200 response.
func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// created writes a 201 response.
func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

// paginated writes a 200 response with pagination metadata.
func paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Meta:    &pageMeta{Total: total, Page: page, Limit: limit},
	})
}

// badRequest writes a 400 with a validation error body.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{
		Success: false,
		Error:   &apiError{Code: string(domain.CodeValidation), Message: message},
	})
}

// writeError maps a domain error to its HTTP status. Unknown errors become
// opaque 500s; the real cause is in the server log, not the response.
func writeError(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	status := http.StatusInternalServerError
	message := err.Error()

	switch code {
	case domain.CodeValidation:
		status = http.StatusBadRequest
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeConflict:
		status = http.StatusConflict
	case domain.CodeInvalidState:
		status = http.StatusUnprocessableEntity
	case domain.CodeForbidden:
		status = http.StatusForbidden
	default:
		code = "INTERNAL_ERROR"
		message = "internal server error"
	}

	c.JSON(status, envelope{
		Success: false,
		Error:   &apiError{Code: string(code), Message: message},
	})
}
