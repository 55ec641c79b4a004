// internal/api/response_helpers.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/CantusMCP/internal/errors"
)

// ResponseHelper builds the envelope every endpoint answers with.
type ResponseHelper struct{}

// NewResponseHelper creates a response helper.
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success sends a 200 envelope.
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created sends a 201 envelope.
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	} else {
		response.Message = "resource created"
	}

	c.JSON(http.StatusCreated, response)
}

// sanitizeErrorMessage keeps credential material out of error payloads.
func sanitizeErrorMessage(message string) string {
	lowered := strings.ToLower(message)
	for _, pattern := range []string{"api_key", "apikey", "secret", "token", "password"} {
		if strings.Contains(lowered, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}

// Error sends an error envelope with the given status code.
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}

	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest sends a 400 envelope.
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound sends a 404 envelope.
func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message, details...)
}

// InternalError sends a 500 envelope.
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// Conflict sends a 409 envelope.
func (rh *ResponseHelper) Conflict(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusConflict, ErrorConflict, message, details...)
}

// ServiceUnavailable sends a 503 envelope.
func (rh *ResponseHelper) ServiceUnavailable(c *gin.Context, errorCode, message string, details ...string) {
	rh.Error(c, http.StatusServiceUnavailable, errorCode, message, details...)
}

// AppError maps a service error onto the right status code and envelope.
func (rh *ResponseHelper) AppError(c *gin.Context, err error, fallbackMessage string) {
	switch {
	case apperrors.IsValidationError(err):
		rh.BadRequest(c, err.Error())
	case apperrors.IsNotFoundError(err):
		rh.NotFound(c, err.Error())
	case apperrors.IsConflictError(err):
		rh.Conflict(c, err.Error())
	case apperrors.IsLLMError(err):
		rh.ServiceUnavailable(c, ErrorLLMServiceUnavailable, err.Error())
	case apperrors.IsTimeoutError(err):
		rh.Error(c, http.StatusRequestTimeout, ErrorTimeout, err.Error())
	default:
		rh.InternalError(c, fallbackMessage, err.Error())
	}
}

// PaginatedSuccess sends a 200 envelope with pagination metadata.
func (rh *ResponseHelper) PaginatedSuccess(c *gin.Context, data interface{}, meta *PaginationMeta, message ...string) {
	response := &PaginatedResponse{
		APIResponse: &APIResponse{
			Success:   true,
			Data:      data,
			Timestamp: time.Now(),
			RequestID: rh.getRequestID(c),
		},
		Meta: meta,
	}

	if len(message) > 0 {
		response.APIResponse.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// getRequestID reads the id the request middleware assigned.
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	return ""
}
