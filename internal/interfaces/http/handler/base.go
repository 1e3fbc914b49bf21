package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// HandleError converts an error into the envelope. Domain errors keep their
// message; anything else is logged and reported as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		if dto.GetHTTPStatus(code) >= http.StatusInternalServerError {
			logger.L(c.Request.Context()).Error("Request failed", zap.String("code", domainErr.Code), zap.Error(err))
		}
		h.Error(c, code, domainErr.Message)
		return
	}

	logger.L(c.Request.Context()).Error("Unexpected error", zap.Error(err))
	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

// bindJSON binds the body into v, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindQuery binds query parameters into v, answering 400 on failure
func (h *BaseHandler) bindQuery(c *gin.Context, v any) bool {
	if err := c.ShouldBindQuery(v); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// organizationID returns the organization resolved by the middleware
func (h *BaseHandler) organizationID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetOrganizationID(c)
	if !ok {
		h.Error(c, dto.ErrCodeOrganization, "Organization identification required")
	}
	return id, ok
}

// uuidParam parses the named path parameter
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, dto.ErrCodeValidation, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
