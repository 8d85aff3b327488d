// Package handler exposes the stocktaking services over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/infrastructure/logger"
	"github.com/wms/stocktaking/internal/interfaces/http/dto"
	"github.com/wms/stocktaking/internal/interfaces/http/middleware"
	"go.uber.org/zap"
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

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeUnauthorized, message)
}

// HandleError converts service errors to HTTP responses.
//
// Partially applied batches answer 207 with the per-item outcomes in
// error.details, so the client can reload and retry only what failed.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	if created, ok := stocktakingapp.IsSheetCreatedButUnassigned(err); ok {
		c.JSON(http.StatusMultiStatus, dto.NewErrorResponseWithDetails(
			dto.ErrCodeSheetCreatedButUnassigned,
			created.Error(),
			requestID,
			gin.H{
				"sheet_id":   created.SheetID,
				"sheet_code": created.SheetCode,
				"cause":      shared.CodeOf(created.Err),
			},
		))
		return
	}

	var partial *shared.PartialFailureError
	if errors.As(err, &partial) {
		c.JSON(http.StatusMultiStatus, dto.NewErrorResponseWithDetails(
			dto.ErrCodePartialFailure,
			partial.Error(),
			requestID,
			partial.Result.Items,
		))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status := dto.GetHTTPStatus(domainErr.Code)
		if status >= http.StatusInternalServerError {
			logger.GetGinLogger(c).Error("upstream failure", zap.Error(err))
		}
		c.JSON(status, dto.NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, requestID))
		return
	}

	logger.GetGinLogger(c).Error("unhandled error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// bindJSON binds the body into req, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// actor builds the calling Actor from the JWT claims
func (h *BaseHandler) actor(c *gin.Context) (stocktakingapp.Actor, bool) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return stocktakingapp.Actor{}, false
	}
	userID, err := claims.UserUUID()
	if err != nil {
		h.Unauthorized(c, "Invalid user in token")
		return stocktakingapp.Actor{}, false
	}
	return stocktakingapp.Actor{UserID: userID, Roles: claims.Roles}, true
}

// uuidParam parses a path parameter, answering 400 when malformed
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// uuidListQuery parses a comma separated list of ids from the query string
func (h *BaseHandler) uuidListQuery(c *gin.Context, name string) ([]uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			h.BadRequest(c, "Invalid "+name+" format")
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
