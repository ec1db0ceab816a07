package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/internal/middleware"
	appErrors "github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// requireUserID returns the authenticated user id, writing a 401 when the request carries none.
func requireUserID(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

// pathParam returns a trimmed route parameter, writing a 400 when it is blank.
func pathParam(c *gin.Context, name, label string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		response.Error(c, appErrors.NewBadRequest(label+" is required"))
		return "", false
	}
	return value, true
}
