package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecohubkosova/ecohub/internal/auditctx"
	iauth "github.com/ecohubkosova/ecohub/internal/auth"
	"github.com/ecohubkosova/ecohub/internal/models"
	"github.com/ecohubkosova/ecohub/internal/services"
	"github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/logger"
	"github.com/ecohubkosova/ecohub/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxUserEmailKey = "userEmail"
	CtxUserNameKey  = "userName"
)

// IdentitySyncer mirrors an authenticated identity into the local user directory.
type IdentitySyncer interface {
	Sync(ctx context.Context, identity services.Identity) (*models.User, error)
}

// Auth enforces JWT authentication using the supplied JWT service. When users is non-nil the
// identity is upserted so membership listings can show names and emails; sync failures are
// logged and the request proceeds with the token's identity.
func Auth(jwt *iauth.JWTService, users IdentitySyncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if users != nil {
			// Sync failures never block the caller.
			if _, err := users.Sync(c.Request.Context(), services.Identity{
				UserID:      claims.UserID(),
				Email:       claims.Email,
				DisplayName: claims.Name,
			}); err != nil {
				logger.WithModule("auth").Warn("identity sync failed",
					zap.String("user_id", claims.UserID()),
					zap.Error(err),
				)
			}
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID())
		c.Set(CtxUserEmailKey, strings.ToLower(strings.TrimSpace(claims.Email)))
		c.Set(CtxUserNameKey, claims.Name)
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    claims.UserID(),
			Email:     claims.Email,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))

		c.Next()
	}
}
