package auth

import (
	"errors"
	"strings"

	"tienda-backend/internal/audit"
	"tienda-backend/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey      = "user_id"
	CtxUserNameKey    = "user_name"
	CtxUserRoleKey    = "user_role"
	CtxPermissionsKey = "permissions"
)

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTCustomClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		claims, ok := token.Claims.(*JWTCustomClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token claims")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserNameKey, claims.Name)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxPermissionsKey, PermissionsFor(claims.Role))

		return c.Next()
	}
}

// Require rejects callers whose role does not grant perm.
func Require(perm Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		perms, ok := c.Locals(CtxPermissionsKey).(PermissionSet)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "missing role information")
		}
		if !perms.Has(perm) {
			return fiber.NewError(fiber.StatusForbidden, "you are not allowed to perform this action")
		}
		return c.Next()
	}
}

// CurrentActor returns the authenticated caller for audit rows.
func CurrentActor(c *fiber.Ctx) audit.Actor {
	var a audit.Actor
	if id, ok := c.Locals(CtxUserIDKey).(uint); ok {
		a.UserID = &id
	}
	if name, ok := c.Locals(CtxUserNameKey).(string); ok {
		a.UserName = name
	}
	return a
}
