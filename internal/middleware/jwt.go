package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/model"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token signed with HS256 and stores the caller's model.Identity in the
// context. Tokens are issued by the identity provider; this service
// only verifies them. The subject claim may be a string or a number.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			id, ok := identityFromClaims(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}

func identityFromClaims(claims jwt.MapClaims) (model.Identity, bool) {
	var uid uint64
	switch v := claims["sub"].(type) {
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return model.Identity{}, false
		}
		uid = n
	case float64:
		if v <= 0 || v != float64(uint64(v)) {
			return model.Identity{}, false
		}
		uid = uint64(v)
	default:
		return model.Identity{}, false
	}
	role, _ := claims["role"].(string)
	role = strings.ToUpper(strings.TrimSpace(role))
	if uid == 0 || role == "" {
		return model.Identity{}, false
	}
	return model.Identity{UserID: uid, Role: role}, true
}
