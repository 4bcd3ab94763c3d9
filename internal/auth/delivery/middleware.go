package delivery

import (
	"fmt"
	"strings"

	authdomain "mailpilot-backend/internal/auth/domain"
	"mailpilot-backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userContextKey = "user"

// AuthMiddleware verifies the identity provider's bearer session token and
// attaches the authenticated user to the request context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apperrors.Respond(c, fmt.Errorf("%w: missing authorization token", apperrors.ErrUnauthorized))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			apperrors.Respond(c, fmt.Errorf("%w: invalid authorization header format", apperrors.ErrUnauthorized))
			return
		}

		user, err := verifySessionToken(parts[1], jwtSecret)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func verifySessionToken(tokenString, jwtSecret string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	email, _ := claims["email"].(string)

	return &authdomain.User{ID: userID, Email: email}, nil
}

// CurrentUser returns the authenticated user set by AuthMiddleware.
func CurrentUser(c *gin.Context) (*authdomain.User, bool) {
	v, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*authdomain.User)
	return user, ok
}
