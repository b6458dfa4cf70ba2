package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserIDKey is the gin context key carrying the authenticated user's ID.
const UserIDKey = "user_id"

// Claims holds the JWT claims the platform issues.
type Claims struct {
	jwt.RegisteredClaims
}

// Middleware parses an optional Bearer token and stores the payer identity in
// the request context. Requests without a valid token proceed anonymously;
// endpoints that require a payer resolve one from the payable entity instead.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.Next()
			return
		}

		if id, err := uuid.Parse(claims.Subject); err == nil {
			c.Set(UserIDKey, id)
		}
		c.Next()
	}
}

// UserID returns the authenticated user's ID from the gin context, or
// uuid.Nil when the request is anonymous.
func UserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}
