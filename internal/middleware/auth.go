package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "aktieskat/internal/errors"
)

const (
	tokenIssuer = "aktieskat-api"

	// ActorKey is the context key holding the authenticated subject.
	ActorKey = "actor"
)

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an access token for subject valid for ttl.
// The API itself never issues tokens; the CLI does for the holder.
func GenerateAccessToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}
	now := time.Now()
	claims := &JWTClaims{
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// AuthMiddleware verifies the JWT token and sets the actor in the context
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		}, jwt.WithIssuer(tokenIssuer))

		if err != nil || !token.Valid || claims.TokenType != "access" || claims.Subject == "" {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ActorKey, claims.Subject)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	abortWithCode(c, apperrors.ErrUnauthorized.StatusCode, apperrors.ErrUnauthorized.Code, message)
}

// abortWithCode stops the chain with the standard error envelope.
func abortWithCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
