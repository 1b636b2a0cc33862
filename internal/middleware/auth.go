package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// Context keys set by the auth middlewares.
const (
	// CtxActorID is the room-facing identity string ("user-42",
	// "guest-ab12cd34").
	CtxActorID = "actor_id"
	// CtxUserID is the numeric account id; absent for guests.
	CtxUserID = "user_id"
)

// ErrMissingAuthHeader marks a request without an Authorization header.
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth returns a middleware that requires a valid JWT.
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}
	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: error extracting token")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}
		if !applyClaims(c, tokenStr, jwtSecret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth returns a middleware that attaches identity when a valid
// token is present and lets the request through either way. Room
// endpoints use it: guests are first-class there and carry their own
// self-assigned ids in the request instead.
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for OptionalAuth middleware")
	}
	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err == nil {
			if !applyClaims(c, tokenStr, jwtSecret) {
				logrus.Debug("OptionalAuth middleware: ignoring invalid token")
			}
		}
		c.Next()
	}
}

// applyClaims validates the token and copies its identity claims into
// the gin context. Returns false on any validation failure.
func applyClaims(c *gin.Context, tokenStr, secret string) bool {
	claims, err := validateToken(tokenStr, secret)
	if err != nil {
		logrus.WithError(err).Warn("Auth middleware: invalid token")
		return false
	}

	actorID, ok := claims["uid"].(string)
	if !ok || actorID == "" {
		logrus.Error("Auth middleware: 'uid' claim missing in token")
		return false
	}
	c.Set(CtxActorID, actorID)

	// JWT numbers decode as float64; user_id is present for accounts only.
	if userIDFloat, ok := claims["user_id"].(float64); ok && userIDFloat > 0 && userIDFloat == float64(uint(userIDFloat)) {
		c.Set(CtxUserID, uint(userIDFloat))
	}
	logrus.WithField("actor_id", actorID).Debug("Auth middleware: identity attached")
	return true
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

func validateToken(tokenStr, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}
