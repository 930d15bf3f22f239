package middleware

import (
	"net/http"
	"strings"

	"civicdesk/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const callerKey = "caller"

// AuthRequired verifies the bearer token issued by the auth service and
// attaches the caller identity (id, role, department) to the request
// context. Token issuance lives outside this service; only verification and
// claim extraction happen here.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			c.Abort()
			return
		}

		caller, err := parseCaller(parts[1], secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

type callerClaims struct {
	Role         string `json:"role"`
	DepartmentID string `json:"departmentId,omitempty"`
	jwt.RegisteredClaims
}

func parseCaller(tokenString, secret string) (models.Caller, error) {
	var claims callerClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return models.Caller{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Caller{}, err
	}

	caller := models.Caller{ID: id, Role: claims.Role}
	if claims.DepartmentID != "" {
		if deptID, err := uuid.Parse(claims.DepartmentID); err == nil {
			caller.DepartmentID = &deptID
		}
	}
	return caller, nil
}

// CallerFrom returns the caller stored by AuthRequired.
func CallerFrom(c *gin.Context) (models.Caller, bool) {
	value, ok := c.Get(callerKey)
	if !ok {
		return models.Caller{}, false
	}
	caller, ok := value.(models.Caller)
	return caller, ok
}
