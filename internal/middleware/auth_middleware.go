package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "focusbeat/backend/internal/errors"
)

const ProfileIDContextKey = "profileID"

// TokenParser resolves a bearer token to a profile id.
type TokenParser interface {
	ParseToken(token string) (string, *apperrors.APIError)
}

// Auth accepts the token from the Authorization header, or from the
// access_token query parameter for EventSource clients that cannot set
// headers.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, apiErr := bearerToken(c)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		profileID, apiErr := parser.ParseToken(token)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		c.Set(ProfileIDContextKey, profileID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, *apperrors.APIError) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" {
			return token, nil
		}
		return "", apperrors.Unauthorized("missing authorization header")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", apperrors.Unauthorized("invalid authorization format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", apperrors.Unauthorized("invalid authorization format")
	}
	return token, nil
}

func ProfileID(c *gin.Context) string {
	value, ok := c.Get(ProfileIDContextKey)
	if !ok {
		return ""
	}
	profileID, ok := value.(string)
	if !ok {
		return ""
	}
	return profileID
}

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, apiErr.Body())
}
