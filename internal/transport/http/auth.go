package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medid-server-go/internal/domain/auth"
	"medid-server-go/internal/domain/failure"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
)

// ClaimsKey is the gin context key holding the verified *auth.Claims.
const ClaimsKey = "auth.claims"

// BearerAuth rejects requests without a valid "Authorization: Bearer" token.
func BearerAuth(tokens *auth.AuthToken, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, errors.New(errors.KindValidation, "http.auth", "invalid auth header format").WithCode("authentication_error"))
			return
		}

		claims, err := tokens.VerifyToken(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			logger.WarnTag("HTTP", "token verification failed for %s: %v", c.Request.URL.Path, err)
			abortUnauthorized(c, err)
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// VerifyRequest checks a bearer header or, for browser websocket clients
// that cannot set headers, a token query parameter.
func VerifyRequest(tokens *auth.AuthToken) func(*http.Request) error {
	return func(r *http.Request) error {
		token := r.URL.Query().Get("token")
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(header[len("Bearer "):])
		}
		if token == "" {
			return errors.New(errors.KindValidation, "http.auth", "missing bearer token").WithCode("authentication_error")
		}
		_, err := tokens.VerifyToken(token)
		return err
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, failure.Classify(err).Body())
}
