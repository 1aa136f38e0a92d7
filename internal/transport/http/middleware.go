package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nutrilens-server-go/internal/domain/auth"
	"nutrilens-server-go/internal/platform/logging"
)

// SubjectKey is the gin context key holding the verified token subject.
const SubjectKey = "auth.subject"

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(token *auth.AuthToken, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			RespondError(c, http.StatusUnauthorized, MessageUnauthorized, ReasonUnauthorized)
			return
		}
		claims, err := token.VerifyToken(raw)
		if err != nil {
			logger.WarnTag("AUTH", "rejected token on %s: %v", c.Request.URL.Path, err)
			RespondError(c, http.StatusUnauthorized, MessageUnauthorized, ReasonUnauthorized)
			return
		}
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
