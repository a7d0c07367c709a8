package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maildrift/maildrift/internal/common"
)

const (
	userIDKey = "userID"

	// codeTokenExpired tells the client "refresh and retry" as opposed to
	// "re-authenticate".
	codeTokenExpired = "token_expired"
)

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorBody(msg, code string) apiError {
	return apiError{Error: msg, Code: code}
}

// bearerAuth validates the Authorization header and stashes the user id in
// the request context. Expired tokens get a distinct code so the client's
// refresh-and-retry wrapper can tell them apart from garbage tokens.
func (s *Server) bearerAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("missing bearer token", ""))
		return
	}

	uid, err := s.users.Authenticate(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("access token expired", codeTokenExpired))
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("invalid token", ""))
		return
	}

	c.Set(userIDKey, uid)
	c.Next()
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// rateLimit enforces the per-user mutation budget.
func (s *Server) rateLimit(c *gin.Context) {
	if !s.limiter.Allow(userID(c)) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody(common.ErrRateLimited.Error(), ""))
		return
	}
	c.Next()
}
