package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/walkaround-go/pkg/response"
)

// SubjectKey is the context key holding the token subject
const SubjectKey = "subject"

// Auth validates HS256 bearer tokens signed with secret. An empty secret
// disables the check.
func Auth(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}

	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		token := bearerFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims := &jwt.RegisteredClaims{}
		parsed, err := parser.ParseWithClaims(token, claims, func(_ *jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !parsed.Valid {
			response.Abort(c, http.StatusUnauthorized, "token invalid")
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
