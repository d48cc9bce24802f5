package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityContextKey = "identity"

// authRequired verifies the Authorization bearer token and stores the
// provider identity on the request context. Every store call downstream
// receives the identity explicitly from here.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(identityContextKey, claims.Identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// identityFrom returns the authenticated identity set by authRequired.
func identityFrom(c *gin.Context) string {
	return c.GetString(identityContextKey)
}

// identityKey is the rate-limiter key function: authenticated traffic is
// limited per identity, anything else falls back to the client IP.
func identityKey(c *gin.Context) string {
	return identityFrom(c)
}
