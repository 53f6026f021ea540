package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Recovery returns a middleware that recovers from panics
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Printf("Panic recovered on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
	})
}

// Logger returns a middleware that logs requests. Health probes are not
// logged; livez/readyz fire every few seconds and drown out real traffic.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/livez" || path == "/readyz" {
			c.Next()
			return
		}

		start := time.Now()
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Printf("%s %s %d tenant=%s %v",
			c.Request.Method, path, c.Writer.Status(), c.GetString("tenant_id"), time.Since(start))
	}
}

// CORS returns a middleware that handles CORS for the reminder API
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Tenant-ID, X-User-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// TenantAuth extracts tenant and user identity from headers. X-Tenant-ID is
// required on every API route. X-User-ID is optional but must be a UUID when
// present, since it keys the presence registry and preference rows.
func TenantAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-Tenant-ID header"})
			c.Abort()
			return
		}
		c.Set("tenant_id", tenantID)

		if userID := c.GetHeader("X-User-ID"); userID != "" {
			if _, err := uuid.Parse(userID); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid X-User-ID header"})
				c.Abort()
				return
			}
			c.Set("user_id", userID)
		}

		c.Next()
	}
}
