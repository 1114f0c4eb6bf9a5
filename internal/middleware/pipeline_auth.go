package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PipelineActor is the actor recorded for requests authenticated by API key.
const PipelineActor = "pipeline"

// PipelineAuthMiddleware guards the ingestion routes used by the brokerage
// import pipeline. The X-API-Key header must match apiKey; an empty apiKey
// disables the routes.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithCode(c, http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED", "Pipeline endpoints are not configured")
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithCode(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid or missing API key")
			return
		}
		c.Set(ActorKey, PipelineActor)
		c.Next()
	}
}
