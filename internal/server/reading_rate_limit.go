package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tirta/internal/observability/logger"
	"github.com/smallbiznis/tirta/internal/ratelimit"
	"go.uber.org/zap"
)

type readingIngestRateLimitKey struct {
	ApartmentID string `json:"apartment_id"`
}

// ReadingIngestRateLimit applies the per-apartment token bucket to reading
// submissions. It is a no-op when Redis rate limiting is not configured.
func (s *Server) ReadingIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.readingLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		apartmentID, err := readReadingIngestKey(c)
		if err != nil {
			logger.FromContext(ctx).Warn("reading ingest rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}
		apartmentID = scopedApartment(c, apartmentID)
		if apartmentID == "" {
			c.Next()
			return
		}

		result, err := s.readingLimiter.AllowApartment(ctx, apartmentID)
		if err != nil {
			logger.FromContext(ctx).Warn("reading ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			logger.FromContext(ctx).Warn("reading ingest rate limit exceeded",
				zap.String("apartment_id", apartmentID),
				zap.String("endpoint", normalizeRateLimitEndpoint(c)),
			)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ratelimit.ErrRateLimited)
			return
		}

		c.Next()
	}
}

func readReadingIngestKey(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload readingIngestRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	return strings.TrimSpace(payload.ApartmentID), nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
