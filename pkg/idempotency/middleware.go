package idempotency

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/textile-backoffice/roll-inventory/pkg/errors"
	"github.com/textile-backoffice/roll-inventory/pkg/middleware"
)

const (
	// HeaderIdempotencyKey is the HTTP header name for the idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderReplayed marks a response served from storage
	HeaderReplayed = "Idempotent-Replayed"
)

// storedHeaders are the response headers replayed with a stored response
var storedHeaders = []string{"Content-Type", "Location"}

// responseWriter wraps gin.ResponseWriter to capture the response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware makes mutating requests that carry an Idempotency-Key safe to
// retry. The first request under a key runs and its response is stored; a
// retry with the same request replays it. Server errors (5xx) are not
// stored, so a retry after a transient failure runs again.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				middleware.AbortWithAppError(c, errKeyRequired())
				return
			}
			c.Next()
			return
		}
		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			middleware.AbortWithAppError(c, errKeyInvalid(err))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			if body, err = io.ReadAll(c.Request.Body); err != nil {
				middleware.AbortWithAppError(c, apperrors.ErrBadRequest("failed to read request body"))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		processIdempotency(c, config, key, ComputeFingerprint(c.Request.Method, c.Request.URL.Path, body))
	}
}

func processIdempotency(c *gin.Context, config *Config, key, fingerprint string) {
	ctx := c.Request.Context()
	logger := config.Logger
	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = c.Request.URL.Path
	}
	method := c.Request.Method

	now := time.Now().UTC()
	candidate := &Key{
		ID:                 uuid.NewString(),
		Key:                key,
		ServiceID:          config.ServiceName,
		RequestPath:        c.Request.URL.Path,
		RequestMethod:      method,
		RequestFingerprint: fingerprint,
		CreatedAt:          now,
		ExpiresAt:          now.Add(config.RetentionPeriod),
	}
	if config.ActorExtractor != nil {
		candidate.Actor = config.ActorExtractor(c)
	}

	stored, acquired, err := config.Repository.AcquireLock(ctx, candidate, config.LockTimeout)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire idempotency lock", "error", err, "key", key, "path", endpoint)
		config.Metrics.storageError(config.ServiceName, "acquire_lock")
		middleware.AbortWithAppError(c, errStorageUnavailable(err))
		return
	}

	if stored.RequestFingerprint != fingerprint {
		if acquired {
			release(ctx, config, stored.ID)
		}
		logger.WarnContext(ctx, "Idempotency key reused with a different request",
			"key", key,
			"path", endpoint,
			"originalPath", stored.RequestPath,
		)
		config.Metrics.mismatch(config.ServiceName, endpoint, method)
		middleware.AbortWithAppError(c, errParameterMismatch())
		return
	}

	if !acquired {
		if stored.IsCompleted() {
			logger.InfoContext(ctx, "Idempotency cache hit", "key", key, "path", endpoint, "statusCode", stored.ResponseCode)
			config.Metrics.hit(config.ServiceName, endpoint, method)
			replay(c, stored)
			return
		}
		logger.WarnContext(ctx, "Concurrent idempotency request", "key", key, "path", endpoint)
		config.Metrics.concurrent(config.ServiceName, endpoint, method)
		middleware.AbortWithAppError(c, errConcurrentRequest())
		return
	}

	config.Metrics.miss(config.ServiceName, endpoint, method)

	// a panic or a server error leaves the key retryable
	completed := false
	defer func() {
		if !completed {
			release(context.WithoutCancel(ctx), config, stored.ID)
		}
	}()

	writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
	c.Writer = writer

	c.Next()

	status := writer.Status()
	if status >= http.StatusInternalServerError {
		logger.DebugContext(ctx, "Not storing server error response", "key", key, "path", endpoint, "statusCode", status)
		return
	}

	responseBody := writer.body.Bytes()
	if len(responseBody) > config.MaxResponseSize {
		logger.WarnContext(ctx, "Response too large to store",
			"key", key,
			"path", endpoint,
			"size", len(responseBody),
			"maxSize", config.MaxResponseSize,
		)
		responseBody = []byte(fmt.Sprintf(`{"code":"RESPONSE_NOT_STORED","message":"response too large to store","size":%d}`, len(responseBody)))
	}

	headers := make(map[string]string, len(storedHeaders))
	for _, h := range storedHeaders {
		if v := writer.Header().Get(h); v != "" {
			headers[h] = v
		}
	}

	if err := config.Repository.StoreResponse(context.WithoutCancel(ctx), stored.ID, status, responseBody, headers); err != nil {
		logger.ErrorContext(ctx, "Failed to store idempotent response", "error", err, "key", key, "path", endpoint)
		config.Metrics.storageError(config.ServiceName, "store_response")
		return
	}
	completed = true
}

func replay(c *gin.Context, stored *Key) {
	for k, v := range stored.ResponseHeaders {
		c.Header(k, v)
	}
	c.Header(HeaderReplayed, "true")

	contentType := stored.ResponseHeaders["Content-Type"]
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Data(stored.ResponseCode, contentType, stored.ResponseBody)
	c.Abort()
}

func release(ctx context.Context, config *Config, keyID string) {
	if err := config.Repository.ReleaseLock(ctx, keyID); err != nil {
		config.Logger.ErrorContext(ctx, "Failed to release idempotency lock", "error", err, "keyId", keyID)
		config.Metrics.storageError(config.ServiceName, "release_lock")
	}
}

func isMutatingMethod(method string) bool {
	return method == http.MethodPost ||
		method == http.MethodPut ||
		method == http.MethodPatch ||
		method == http.MethodDelete
}
