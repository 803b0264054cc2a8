package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRepository fails every AcquireLock
type failingRepository struct{}

func (failingRepository) AcquireLock(context.Context, *Key, time.Duration) (*Key, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingRepository) ReleaseLock(context.Context, string) error { return nil }

func (failingRepository) StoreResponse(context.Context, string, int, []byte, map[string]string) error {
	return nil
}

type harness struct {
	router  *gin.Engine
	repo    *MemoryKeyRepository
	metrics *Metrics
	calls   int
	status  int
}

func newHarness(t *testing.T, configure func(*Config)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{repo: NewMemoryKeyRepository(), status: http.StatusCreated}
	h.metrics = NewMetrics(prometheus.NewRegistry())

	cfg := DefaultConfig("roll-inventory-test", h.repo)
	cfg.Metrics = h.metrics
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if configure != nil {
		configure(cfg)
	}

	h.router = gin.New()
	h.router.Use(Middleware(cfg))
	h.router.POST("/rolls", func(c *gin.Context) {
		h.calls++
		c.Header("Location", "/rolls/r-1")
		c.JSON(h.status, gin.H{"call": h.calls})
	})
	h.router.GET("/rolls", func(c *gin.Context) {
		h.calls++
		c.Status(http.StatusOK)
	})
	return h
}

func (h *harness) post(key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/rolls", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	h := newHarness(t, nil)

	first := h.post("grn-1-receipt", `{"supplierId":"sup-ahm"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(HeaderReplayed))

	second := h.post("grn-1-receipt", `{"supplierId":"sup-ahm"}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, "/rolls/r-1", second.Header().Get("Location"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, h.calls, "handler runs once")

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Hits.WithLabelValues("roll-inventory-test", "/rolls", http.MethodPost)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Misses.WithLabelValues("roll-inventory-test", "/rolls", http.MethodPost)))
}

func TestMiddleware_ParameterMismatch(t *testing.T) {
	h := newHarness(t, nil)

	require.Equal(t, http.StatusCreated, h.post("k-1", `{"length":40}`).Code)
	w := h.post("k-1", `{"length":60}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), CodeParameterMismatch)
	assert.Equal(t, 1, h.calls)
}

func TestMiddleware_ServerErrorIsRetryable(t *testing.T) {
	h := newHarness(t, nil)
	h.status = http.StatusServiceUnavailable

	require.Equal(t, http.StatusServiceUnavailable, h.post("k-2", `{}`).Code)

	h.status = http.StatusCreated
	w := h.post("k-2", `{}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(HeaderReplayed))
	assert.Equal(t, 2, h.calls)
}

func TestMiddleware_ClientErrorIsStored(t *testing.T) {
	h := newHarness(t, nil)
	h.status = http.StatusConflict

	require.Equal(t, http.StatusConflict, h.post("k-3", `{}`).Code)
	w := h.post("k-3", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "true", w.Header().Get(HeaderReplayed))
	assert.Equal(t, 1, h.calls)
}

func TestMiddleware_ConcurrentRequest(t *testing.T) {
	h := newHarness(t, nil)

	held := &Key{
		ID:                 "held",
		Key:                "k-4",
		ServiceID:          "roll-inventory-test",
		RequestFingerprint: ComputeFingerprint(http.MethodPost, "/rolls", []byte(`{}`)),
		ExpiresAt:          time.Now().Add(time.Hour),
	}
	_, acquired, err := h.repo.AcquireLock(context.Background(), held, DefaultLockTimeout)
	require.NoError(t, err)
	require.True(t, acquired)

	w := h.post("k-4", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), CodeConcurrentRequest)
	assert.Zero(t, h.calls)
}

func TestMiddleware_KeyHandling(t *testing.T) {
	t.Run("missing key passes through", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.Equal(t, http.StatusCreated, h.post("", `{}`).Code)
		assert.Equal(t, http.StatusCreated, h.post("", `{}`).Code)
		assert.Equal(t, 2, h.calls)
	})

	t.Run("missing key rejected when required", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.RequireKey = true })
		w := h.post("", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), CodeKeyRequired)
	})

	t.Run("invalid key", func(t *testing.T) {
		h := newHarness(t, nil)
		w := h.post("grn 1/receipt", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), CodeKeyInvalid)
	})

	t.Run("reads are not checked", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.RequireKey = true })
		w := httptest.NewRecorder()
		h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rolls", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.Repository = failingRepository{} })
		w := h.post("k-5", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), CodeStorageUnavailable)
		assert.Zero(t, h.calls)
	})
}

func TestMemoryKeyRepository_StaleLockAndExpiry(t *testing.T) {
	repo := NewMemoryKeyRepository()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	key := func(id string) *Key {
		return &Key{ID: id, Key: "k", ServiceID: "svc", ExpiresAt: now.Add(time.Hour)}
	}

	_, acquired, err := repo.AcquireLock(ctx, key("a"), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, acquired, err = repo.AcquireLock(ctx, key("b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired, "lock is fresh")

	now = now.Add(2 * time.Minute)
	stored, acquired, err := repo.AcquireLock(ctx, key("c"), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "stale lock is taken over")
	assert.Equal(t, "a", stored.ID)

	require.NoError(t, repo.StoreResponse(ctx, "a", http.StatusCreated, []byte(`{}`), nil))
	stored, acquired, err = repo.AcquireLock(ctx, key("d"), time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.True(t, stored.IsCompleted())

	now = now.Add(2 * time.Hour)
	stored, acquired, err = repo.AcquireLock(ctx, key("e"), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "expired key starts over")
	assert.Equal(t, "e", stored.ID)

	assert.ErrorIs(t, repo.ReleaseLock(ctx, "a"), ErrNotFound)
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("grn-2025_0001", DefaultMaxKeyLength))
	assert.ErrorIs(t, ValidateKey("", DefaultMaxKeyLength), ErrKeyRequired)
	assert.ErrorIs(t, ValidateKey(strings.Repeat("a", 9), 8), ErrKeyTooLong)
	assert.ErrorIs(t, ValidateKey("so-1/1", DefaultMaxKeyLength), ErrKeyInvalid)

	assert.NotEqual(t,
		ComputeFingerprint(http.MethodPost, "/a", []byte("{}")),
		ComputeFingerprint(http.MethodPost, "/b", []byte("{}")),
	)
}
