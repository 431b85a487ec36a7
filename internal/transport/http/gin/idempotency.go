package httpgin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redisrepo "github.com/kirinyoku/cineseat/internal/repository/redis"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	idempotencyLockTTL = 60 * time.Second
	maxIdempotencyKey  = 128
)

type idempotencyStore interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, payload []byte) error
	GetResult(ctx context.Context, key string) ([]byte, bool, error)
	Release(ctx context.Context, key string) error
}

// idempotentCall is a claimed Idempotency-Key. A nil call is a request sent without one.
type idempotentCall struct {
	store  idempotencyStore
	key    string
	header string
}

// beginIdempotent replays the stored response of a repeated key. ok is false when
// the response has already been written.
func beginIdempotent(c *gin.Context, store idempotencyStore, scope string) (*idempotentCall, bool) {
	header := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	if store == nil || header == "" {
		return nil, true
	}
	if len(header) > maxIdempotencyKey {
		badRequestMsg(c, "Idempotency-Key is too long")
		return nil, false
	}

	ctx := c.Request.Context()
	key := redisrepo.KeyIdempotency(scope, header)

	if payload, ok, _ := store.GetResult(ctx, key); ok {
		replayStored(c, header, payload)
		return nil, false
	}

	locked, err := store.AcquireLock(ctx, key, idempotencyLockTTL)
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	if !locked {
		if payload, ok, _ := store.GetResult(ctx, key); ok {
			replayStored(c, header, payload)
			return nil, false
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
			Error:   "idempotency_in_progress",
			Message: "a request with this Idempotency-Key is still being processed",
		})
		return nil, false
	}

	return &idempotentCall{store: store, key: key, header: header}, true
}

// abort frees the key so the client may retry a failed request.
func (r *idempotentCall) abort(c *gin.Context) {
	if r == nil {
		return
	}
	_ = r.store.Release(context.WithoutCancel(c.Request.Context()), r.key)
}

// commit writes v and stores it for replay.
func (r *idempotentCall) commit(c *gin.Context, status int, v any) {
	if r == nil {
		c.JSON(status, v)
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		r.abort(c)
		respondErr(c, err)
		return
	}

	_ = r.store.SaveResult(context.WithoutCancel(c.Request.Context()), r.key, b)
	c.Header(idempotencyHeader, r.header)
	c.Data(status, "application/json; charset=utf-8", b)
}

func replayStored(c *gin.Context, header string, payload []byte) {
	c.Header(idempotencyHeader, header)
	c.Header("Idempotent-Replayed", "true")
	c.Data(http.StatusCreated, "application/json; charset=utf-8", payload)
	c.Abort()
}
