package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	idempotencyOpTimeout = 2 * time.Second
)

var errInProgress = fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// replayCache keeps one reservation or one finished response per scoped key.
type replayCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// reserve claims key for the caller. When another request already holds it,
// reserve returns the stored response, or errInProgress while that request is
// still running.
func (rc replayCache) reserve(ctx context.Context, key string) (*storedResponse, error) {
	ok, err := rc.rdb.SetNX(ctx, key, inProgressMarker, rc.ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	raw, err := rc.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Holder released between SETNX and GET; the caller may retry.
		return nil, errInProgress
	}
	if err != nil {
		return nil, err
	}
	if raw == inProgressMarker {
		return nil, errInProgress
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		rc.logger.Warn("undecodable idempotent response", slog.String("cache_key", key), slog.Any("error", err))
		return nil, fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	return &stored, nil
}

func (rc replayCache) save(key string, resp *fiber.Response) error {
	stored := storedResponse{
		Status:  resp.StatusCode(),
		Body:    string(resp.Body()),
		Headers: map[string]string{},
	}
	resp.Header.VisitAll(func(k, v []byte) {
		stored.Headers[string(k)] = string(v)
	})
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	return rc.rdb.Set(ctx, key, payload, rc.ttl).Err()
}

func (rc replayCache) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	if err := rc.rdb.Del(ctx, key).Err(); err != nil {
		rc.logger.Warn("idempotency release failed", slog.String("cache_key", key), slog.Any("error", err))
	}
}

func replay(c *fiber.Ctx, stored *storedResponse) error {
	for header, value := range stored.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	return c.Status(stored.Status).SendString(stored.Body)
}

// Idempotency replays the stored response for unsafe requests that repeat an
// Idempotency-Key header. Requests without the header pass through untouched.
// A request that arrives while the first one with the same key is still
// running gets 409.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	rc := replayCache{rdb: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" || cache == nil {
			return c.Next()
		}

		scope := c.Path()
		if p, ok := Principal(c); ok {
			scope = strconv.FormatInt(p.ClientID, 10) + ":" + scope
		}
		cacheKey := idempotencyPrefix + scope + ":" + key

		ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
		stored, err := rc.reserve(ctx, cacheKey)
		cancel()
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			return fe
		case err != nil:
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		case stored != nil:
			return replay(c, stored)
		}

		if err := c.Next(); err != nil {
			rc.release(cacheKey)
			return err
		}

		if err := rc.save(cacheKey, c.Response()); err != nil {
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			rc.release(cacheKey)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}
		return nil
	}
}
