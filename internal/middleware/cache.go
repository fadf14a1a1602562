package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/albaranes/internal/config"
	"github.com/iliyamo/albaranes/internal/logs"
)

// ArtifactCache caches successful signed-artifact lookups per note and per
// user in Redis. Keys are {prefix}:pdf:{noteID}:{userID}, so every cached
// answer was produced for the same principal. A nil or disabled cache passes
// requests straight through.
type ArtifactCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

func NewArtifactCache(cfg config.CacheConfig, rdb *redis.Client) *ArtifactCache {
	return &ArtifactCache{cfg: cfg, rdb: rdb}
}

func (a *ArtifactCache) enabled() bool {
	return a != nil && a.cfg.Enabled && a.rdb != nil
}

func (a *ArtifactCache) notePattern(noteID string) string {
	return a.cfg.Prefix + ":pdf:" + noteID + ":*"
}

func (a *ArtifactCache) key(noteID, uid string) string {
	return a.cfg.Prefix + ":pdf:" + noteID + ":" + uid
}

// bodyRecorder tees the response body up to limit bytes.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// Lookup serves GET requests for route parameter "id" from the cache and
// stores 200 responses on a miss.
func (a *ArtifactCache) Lookup() echo.MiddlewareFunc {
	if !a.enabled() {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := a.key(c.Param("id"), userID(c))
			ctx := c.Request().Context()
			if body, err := a.rdb.Get(ctx, key).Bytes(); err == nil {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, body)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: a.cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status == http.StatusOK && !rec.overflow && rec.buf.Len() > 0 {
				if err := a.rdb.Set(context.WithoutCancel(ctx), key, rec.buf.Bytes(), a.cfg.TTL).Err(); err != nil {
					logs.Logger.WithError(err).WithField("key", key).Warn("artifact cache store failed")
				}
			}
			return nil
		}
	}
}

// Purge drops every cached lookup of the note named by route parameter "id"
// once the wrapped mutation succeeded.
func (a *ArtifactCache) Purge() echo.MiddlewareFunc {
	if !a.enabled() {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			if c.Response().Status >= http.StatusMultipleChoices {
				return nil
			}
			a.purge(context.WithoutCancel(c.Request().Context()), c.Param("id"))
			return nil
		}
	}
}

func (a *ArtifactCache) purge(ctx context.Context, noteID string) {
	if strings.TrimSpace(noteID) == "" {
		return
	}
	iter := a.rdb.Scan(ctx, 0, a.notePattern(noteID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logs.Logger.WithError(err).WithField("note_id", noteID).Warn("artifact cache scan failed")
		return
	}
	if len(keys) > 0 {
		if err := a.rdb.Del(ctx, keys...).Err(); err != nil {
			logs.Logger.WithError(err).WithField("note_id", noteID).Warn("artifact cache purge failed")
		}
	}
}
