package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/config"
	"github.com/iliyamo/albaranes/internal/model"
)

type fakeAuth struct {
	gotRaw     string
	gotPending bool
}

func (f *fakeAuth) Authenticate(_ context.Context, raw string, allowPending bool) (*model.User, error) {
	f.gotRaw, f.gotPending = raw, allowPending
	if raw != "good" {
		return nil, apperr.New(apperr.KindInvalidCredential, "invalid or expired token")
	}
	return &model.User{ID: 7, Role: model.RoleGuest}, nil
}

func newCtx(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestJWTAuth(t *testing.T) {
	auth := &fakeAuth{}

	c, _ := newCtx(http.MethodGet, "/")
	c.Request().Header.Set(echo.HeaderAuthorization, "bearer good")
	require.NoError(t, JWTAuth(auth, true)(ok)(c))
	assert.Equal(t, "good", auth.gotRaw)
	assert.True(t, auth.gotPending)
	require.NotNil(t, Principal(c))
	assert.Equal(t, uint64(7), Principal(c).ID)

	c, _ = newCtx(http.MethodGet, "/")
	c.Request().Header.Set(echo.HeaderAuthorization, "Token good")
	err := JWTAuth(auth, false)(ok)(c)
	assert.Equal(t, apperr.KindInvalidCredential, apperr.KindOf(err))
	assert.Equal(t, "", auth.gotRaw)
	assert.Nil(t, Principal(c))
}

func TestRequireRole(t *testing.T) {
	c, _ := newCtx(http.MethodPost, "/invite")
	SetPrincipal(c, &model.User{ID: 1, Role: model.RoleGuest})
	err := RequireRole(model.RoleUser)(ok)(c)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	c, rec := newCtx(http.MethodPost, "/invite")
	SetPrincipal(c, &model.User{ID: 1, Role: model.RoleUser})
	require.NoError(t, RequireRole(model.RoleUser)(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestID(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/")
	require.NoError(t, RequestID()(ok)(c))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	c, rec = newCtx(http.MethodGet, "/")
	c.Request().Header.Set(echo.HeaderXRequestID, "abc")
	require.NoError(t, RequestID()(ok)(c))
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "abc", RequestIDOf(c))
}

func TestRecover(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/")
	err := Recover()(func(echo.Context) error { panic("boom") })(c)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestRateKey(t *testing.T) {
	c, _ := newCtx(http.MethodPost, "/api/user/login")
	c.SetPath("/api/user/login")
	c.Request().RemoteAddr = "10.0.0.1:1234"

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}
	assert.Equal(t, "rl:ip:10.0.0.1", rateKey(cfg, c))

	cfg.KeyStrategy = "ip_route"
	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /api/user/login", rateKey(cfg, c))

	SetPrincipal(c, &model.User{ID: 9})
	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "rl:ip:10.0.0.1:user:9:route:POST /api/user/login", rateKey(cfg, c))
}

func TestDisabledLayersPassThrough(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/pdf/1")
	require.NoError(t, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil)(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var cache *ArtifactCache
	c, rec = newCtx(http.MethodGet, "/pdf/1")
	require.NoError(t, cache.Lookup()(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	cache = NewArtifactCache(config.CacheConfig{Enabled: true, Prefix: "cache"}, nil)
	require.NoError(t, cache.Purge()(ok)(c))
	assert.Equal(t, "cache:pdf:4:9", cache.key("4", "9"))
}

func TestBodyRecorderOverflow(t *testing.T) {
	rec := &bodyRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK, limit: 4}
	_, _ = rec.Write([]byte("abc"))
	assert.False(t, rec.overflow)
	_, _ = rec.Write([]byte("de"))
	assert.True(t, rec.overflow)
	assert.Equal(t, 0, rec.buf.Len())
}
