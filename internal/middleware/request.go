package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/logs"
)

const requestIDKey = "request_id"

// RequestID propagates X-Request-ID or generates a new one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(requestIDKey, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// RequestIDOf returns the id assigned by RequestID.
func RequestIDOf(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}

// AccessLog writes one structured line per request. Handler errors are
// passed to c.Error first so the logged status is the one sent.
func AccessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			fields := logrus.Fields{
				"reqid":  RequestIDOf(c),
				"method": c.Request().Method,
				"uri":    c.Request().RequestURI,
				"status": c.Response().Status,
				"dur":    time.Since(start).String(),
			}
			if u := Principal(c); u != nil {
				fields["user_id"] = u.ID
			}
			entry := logs.Logger.WithFields(fields)
			if c.Response().Status >= http.StatusInternalServerError {
				entry.Warn("request")
			} else {
				entry.Info("request")
			}
			return nil
		}
	}
}

// Recover turns a handler panic into an internal error.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if r == http.ErrAbortHandler {
						panic(r)
					}
					logs.Logger.WithFields(logrus.Fields{
						"reqid": RequestIDOf(c), "panic": r,
					}).Error(string(debug.Stack()))
					err = apperr.Internal("panic", fmt.Errorf("%v", r))
				}
			}()
			return next(c)
		}
	}
}
