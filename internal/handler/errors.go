// Package handler adapts HTTP requests to the service layer. Handlers bind
// and validate the body, call one service operation with the principal set
// by the auth middleware and return errors untouched; ErrorHandler renders
// every failure as {success:false, error:<message>}.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/logs"
	"github.com/iliyamo/albaranes/internal/middleware"
)

// Status maps an error kind to its HTTP status.
func Status(k apperr.Kind) int {
	switch k {
	case apperr.KindUnauthenticated, apperr.KindInvalidCredential:
		return http.StatusUnauthorized
	case apperr.KindInvalidCode, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAttemptsExhausted:
		return http.StatusTooManyRequests
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case apperr.KindArtifactGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler is installed as Echo's HTTPErrorHandler.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		_ = reply(c, he.Code, echo.Map{"success": false, "error": msg})
		return
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("unexpected error", err)
	}
	status := Status(ae.Kind)
	body := echo.Map{"success": false, "error": ae.Message}
	for k, v := range ae.Details {
		body[k] = v
	}
	if status >= http.StatusInternalServerError {
		logs.Logger.WithError(err).WithFields(logrus.Fields{
			"reqid": middleware.RequestIDOf(c), "kind": ae.Kind.String(), "uri": c.Request().RequestURI,
		}).Error("request failed")
		if ae.Kind == apperr.KindInternal {
			body["error"] = "internal server error"
		}
	}
	_ = reply(c, status, body)
}

func reply(c echo.Context, status int, body echo.Map) error {
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return c.JSON(status, body)
}

// ok writes {success:true} merged with body.
func ok(c echo.Context, status int, body echo.Map) error {
	out := echo.Map{"success": true}
	for k, v := range body {
		out[k] = v
	}
	return c.JSON(status, out)
}
