package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/model"
)

// opTimeout bounds every service call made by a handler.
const opTimeout = 20 * time.Second

func opContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), opTimeout)
}

// bind decodes the request body into dst.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid body")
	}
	return nil
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

// problems collects field errors and reports them as one validation error.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		p.addf("%s is required", field)
	}
}

func (p *problems) email(field, value string, optional bool) {
	if value == "" {
		if !optional {
			p.addf("%s is required", field)
		}
		return
	}
	if !validEmail(value) {
		p.addf("%s must be a valid email", field)
	}
}

func (p *problems) address(a *addressReq) {
	if a == nil {
		p.addf("address is required")
		return
	}
	p.required("address.street", a.Street)
	if a.Number == nil {
		p.addf("address.number must be numeric")
	}
	if !numeric(string(a.Postal)) {
		p.addf("address.postal must be numeric")
	}
	p.required("address.city", a.City)
	p.required("address.province", a.Province)
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return apperr.Validation(strings.Join(p, "; "))
}

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

func numeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// looseString accepts a JSON string or a JSON number, so postal codes can
// be sent either way.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

type addressReq struct {
	Street   string      `json:"street"`
	Number   *int        `json:"number"`
	Postal   looseString `json:"postal"`
	City     string      `json:"city"`
	Province string      `json:"province"`
}

func (a *addressReq) model() model.Address {
	if a == nil {
		return model.Address{}
	}
	out := model.Address{Street: a.Street, Postal: string(a.Postal), City: a.City, Province: a.Province}
	if a.Number != nil {
		out.Number = *a.Number
	}
	return out
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
