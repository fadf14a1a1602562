// Package service holds the business operations behind the HTTP handlers:
// accounts, clients, projects and delivery notes. Every operation receives
// the already-authenticated principal and returns *apperr.Error values.
package service

import (
	"errors"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/repository"
)

// fromStore maps repository sentinels onto the error taxonomy. what names
// the resource for NotFound messages.
func fromStore(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrEmailExists):
		return apperr.Conflict(what + " already exists")
	case errors.Is(err, repository.ErrInUse):
		return apperr.Conflict(what + " is still referenced by other records")
	case errors.Is(err, repository.ErrForbidden):
		return apperr.Forbidden("no rights over this " + what)
	default:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return err
		}
		return apperr.Internal("storage failure", err)
	}
}
