package service

import (
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/repository"
)

func scopeOf(principal *model.User) repository.Scope {
	return repository.Scope{UserID: principal.ID, CIF: principal.CompanyCIF()}
}
