package service

import (
	"context"

	"github.com/iliyamo/albaranes/internal/access"
	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/repository"
)

// ClientService manages clients shared between a user and their company.
type ClientService struct {
	clients repository.ClientStore
}

func NewClientService(clients repository.ClientStore) *ClientService {
	return &ClientService{clients: clients}
}

type ClientInput struct {
	Name    string
	Email   string
	Phone   string
	NIF     string
	Address model.Address
}

// Create stamps the principal and its company CIF on the new client. The
// same email may not appear twice among the clients the principal can see.
func (s *ClientService) Create(ctx context.Context, principal *model.User, in ClientInput) (*model.Client, error) {
	if err := s.checkEmail(ctx, principal, in.Email, 0); err != nil {
		return nil, err
	}
	c := &model.Client{
		Name: in.Name, Email: in.Email, Phone: in.Phone, NIF: in.NIF, Address: in.Address,
		CreatedBy: principal.ID, CompanyCIF: principal.CompanyCIF(),
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, fromStore(err, "client")
	}
	return c, nil
}

func (s *ClientService) Update(ctx context.Context, principal *model.User, id uint64, patch model.ClientPatch) (*model.Client, error) {
	c, err := s.writable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if patch.Email != nil && *patch.Email != c.Email {
		if err := s.checkEmail(ctx, principal, *patch.Email, c.ID); err != nil {
			return nil, err
		}
	}
	patch.Apply(c)
	if err := s.clients.Update(ctx, c); err != nil {
		return nil, fromStore(err, "client")
	}
	return s.reload(ctx, c.ID)
}

func (s *ClientService) List(ctx context.Context, principal *model.User, archived bool) ([]*model.Client, error) {
	out, err := s.clients.List(ctx, repository.ClientFilter{Scope: scopeOf(principal), Archived: archived})
	if err != nil {
		return nil, fromStore(err, "client")
	}
	return out, nil
}

// Get hides archived and foreign clients behind NotFound.
func (s *ClientService) Get(ctx context.Context, principal *model.User, id uint64) (*model.Client, error) {
	c, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "client")
	}
	if c.Archived || !access.CanAccess(principal, c) {
		return nil, apperr.NotFound("client not found")
	}
	return c, nil
}

func (s *ClientService) Archive(ctx context.Context, principal *model.User, id uint64) (*model.Client, error) {
	return s.setArchived(ctx, principal, id, true)
}

func (s *ClientService) Unarchive(ctx context.Context, principal *model.User, id uint64) (*model.Client, error) {
	return s.setArchived(ctx, principal, id, false)
}

// Delete removes the client for good. Conflict while projects or delivery
// notes still point at it.
func (s *ClientService) Delete(ctx context.Context, principal *model.User, id uint64) error {
	if _, err := s.writable(ctx, principal, id); err != nil {
		return err
	}
	return fromStore(s.clients.Delete(ctx, id), "client")
}

func (s *ClientService) setArchived(ctx context.Context, principal *model.User, id uint64, archived bool) (*model.Client, error) {
	if _, err := s.writable(ctx, principal, id); err != nil {
		return nil, err
	}
	if err := s.clients.SetArchived(ctx, id, archived); err != nil {
		return nil, fromStore(err, "client")
	}
	return s.reload(ctx, id)
}

// writable loads a client for mutation: NotFound when absent, Forbidden when
// the principal has no rights over it.
func (s *ClientService) writable(ctx context.Context, principal *model.User, id uint64) (*model.Client, error) {
	c, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "client")
	}
	if !access.CanAccess(principal, c) {
		return nil, apperr.Forbidden("you have no rights over this client")
	}
	return c, nil
}

// checkEmail enforces email uniqueness among the clients the principal can
// see. Clients without an email never collide.
func (s *ClientService) checkEmail(ctx context.Context, principal *model.User, email string, exclude uint64) error {
	if email == "" {
		return nil
	}
	taken, err := s.clients.EmailTaken(ctx, email, scopeOf(principal), exclude)
	if err != nil {
		return fromStore(err, "client")
	}
	if taken {
		return apperr.Conflict("a client with this email already exists")
	}
	return nil
}

func (s *ClientService) reload(ctx context.Context, id uint64) (*model.Client, error) {
	c, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "client")
	}
	return c, nil
}
