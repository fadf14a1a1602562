package service

import (
	"context"

	"github.com/iliyamo/albaranes/internal/access"
	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/repository"
)

// ProjectService manages projects. Projects are private to their creator and
// must point at a client the creator made.
type ProjectService struct {
	projects repository.ProjectStore
	clients  repository.ClientStore
}

func NewProjectService(projects repository.ProjectStore, clients repository.ClientStore) *ProjectService {
	return &ProjectService{projects: projects, clients: clients}
}

type ProjectInput struct {
	Name        string
	ProjectCode string
	Code        string
	Email       string
	Address     model.Address
	ClientID    uint64
}

func (s *ProjectService) Create(ctx context.Context, principal *model.User, in ProjectInput) (*model.Project, error) {
	if err := s.ownClient(ctx, principal, in.ClientID); err != nil {
		return nil, err
	}
	taken, err := s.projects.Taken(ctx, principal.ID, in.ProjectCode, in.Name, 0)
	if err != nil {
		return nil, fromStore(err, "project")
	}
	if taken {
		return nil, apperr.Conflict("a project with this code or name already exists")
	}
	p := &model.Project{
		Name: in.Name, ProjectCode: in.ProjectCode, Code: in.Code, Email: in.Email,
		Address: in.Address, ClientID: in.ClientID, CreatedBy: principal.ID,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fromStore(err, "project")
	}
	return p, nil
}

// Update re-runs the uniqueness check excluding the project itself.
func (s *ProjectService) Update(ctx context.Context, principal *model.User, id uint64, patch model.ProjectPatch) (*model.Project, error) {
	p, err := s.writable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if patch.ClientID != nil && *patch.ClientID != p.ClientID {
		if err := s.ownClient(ctx, principal, *patch.ClientID); err != nil {
			return nil, err
		}
	}
	patch.Apply(p)
	taken, err := s.projects.Taken(ctx, principal.ID, p.ProjectCode, p.Name, p.ID)
	if err != nil {
		return nil, fromStore(err, "project")
	}
	if taken {
		return nil, apperr.Conflict("a project with this code or name already exists")
	}
	if err := s.projects.Update(ctx, p); err != nil {
		return nil, fromStore(err, "project")
	}
	return s.reload(ctx, id)
}

func (s *ProjectService) List(ctx context.Context, principal *model.User, archived bool) ([]*model.Project, error) {
	out, err := s.projects.List(ctx, repository.ProjectFilter{CreatedBy: principal.ID, Archived: archived})
	if err != nil {
		return nil, fromStore(err, "project")
	}
	return out, nil
}

func (s *ProjectService) Get(ctx context.Context, principal *model.User, id uint64) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "project")
	}
	if p.Archived || !access.CanAccessProject(principal, p) {
		return nil, apperr.NotFound("project not found")
	}
	return p, nil
}

func (s *ProjectService) Archive(ctx context.Context, principal *model.User, id uint64) (*model.Project, error) {
	return s.setArchived(ctx, principal, id, true)
}

func (s *ProjectService) Unarchive(ctx context.Context, principal *model.User, id uint64) (*model.Project, error) {
	return s.setArchived(ctx, principal, id, false)
}

func (s *ProjectService) Delete(ctx context.Context, principal *model.User, id uint64) error {
	if _, err := s.writable(ctx, principal, id); err != nil {
		return err
	}
	return fromStore(s.projects.Delete(ctx, id), "project")
}

func (s *ProjectService) setArchived(ctx context.Context, principal *model.User, id uint64, archived bool) (*model.Project, error) {
	if _, err := s.writable(ctx, principal, id); err != nil {
		return nil, err
	}
	if err := s.projects.SetArchived(ctx, id, archived); err != nil {
		return nil, fromStore(err, "project")
	}
	return s.reload(ctx, id)
}

func (s *ProjectService) writable(ctx context.Context, principal *model.User, id uint64) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "project")
	}
	if !access.CanAccessProject(principal, p) {
		return nil, apperr.Forbidden("you have no rights over this project")
	}
	return p, nil
}

// ownClient requires the client to exist and be created by the principal.
func (s *ProjectService) ownClient(ctx context.Context, principal *model.User, clientID uint64) error {
	c, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return fromStore(err, "client")
	}
	if c.CreatedBy != principal.ID {
		return apperr.NotFound("client not found")
	}
	return nil
}

func (s *ProjectService) reload(ctx context.Context, id uint64) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "project")
	}
	return p, nil
}
