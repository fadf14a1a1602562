package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/middleware"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/service"
)

type ProjectHandler struct {
	Projects *service.ProjectService
}

func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{Projects: projects}
}

type projectReq struct {
	Name        string      `json:"name"`
	ProjectCode string      `json:"projectCode"`
	Code        string      `json:"code"`
	Email       string      `json:"email"`
	Address     *addressReq `json:"address"`
	ClientID    uint64      `json:"clientId"`
}

func (r *projectReq) check() error {
	r.Email = normEmail(r.Email)
	var p problems
	p.required("name", r.Name)
	p.required("projectCode", r.ProjectCode)
	p.required("code", r.Code)
	p.email("email", r.Email, false)
	p.address(r.Address)
	if r.ClientID == 0 {
		p.addf("clientId is required")
	}
	return p.err()
}

func (h *ProjectHandler) Create(c echo.Context) error {
	var req projectReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.check(); err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	p, err := h.Projects.Create(ctx, middleware.Principal(c), service.ProjectInput{
		Name: strings.TrimSpace(req.Name), ProjectCode: strings.TrimSpace(req.ProjectCode),
		Code: strings.TrimSpace(req.Code), Email: req.Email, Address: req.Address.model(), ClientID: req.ClientID,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{"project": p})
}

// Update takes the same body as Create.
func (h *ProjectHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req projectReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.check(); err != nil {
		return err
	}
	name, pcode, code := strings.TrimSpace(req.Name), strings.TrimSpace(req.ProjectCode), strings.TrimSpace(req.Code)
	addr := req.Address.model()
	patch := model.ProjectPatch{
		Name: &name, ProjectCode: &pcode, Code: &code, Email: &req.Email, Address: &addr, ClientID: &req.ClientID,
	}

	ctx, cancel := opContext(c)
	defer cancel()
	p, err := h.Projects.Update(ctx, middleware.Principal(c), id, patch)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"project": p})
}

func (h *ProjectHandler) List(c echo.Context) error     { return h.list(c, false) }
func (h *ProjectHandler) Archived(c echo.Context) error { return h.list(c, true) }

func (h *ProjectHandler) list(c echo.Context, archived bool) error {
	ctx, cancel := opContext(c)
	defer cancel()
	out, err := h.Projects.List(ctx, middleware.Principal(c), archived)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"projects": out})
}

func (h *ProjectHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	p, err := h.Projects.Get(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"project": p})
}

func (h *ProjectHandler) Archive(c echo.Context) error   { return h.toggle(c, h.Projects.Archive) }
func (h *ProjectHandler) Unarchive(c echo.Context) error { return h.toggle(c, h.Projects.Unarchive) }

func (h *ProjectHandler) toggle(c echo.Context, fn func(context.Context, *model.User, uint64) (*model.Project, error)) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	p, err := fn(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"project": p})
}

func (h *ProjectHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	if err := h.Projects.Delete(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "project deleted"})
}
