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

type ClientHandler struct {
	Clients *service.ClientService
}

func NewClientHandler(clients *service.ClientService) *ClientHandler {
	return &ClientHandler{Clients: clients}
}

type clientReq struct {
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Phone   string      `json:"phone"`
	NIF     string      `json:"nif"`
	Address *addressReq `json:"address"`
}

func (r *clientReq) check() error {
	r.Email = normEmail(r.Email)
	var p problems
	p.required("name", r.Name)
	p.email("email", r.Email, true)
	p.address(r.Address)
	return p.err()
}

func (h *ClientHandler) Create(c echo.Context) error {
	var req clientReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.check(); err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	cl, err := h.Clients.Create(ctx, middleware.Principal(c), service.ClientInput{
		Name: strings.TrimSpace(req.Name), Email: req.Email, Phone: req.Phone, NIF: req.NIF,
		Address: req.Address.model(),
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{"client": cl})
}

// Update replaces the mutable fields with the validated body.
func (h *ClientHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req clientReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.check(); err != nil {
		return err
	}
	name := strings.TrimSpace(req.Name)
	addr := req.Address.model()
	patch := model.ClientPatch{Name: &name, Email: &req.Email, Phone: &req.Phone, NIF: &req.NIF, Address: &addr}

	ctx, cancel := opContext(c)
	defer cancel()
	cl, err := h.Clients.Update(ctx, middleware.Principal(c), id, patch)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"client": cl})
}

func (h *ClientHandler) List(c echo.Context) error     { return h.list(c, false) }
func (h *ClientHandler) Archived(c echo.Context) error { return h.list(c, true) }

func (h *ClientHandler) list(c echo.Context, archived bool) error {
	ctx, cancel := opContext(c)
	defer cancel()
	out, err := h.Clients.List(ctx, middleware.Principal(c), archived)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"clients": out})
}

func (h *ClientHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	cl, err := h.Clients.Get(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"client": cl})
}

func (h *ClientHandler) Archive(c echo.Context) error {
	return h.toggle(c, h.Clients.Archive)
}

func (h *ClientHandler) Unarchive(c echo.Context) error {
	return h.toggle(c, h.Clients.Unarchive)
}

func (h *ClientHandler) toggle(c echo.Context, fn func(context.Context, *model.User, uint64) (*model.Client, error)) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	cl, err := fn(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"client": cl})
}

func (h *ClientHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	if err := h.Clients.Delete(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "client deleted"})
}
