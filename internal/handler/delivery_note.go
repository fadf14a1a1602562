package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/albaranes/internal/middleware"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/service"
)

type DeliveryNoteHandler struct {
	Notes *service.DeliveryNoteService
}

func NewDeliveryNoteHandler(notes *service.DeliveryNoteService) *DeliveryNoteHandler {
	return &DeliveryNoteHandler{Notes: notes}
}

type noteReq struct {
	ClientID    uint64   `json:"clientId"`
	ProjectID   uint64   `json:"projectId"`
	Format      string   `json:"format"`
	Material    *string  `json:"material"`
	Hours       *float64 `json:"hours"`
	Description string   `json:"description"`
	WorkDate    string   `json:"workdate"`
}

type notePatchReq struct {
	Format      *string  `json:"format"`
	Material    *string  `json:"material"`
	Hours       *float64 `json:"hours"`
	Description *string  `json:"description"`
	WorkDate    *string  `json:"workdate"`
}

func checkFormat(p *problems, format string) {
	if format != model.FormatMaterial && format != model.FormatHours {
		p.addf(`format must be either "material" or "hours"`)
	}
}

func (h *DeliveryNoteHandler) Create(c echo.Context) error {
	var req noteReq
	if err := bind(c, &req); err != nil {
		return err
	}
	var p problems
	if req.ClientID == 0 {
		p.addf("clientId is required")
	}
	if req.ProjectID == 0 {
		p.addf("projectId is required")
	}
	checkFormat(&p, req.Format)
	switch req.Format {
	case model.FormatMaterial:
		if req.Material == nil || strings.TrimSpace(*req.Material) == "" {
			p.addf("material is required")
		}
	case model.FormatHours:
		if req.Hours == nil {
			p.addf("hours is required")
		}
	}
	p.required("description", req.Description)
	workDate, okDate := parseDate(req.WorkDate)
	if !okDate {
		p.addf("workdate must be a valid date")
	}
	if err := p.err(); err != nil {
		return err
	}

	ctx, cancel := opContext(c)
	defer cancel()
	n, err := h.Notes.Create(ctx, middleware.Principal(c), service.NoteInput{
		ClientID: req.ClientID, ProjectID: req.ProjectID, Format: req.Format,
		Material: req.Material, Hours: req.Hours, Description: strings.TrimSpace(req.Description),
		WorkDate: workDate,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{"deliveryNote": n})
}

// Update applies a partial edit to an unsigned note.
func (h *DeliveryNoteHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req notePatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	patch := model.DeliveryNotePatch{Format: req.Format, Material: req.Material, Hours: req.Hours, Description: req.Description}
	var p problems
	if req.Format != nil {
		checkFormat(&p, *req.Format)
	}
	if req.WorkDate != nil {
		if t, ok := parseDate(*req.WorkDate); ok {
			patch.WorkDate = &t
		} else {
			p.addf("workdate must be a valid date")
		}
	}
	if err := p.err(); err != nil {
		return err
	}

	ctx, cancel := opContext(c)
	defer cancel()
	n, err := h.Notes.Update(ctx, middleware.Principal(c), id, patch)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"deliveryNote": n})
}

func (h *DeliveryNoteHandler) List(c echo.Context) error     { return h.list(c, service.ViewActive) }
func (h *DeliveryNoteHandler) Deleted(c echo.Context) error  { return h.list(c, service.ViewDeleted) }
func (h *DeliveryNoteHandler) Signed(c echo.Context) error   { return h.list(c, service.ViewSigned) }
func (h *DeliveryNoteHandler) Unsigned(c echo.Context) error { return h.list(c, service.ViewUnsigned) }

func (h *DeliveryNoteHandler) list(c echo.Context, view service.NoteView) error {
	ctx, cancel := opContext(c)
	defer cancel()
	out, err := h.Notes.List(ctx, middleware.Principal(c), view)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"deliveryNotes": out})
}

// Get returns the note with client, project and issuer populated.
func (h *DeliveryNoteHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	d, err := h.Notes.Get(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"deliveryNote": d})
}

func (h *DeliveryNoteHandler) PDF(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	ref, err := h.Notes.SignedArtifact(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"pdf": ref})
}

func (h *DeliveryNoteHandler) Sign(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	n, err := h.Notes.Sign(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "delivery note signed", "deliveryNote": n})
}

// SoftDelete backs DELETE /:id/archive.
func (h *DeliveryNoteHandler) SoftDelete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	if err := h.Notes.SoftDelete(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "delivery note archived"})
}

func (h *DeliveryNoteHandler) Restore(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	n, err := h.Notes.Restore(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "delivery note restored", "deliveryNote": n})
}

func (h *DeliveryNoteHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(c)
	defer cancel()
	if err := h.Notes.Delete(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"message": "delivery note deleted permanently"})
}
