package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/albaranes/internal/access"
	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/artifact"
	"github.com/iliyamo/albaranes/internal/logs"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/repository"
)

// Renderer turns a resolved delivery note into a printable document.
type Renderer interface {
	Render(d *model.DeliveryNoteDetail) ([]byte, error)
}

// NoteView selects which delivery notes List returns.
type NoteView int

const (
	ViewActive NoteView = iota
	ViewDeleted
	ViewSigned
	ViewUnsigned
)

// uploadAttempts bounds the artifact upload: one try plus one retry.
const uploadAttempts = 2

// DeliveryNoteService manages delivery notes and the signing pipeline.
type DeliveryNoteService struct {
	notes    repository.DeliveryNoteStore
	clients  repository.ClientStore
	projects repository.ProjectStore
	users    repository.UserStore
	renderer Renderer
	store    artifact.Store

	uploadTimeout time.Duration
	now           func() time.Time
}

func NewDeliveryNoteService(
	notes repository.DeliveryNoteStore,
	clients repository.ClientStore,
	projects repository.ProjectStore,
	users repository.UserStore,
	renderer Renderer,
	store artifact.Store,
	uploadTimeout time.Duration,
) *DeliveryNoteService {
	if uploadTimeout <= 0 {
		uploadTimeout = 15 * time.Second
	}
	return &DeliveryNoteService{
		notes: notes, clients: clients, projects: projects, users: users,
		renderer: renderer, store: store, uploadTimeout: uploadTimeout,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type NoteInput struct {
	ClientID    uint64
	ProjectID   uint64
	Format      string
	Material    *string
	Hours       *float64
	Description string
	WorkDate    time.Time
}

// Create checks that the client is visible to the principal and that the
// project is the principal's own and belongs to that client. The note is
// stamped with the principal's company CIF.
func (s *DeliveryNoteService) Create(ctx context.Context, principal *model.User, in NoteInput) (*model.DeliveryNote, error) {
	n := &model.DeliveryNote{
		ClientID: in.ClientID, ProjectID: in.ProjectID, Format: in.Format,
		Material: in.Material, Hours: in.Hours, Description: in.Description,
		WorkDate: in.WorkDate, CreatedBy: principal.ID, CompanyCIF: principal.CompanyCIF(),
	}
	if err := n.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	c, err := s.clients.GetByID(ctx, in.ClientID)
	if err != nil {
		return nil, fromStore(err, "client")
	}
	if !access.CanAccess(principal, c) {
		return nil, apperr.NotFound("client not found")
	}
	p, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, fromStore(err, "project")
	}
	if !access.CanAccessProject(principal, p) || p.ClientID != c.ID {
		return nil, apperr.NotFound("project not found for this client")
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, fromStore(err, "delivery note")
	}
	return n, nil
}

// Update edits an unsigned, present note.
func (s *DeliveryNoteService) Update(ctx context.Context, principal *model.User, id uint64, patch model.DeliveryNotePatch) (*model.DeliveryNote, error) {
	n, err := s.writable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if n.Deleted() {
		return nil, apperr.NotFound("delivery note not found")
	}
	if n.Signed {
		return nil, apperr.Conflict("a signed delivery note cannot be modified")
	}
	if err := patch.Conflicts(n.Format); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	patch.Apply(n)
	if err := n.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := s.notes.Update(ctx, n); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("a signed delivery note cannot be modified")
		}
		return nil, fromStore(err, "delivery note")
	}
	return s.reload(ctx, id)
}

// List returns the notes of a view with client, project and issuer resolved,
// like Get.
func (s *DeliveryNoteService) List(ctx context.Context, principal *model.User, view NoteView) ([]*model.DeliveryNoteDetail, error) {
	f := repository.NoteFilter{Scope: scopeOf(principal)}
	switch view {
	case ViewDeleted:
		f.Deleted = true
	case ViewSigned:
		signed := true
		f.Signed = &signed
	case ViewUnsigned:
		signed := false
		f.Signed = &signed
	}
	notes, err := s.notes.List(ctx, f)
	if err != nil {
		return nil, fromStore(err, "delivery note")
	}
	r := s.resolver()
	out := make([]*model.DeliveryNoteDetail, 0, len(notes))
	for _, n := range notes {
		d, err := r.detail(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Get returns a present note with its client, project and issuer resolved.
func (s *DeliveryNoteService) Get(ctx context.Context, principal *model.User, id uint64) (*model.DeliveryNoteDetail, error) {
	n, err := s.visible(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, n)
}

// SoftDelete hides a note from the active views. Signed notes may be
// soft-deleted.
func (s *DeliveryNoteService) SoftDelete(ctx context.Context, principal *model.User, id uint64) error {
	n, err := s.writable(ctx, principal, id)
	if err != nil {
		return err
	}
	if n.Deleted() {
		return apperr.NotFound("delivery note not found")
	}
	return fromStore(s.notes.SoftDelete(ctx, id, s.now()), "delivery note")
}

func (s *DeliveryNoteService) Restore(ctx context.Context, principal *model.User, id uint64) (*model.DeliveryNote, error) {
	n, err := s.writable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if !n.Deleted() {
		return nil, apperr.NotFound("no deleted delivery note with this id")
	}
	if err := s.notes.Restore(ctx, id); err != nil {
		return nil, fromStore(err, "delivery note")
	}
	return s.reload(ctx, id)
}

// Delete removes an unsigned note for good.
func (s *DeliveryNoteService) Delete(ctx context.Context, principal *model.User, id uint64) error {
	n, err := s.writable(ctx, principal, id)
	if err != nil {
		return err
	}
	if n.Signed {
		return apperr.Conflict("a signed delivery note cannot be deleted")
	}
	if err := s.notes.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperr.Conflict("a signed delivery note cannot be deleted")
		}
		return fromStore(err, "delivery note")
	}
	return nil
}

// Sign freezes the note: it renders the document, uploads it under
// {id}.pdf and only then flips signed together with the artifact reference.
// A note that is already signed is returned unchanged.
func (s *DeliveryNoteService) Sign(ctx context.Context, principal *model.User, id uint64) (*model.DeliveryNote, error) {
	n, err := s.visible(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if n.Signed {
		return n, nil
	}
	d, err := s.detail(ctx, n)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Render(d)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindArtifactGeneration, "could not render the delivery note", err)
	}
	ref, err := s.upload(ctx, data, artifact.NoteName(id))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindArtifactGeneration, "could not upload the signed document", err)
	}
	if err := s.notes.MarkSigned(ctx, id, ref.Locator, ref.ContentID); err != nil {
		return nil, fromStore(err, "delivery note")
	}
	logs.Logger.WithFields(logrus.Fields{"note_id": id, "cid": ref.ContentID}).Info("delivery note signed")
	return s.reload(ctx, id)
}

// SignedArtifact returns where the signed document of a note lives.
func (s *DeliveryNoteService) SignedArtifact(ctx context.Context, principal *model.User, id uint64) (artifact.Ref, error) {
	n, err := s.visible(ctx, principal, id)
	if err != nil {
		return artifact.Ref{}, err
	}
	if !n.Signed {
		return artifact.Ref{}, apperr.NotFound("delivery note is not signed")
	}
	fctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()
	ref, err := s.store.Fetch(fctx, artifact.NoteName(id))
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, artifact.ErrNotStored) && n.PDFURL != "":
		return artifact.Ref{Locator: n.PDFURL, ContentID: n.PDFCID}, nil
	case errors.Is(err, artifact.ErrNotStored):
		return artifact.Ref{}, apperr.NotFound("signed document not found")
	default:
		return artifact.Ref{}, apperr.Wrap(apperr.KindArtifactGeneration, "could not locate the signed document", err)
	}
}

func (s *DeliveryNoteService) upload(ctx context.Context, data []byte, name string) (artifact.Ref, error) {
	var lastErr error
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
		ref, err := s.store.Upload(actx, data, name)
		cancel()
		if err == nil {
			return ref, nil
		}
		lastErr = err
		logs.Logger.WithError(err).WithFields(logrus.Fields{"name": name, "attempt": attempt}).Warn("artifact upload failed")
		if ctx.Err() != nil {
			break
		}
	}
	return artifact.Ref{}, lastErr
}

func (s *DeliveryNoteService) detail(ctx context.Context, n *model.DeliveryNote) (*model.DeliveryNoteDetail, error) {
	return s.resolver().detail(ctx, n)
}

// noteResolver loads the records a note references, once per id. A list
// usually repeats the same client, project and creator.
type noteResolver struct {
	s        *DeliveryNoteService
	clients  map[uint64]*model.Client
	projects map[uint64]*model.Project
	users    map[uint64]*model.User
}

func (s *DeliveryNoteService) resolver() *noteResolver {
	return &noteResolver{
		s:        s,
		clients:  map[uint64]*model.Client{},
		projects: map[uint64]*model.Project{},
		users:    map[uint64]*model.User{},
	}
}

func (r *noteResolver) detail(ctx context.Context, n *model.DeliveryNote) (*model.DeliveryNoteDetail, error) {
	c, ok := r.clients[n.ClientID]
	if !ok {
		var err error
		if c, err = r.s.clients.GetByID(ctx, n.ClientID); err != nil {
			return nil, fromStore(err, "client")
		}
		r.clients[n.ClientID] = c
	}
	p, ok := r.projects[n.ProjectID]
	if !ok {
		var err error
		if p, err = r.s.projects.GetByID(ctx, n.ProjectID); err != nil {
			return nil, fromStore(err, "project")
		}
		r.projects[n.ProjectID] = p
	}
	u, ok := r.users[n.CreatedBy]
	if !ok {
		var err error
		if u, err = r.s.users.GetByID(ctx, n.CreatedBy); err != nil {
			return nil, fromStore(err, "user")
		}
		r.users[n.CreatedBy] = u
	}
	return &model.DeliveryNoteDetail{DeliveryNote: *n, Client: c, Project: p, Issuer: u}, nil
}

// visible loads a present note the principal can see. Absent, foreign and
// soft-deleted notes all read as NotFound.
func (s *DeliveryNoteService) visible(ctx context.Context, principal *model.User, id uint64) (*model.DeliveryNote, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "delivery note")
	}
	if n.Deleted() || !access.CanAccess(principal, n) {
		return nil, apperr.NotFound("delivery note not found")
	}
	return n, nil
}

func (s *DeliveryNoteService) writable(ctx context.Context, principal *model.User, id uint64) (*model.DeliveryNote, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "delivery note")
	}
	if !access.CanAccess(principal, n) {
		return nil, apperr.Forbidden("you have no rights over this delivery note")
	}
	return n, nil
}

func (s *DeliveryNoteService) reload(ctx context.Context, id uint64) (*model.DeliveryNote, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "delivery note")
	}
	return n, nil
}
