package memory

import (
	"context"
	"time"

	"github.com/iliyamo/albaranes/internal/access"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/repository"
)

// scopeUser builds a throwaway principal so the in-memory filters share the
// ownership predicate with the service layer.
func scopeUser(s repository.Scope) *model.User {
	u := &model.User{ID: s.UserID}
	if s.CIF != "" {
		u.Company = &model.Company{CIF: s.CIF}
	}
	return u
}

type ClientStore struct{ db *DB }

func (s *ClientStore) Create(_ context.Context, c *model.Client) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if c.Email != "" {
		for _, o := range s.db.client {
			if o.Email == c.Email && o.CreatedBy == c.CreatedBy && o.CompanyCIF == c.CompanyCIF {
				return repository.ErrConflict
			}
		}
	}
	c.ID = s.db.nextID()
	c.CreatedAt = s.db.now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	s.db.client[c.ID] = &cp
	return nil
}

func (s *ClientStore) GetByID(_ context.Context, id uint64) (*model.Client, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.client[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *ClientStore) EmailTaken(_ context.Context, email string, sc repository.Scope, exclude uint64) (bool, error) {
	if email == "" {
		return false, nil
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p := scopeUser(sc)
	for _, c := range s.db.client {
		if c.ID != exclude && c.Email == email && access.CanAccess(p, c) {
			return true, nil
		}
	}
	return false, nil
}

func (s *ClientStore) List(_ context.Context, f repository.ClientFilter) ([]*model.Client, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p := scopeUser(f.Scope)
	out := []*model.Client{}
	for _, c := range s.db.client {
		if c.Archived == f.Archived && access.CanAccess(p, c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	byIDDesc(out, func(c *model.Client) uint64 { return c.ID })
	return out, nil
}

func (s *ClientStore) Update(_ context.Context, in *model.Client) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.client[in.ID]
	if !ok {
		return repository.ErrNotFound
	}
	c.Name, c.Email, c.Phone, c.NIF, c.Address = in.Name, in.Email, in.Phone, in.NIF, in.Address
	c.UpdatedAt = s.db.now()
	return nil
}

func (s *ClientStore) SetArchived(_ context.Context, id uint64, archived bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.client[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Archived = archived
	c.UpdatedAt = s.db.now()
	return nil
}

func (s *ClientStore) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.client[id]; !ok {
		return repository.ErrNotFound
	}
	for _, p := range s.db.proj {
		if p.ClientID == id {
			return repository.ErrInUse
		}
	}
	for _, n := range s.db.notes {
		if n.ClientID == id {
			return repository.ErrInUse
		}
	}
	delete(s.db.client, id)
	return nil
}

type ProjectStore struct{ db *DB }

func (s *ProjectStore) Create(_ context.Context, p *model.Project) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.client[p.ClientID]; !ok {
		return repository.ErrNotFound
	}
	if s.takenLocked(p.CreatedBy, p.ProjectCode, p.Name, 0) {
		return repository.ErrConflict
	}
	p.ID = s.db.nextID()
	p.CreatedAt = s.db.now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.db.proj[p.ID] = &cp
	return nil
}

func (s *ProjectStore) GetByID(_ context.Context, id uint64) (*model.Project, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.proj[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *ProjectStore) takenLocked(createdBy uint64, code, name string, exclude uint64) bool {
	for _, p := range s.db.proj {
		if p.ID != exclude && p.CreatedBy == createdBy && (p.ProjectCode == code || p.Name == name) {
			return true
		}
	}
	return false
}

func (s *ProjectStore) Taken(_ context.Context, createdBy uint64, code, name string, exclude uint64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.takenLocked(createdBy, code, name, exclude), nil
}

func (s *ProjectStore) List(_ context.Context, f repository.ProjectFilter) ([]*model.Project, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []*model.Project{}
	for _, p := range s.db.proj {
		if p.CreatedBy == f.CreatedBy && p.Archived == f.Archived {
			cp := *p
			out = append(out, &cp)
		}
	}
	byIDDesc(out, func(p *model.Project) uint64 { return p.ID })
	return out, nil
}

func (s *ProjectStore) Update(_ context.Context, in *model.Project) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.proj[in.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.takenLocked(p.CreatedBy, in.ProjectCode, in.Name, in.ID) {
		return repository.ErrConflict
	}
	p.Name, p.ProjectCode, p.Code, p.Email = in.Name, in.ProjectCode, in.Code, in.Email
	p.Address, p.ClientID = in.Address, in.ClientID
	p.UpdatedAt = s.db.now()
	return nil
}

func (s *ProjectStore) SetArchived(_ context.Context, id uint64, archived bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.proj[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Archived = archived
	p.UpdatedAt = s.db.now()
	return nil
}

func (s *ProjectStore) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.proj[id]; !ok {
		return repository.ErrNotFound
	}
	for _, n := range s.db.notes {
		if n.ProjectID == id {
			return repository.ErrInUse
		}
	}
	delete(s.db.proj, id)
	return nil
}

type DeliveryNoteStore struct{ db *DB }

func cloneNote(n *model.DeliveryNote) *model.DeliveryNote {
	cp := *n
	if n.Material != nil {
		m := *n.Material
		cp.Material = &m
	}
	if n.Hours != nil {
		h := *n.Hours
		cp.Hours = &h
	}
	if n.DeletedAt != nil {
		t := *n.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

func (s *DeliveryNoteStore) Create(_ context.Context, n *model.DeliveryNote) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.client[n.ClientID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.db.proj[n.ProjectID]; !ok {
		return repository.ErrNotFound
	}
	n.ID = s.db.nextID()
	n.Signed = false
	n.DeletedAt = nil
	n.CreatedAt = s.db.now()
	n.UpdatedAt = n.CreatedAt
	s.db.notes[n.ID] = cloneNote(n)
	return nil
}

func (s *DeliveryNoteStore) GetByID(_ context.Context, id uint64) (*model.DeliveryNote, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneNote(n), nil
}

func (s *DeliveryNoteStore) List(_ context.Context, f repository.NoteFilter) ([]*model.DeliveryNote, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p := scopeUser(f.Scope)
	out := []*model.DeliveryNote{}
	for _, n := range s.db.notes {
		if n.Deleted() != f.Deleted || !access.CanAccess(p, n) {
			continue
		}
		if f.Signed != nil && n.Signed != *f.Signed {
			continue
		}
		out = append(out, cloneNote(n))
	}
	byIDDesc(out, func(n *model.DeliveryNote) uint64 { return n.ID })
	return out, nil
}

func (s *DeliveryNoteStore) Update(_ context.Context, in *model.DeliveryNote) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notes[in.ID]
	if !ok || n.Signed || n.Deleted() {
		return repository.ErrConflict
	}
	upd := cloneNote(in)
	n.Format, n.Material, n.Hours = upd.Format, upd.Material, upd.Hours
	n.Description, n.WorkDate = upd.Description, upd.WorkDate
	n.UpdatedAt = s.db.now()
	return nil
}

func (s *DeliveryNoteStore) MarkSigned(_ context.Context, id uint64, url, cid string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notes[id]
	if !ok || n.Deleted() {
		return repository.ErrNotFound
	}
	n.Signed, n.PDFURL, n.PDFCID = true, url, cid
	n.UpdatedAt = s.db.now()
	return nil
}

func (s *DeliveryNoteStore) SoftDelete(_ context.Context, id uint64, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notes[id]
	if !ok || n.Deleted() {
		return repository.ErrNotFound
	}
	at = at.UTC()
	n.DeletedAt = &at
	return nil
}

func (s *DeliveryNoteStore) Restore(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notes[id]
	if !ok || !n.Deleted() {
		return repository.ErrNotFound
	}
	n.DeletedAt = nil
	return nil
}

func (s *DeliveryNoteStore) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notes[id]
	if !ok {
		return repository.ErrNotFound
	}
	if n.Signed {
		return repository.ErrConflict
	}
	delete(s.db.notes, id)
	return nil
}
