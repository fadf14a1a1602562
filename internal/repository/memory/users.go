package memory

import (
	"context"
	"time"

	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/repository"
)

type UserStore struct{ db *DB }

func cloneUser(u *model.User) *model.User {
	cp := *u
	if u.Company != nil {
		c := *u.Company
		cp.Company = &c
	}
	if u.ResetCodeExpiration != nil {
		t := *u.ResetCodeExpiration
		cp.ResetCodeExpiration = &t
	}
	return &cp
}

func (s *UserStore) Create(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u.Email = normalizeEmail(u.Email)
	for _, existing := range s.db.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	u.ID = s.db.nextID()
	u.CreatedAt = s.db.now()
	u.UpdatedAt = u.CreatedAt
	s.db.users[u.ID] = cloneUser(u)
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	email = normalizeEmail(email)
	for _, u := range s.db.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) ResetRegistration(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.users[u.ID]
	if !ok || cur.Status == model.StatusVerified {
		return repository.ErrConflict
	}
	cur.PasswordHash = u.PasswordHash
	cur.Status = model.StatusPending
	cur.Role = u.Role
	cur.Code = u.Code
	cur.Attempts = u.Attempts
	cur.ResetCode = ""
	cur.ResetCodeExpiration = nil
	cur.Personal = model.PersonalData{Name: u.Personal.Name, Age: u.Personal.Age}
	cur.Company = nil
	cur.LogoURL = ""
	cur.LogoKey = ""
	cur.UpdatedAt = s.db.now()
	return nil
}

func (s *UserStore) DecrementAttempts(_ context.Context, id uint64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.Attempts <= 0 {
		return 0, repository.ErrConflict
	}
	u.Attempts--
	return u.Attempts, nil
}

func (s *UserStore) MarkVerified(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.Status == model.StatusDeleted {
		return repository.ErrNotFound
	}
	u.Status = model.StatusVerified
	return nil
}

func (s *UserStore) SetResetCode(_ context.Context, id uint64, code string, exp time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	exp = exp.UTC()
	u.ResetCode = code
	u.ResetCodeExpiration = &exp
	return nil
}

func (s *UserStore) ResetPassword(_ context.Context, id uint64, code, hash string, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.ResetCode == "" || u.ResetCode != code ||
		u.ResetCodeExpiration == nil || !u.ResetCodeExpiration.After(now) {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.ResetCode = ""
	u.ResetCodeExpiration = nil
	return nil
}

func (s *UserStore) UpdateProfile(_ context.Context, in *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[in.ID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Personal = in.Personal
	u.Company = nil
	if in.Company != nil {
		c := *in.Company
		u.Company = &c
	}
	u.LogoURL = in.LogoURL
	u.LogoKey = in.LogoKey
	u.UpdatedAt = s.db.now()
	return nil
}

func (s *UserStore) SoftDelete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Status = model.StatusDeleted
	return nil
}

func (s *UserStore) HardDelete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	// A colleague's note pointing at one of this user's clients or projects
	// blocks the whole delete, as the RESTRICT keys do in MySQL.
	for _, n := range s.db.notes {
		if n.CreatedBy == id {
			continue
		}
		if c, ok := s.db.client[n.ClientID]; ok && c.CreatedBy == id {
			return repository.ErrInUse
		}
		if p, ok := s.db.proj[n.ProjectID]; ok && p.CreatedBy == id {
			return repository.ErrInUse
		}
	}
	for nid, n := range s.db.notes {
		if n.CreatedBy == id {
			delete(s.db.notes, nid)
		}
	}
	for pid, p := range s.db.proj {
		if p.CreatedBy == id {
			delete(s.db.proj, pid)
		}
	}
	for cid, c := range s.db.client {
		if c.CreatedBy == id {
			delete(s.db.client, cid)
		}
	}
	for h, t := range s.db.tokens {
		if t.UserID == id {
			delete(s.db.tokens, h)
		}
	}
	delete(s.db.users, id)
	return nil
}

type TokenStore struct{ db *DB }

func (s *TokenStore) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, dup := s.db.tokens[tokenHash]; dup {
		return repository.ErrConflict
	}
	s.db.tokens[tokenHash] = &model.RefreshToken{
		ID: s.db.nextID(), UserID: userID, TokenHash: tokenHash, ExpiresAt: exp.UTC(), CreatedAt: s.db.now(),
	}
	return nil
}

func (s *TokenStore) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || s.db.now().After(t.ExpiresAt) {
		return 0, repository.ErrNotFound
	}
	return t.UserID, nil
}

func (s *TokenStore) RevokeByHash(_ context.Context, tokenHash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tokens[tokenHash]
	if !ok || t.RevokedAt != nil {
		return repository.ErrNotFound
	}
	now := s.db.now()
	t.RevokedAt = &now
	return nil
}

func (s *TokenStore) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := s.db.now()
	for _, t := range s.db.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}
