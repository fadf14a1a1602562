package repository

import (
	"context"
	"time"

	"github.com/iliyamo/albaranes/internal/model"
)

// Scope is the visibility predicate of a principal: rows it created, plus
// rows stamped with its company CIF when that CIF is non-empty.
type Scope struct {
	UserID uint64
	CIF    string
}

type ClientFilter struct {
	Scope
	Archived bool
}

type ProjectFilter struct {
	CreatedBy uint64
	Archived  bool
}

// NoteFilter selects delivery notes. Deleted picks the soft-deleted view;
// Signed, when set, further narrows by signature state.
type NoteFilter struct {
	Scope
	Deleted bool
	Signed  *bool
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// ResetRegistration overwrites an unverified account with fresh
	// credentials. ErrConflict when the row is verified.
	ResetRegistration(ctx context.Context, u *model.User) error
	// DecrementAttempts consumes one verification attempt and returns what is
	// left. ErrConflict when none remain.
	DecrementAttempts(ctx context.Context, id uint64) (int, error)
	MarkVerified(ctx context.Context, id uint64) error
	SetResetCode(ctx context.Context, id uint64, code string, exp time.Time) error
	// ResetPassword replaces the hash only while code is still the live reset
	// code; it clears the code. ErrNotFound otherwise.
	ResetPassword(ctx context.Context, id uint64, code, hash string, now time.Time) error
	UpdateProfile(ctx context.Context, u *model.User) error
	SoftDelete(ctx context.Context, id uint64) error
	// HardDelete removes the account with everything it created.
	HardDelete(ctx context.Context, id uint64) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type ClientStore interface {
	Create(ctx context.Context, c *model.Client) error
	GetByID(ctx context.Context, id uint64) (*model.Client, error)
	// EmailTaken reports whether email is already used by a client within
	// scope, ignoring the client with id exclude.
	EmailTaken(ctx context.Context, email string, scope Scope, exclude uint64) (bool, error)
	List(ctx context.Context, f ClientFilter) ([]*model.Client, error)
	Update(ctx context.Context, c *model.Client) error
	SetArchived(ctx context.Context, id uint64, archived bool) error
	Delete(ctx context.Context, id uint64) error
}

type ProjectStore interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id uint64) (*model.Project, error)
	// Taken reports whether createdBy already owns a project with the given
	// project code or name, ignoring the project with id exclude.
	Taken(ctx context.Context, createdBy uint64, projectCode, name string, exclude uint64) (bool, error)
	List(ctx context.Context, f ProjectFilter) ([]*model.Project, error)
	Update(ctx context.Context, p *model.Project) error
	SetArchived(ctx context.Context, id uint64, archived bool) error
	Delete(ctx context.Context, id uint64) error
}

type DeliveryNoteStore interface {
	Create(ctx context.Context, n *model.DeliveryNote) error
	GetByID(ctx context.Context, id uint64) (*model.DeliveryNote, error)
	List(ctx context.Context, f NoteFilter) ([]*model.DeliveryNote, error)
	// Update rewrites the mutable fields of a present, unsigned note.
	// ErrConflict when the note got signed or deleted meanwhile.
	Update(ctx context.Context, n *model.DeliveryNote) error
	// MarkSigned flips signed and records the artifact reference in one
	// statement. ErrNotFound when the note is missing or soft-deleted.
	MarkSigned(ctx context.Context, id uint64, url, cid string) error
	SoftDelete(ctx context.Context, id uint64, at time.Time) error
	Restore(ctx context.Context, id uint64) error
	// Delete removes an unsigned note. ErrConflict when signed.
	Delete(ctx context.Context, id uint64) error
}
