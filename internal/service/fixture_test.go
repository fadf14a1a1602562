package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/artifact"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/queue"
	"github.com/iliyamo/albaranes/internal/repository/memory"
)

type recordingSender struct {
	mu     sync.Mutex
	events []queue.MailEvent
	err    error
}

func (r *recordingSender) Send(_ context.Context, ev queue.MailEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSender) last() queue.MailEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type stubRenderer struct{ err error }

func (r stubRenderer) Render(d *model.DeliveryNoteDetail) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 note " + d.Client.Name), nil
}

// flakyStore fails the first failures uploads, then delegates.
type flakyStore struct {
	*artifact.MockStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) Upload(ctx context.Context, data []byte, name string) (artifact.Ref, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return artifact.Ref{}, errors.New("gateway timeout")
	}
	return f.MockStore.Upload(ctx, data, name)
}

type fixture struct {
	db       *memory.DB
	mail     *recordingSender
	store    *flakyStore
	users    *UserService
	clients  *ClientService
	projects *ProjectService
	notes    *DeliveryNoteService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	mail := &recordingSender{}
	store := &flakyStore{MockStore: artifact.NewMockStore("https://gw.test/ipfs/")}
	users := NewUserService(db.Users(), db.Tokens(), mail, store, AuthConfig{
		JWTSecret: "test-secret", AccessTTLMin: 60, RefreshTTLDays: 1, BcryptCost: 4,
	})
	users.newCode = func() (string, error) { return "123456", nil }
	return &fixture{
		db: db, mail: mail, store: store, users: users,
		clients:  NewClientService(db.Clients()),
		projects: NewProjectService(db.Projects(), db.Clients()),
		notes: NewDeliveryNoteService(db.DeliveryNotes(), db.Clients(), db.Projects(), db.Users(),
			stubRenderer{}, store, time.Second),
	}
}

// member creates a verified user, optionally inside company cif.
func (f *fixture) member(t *testing.T, email, cif string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Status: model.StatusVerified, Role: model.RoleUser,
		Personal: model.PersonalData{Name: email}}
	if cif != "" {
		u.Company = &model.Company{Name: "Acme", CIF: cif}
	}
	require.NoError(t, f.db.Users().Create(context.Background(), u))
	return u
}

// workspace creates a client, a project for it and an hours note, all owned
// by u.
func (f *fixture) workspace(t *testing.T, u *model.User) (*model.Client, *model.Project, *model.DeliveryNote) {
	t.Helper()
	ctx := context.Background()
	c, err := f.clients.Create(ctx, u, ClientInput{Name: "Ruiz SL", Email: "ruiz@example.com"})
	require.NoError(t, err)
	p, err := f.projects.Create(ctx, u, ProjectInput{Name: "Reforma", ProjectCode: "OBRA-1", ClientID: c.ID})
	require.NoError(t, err)
	hours := 4.0
	n, err := f.notes.Create(ctx, u, NoteInput{
		ClientID: c.ID, ProjectID: p.ID, Format: model.FormatHours, Hours: &hours,
		Description: "Alicatado", WorkDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return c, p, n
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}
