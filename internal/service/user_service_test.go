package service

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/artifact"
	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/queue"
)

func TestRegister_VerifyLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := RegisterInput{Email: "ana@example.com", Password: "secret123", Name: "Ana"}

	sess, created, err := f.users.Register(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, sess.Token)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, model.StatusPending, sess.User.Status)
	assert.Equal(t, queue.MailVerification, f.mail.last().Kind)

	// A pending account may be registered again and keeps its id.
	again, created, err := f.users.Register(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sess.User.ID, again.User.ID)

	principal, err := f.users.Authenticate(ctx, again.Token, true)
	require.NoError(t, err)
	_, err = f.users.Authenticate(ctx, again.Token, false)
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.users.VerifyEmail(ctx, principal, "000000")
	requireKind(t, err, apperr.KindInvalidCode)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 2, ae.Details["attempts"])

	verified, err := f.users.VerifyEmail(ctx, principal, "123456")
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, verified.Status)

	_, _, err = f.users.Register(ctx, in)
	requireKind(t, err, apperr.KindConflict)
}

func TestVerifyEmail_AttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess, _, err := f.users.Register(ctx, RegisterInput{Email: "bo@example.com", Password: "secret123"})
	require.NoError(t, err)

	for i := 0; i < MaxAttempts; i++ {
		p, err := f.users.Authenticate(ctx, sess.Token, true)
		require.NoError(t, err)
		_, err = f.users.VerifyEmail(ctx, p, "999999")
		requireKind(t, err, apperr.KindInvalidCode)
	}
	p, err := f.users.Authenticate(ctx, sess.Token, true)
	require.NoError(t, err)
	_, err = f.users.VerifyEmail(ctx, p, "123456")
	requireKind(t, err, apperr.KindAttemptsExhausted)

	// Registering again restores the attempts.
	sess, _, err = f.users.Register(ctx, RegisterInput{Email: "bo@example.com", Password: "secret123"})
	require.NoError(t, err)
	p, err = f.users.Authenticate(ctx, sess.Token, true)
	require.NoError(t, err)
	_, err = f.users.VerifyEmail(ctx, p, "123456")
	require.NoError(t, err)
}

func TestLogin_UniformFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _, err := f.users.Register(ctx, RegisterInput{Email: "cy@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = f.users.Login(ctx, "cy@example.com", "wrong-pass")
	requireKind(t, err, apperr.KindInvalidCredential)
	_, err = f.users.Login(ctx, "nobody@example.com", "secret123")
	requireKind(t, err, apperr.KindInvalidCredential)

	sess, err := f.users.Login(ctx, "CY@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess, _, err := f.users.Register(ctx, RegisterInput{Email: "di@example.com", Password: "secret123"})
	require.NoError(t, err)

	next, err := f.users.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, next.RefreshToken)

	_, err = f.users.Refresh(ctx, sess.RefreshToken)
	requireKind(t, err, apperr.KindInvalidCredential)

	require.NoError(t, f.users.Logout(ctx, next.RefreshToken))
	_, err = f.users.Refresh(ctx, next.RefreshToken)
	requireKind(t, err, apperr.KindInvalidCredential)
}

func TestForgotAndResetPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _, err := f.users.Register(ctx, RegisterInput{Email: "ed@example.com", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, f.users.ForgotPassword(ctx, "unknown@example.com"))
	require.NoError(t, f.users.ForgotPassword(ctx, "ed@example.com"))
	assert.Equal(t, queue.MailPasswordReset, f.mail.last().Kind)

	err = f.users.ResetPassword(ctx, "ed@example.com", "654321", "newsecret1")
	requireKind(t, err, apperr.KindInvalidCode)
	require.NoError(t, f.users.ResetPassword(ctx, "ed@example.com", "123456", "newsecret1"))

	// The code is single use.
	err = f.users.ResetPassword(ctx, "ed@example.com", "123456", "another123")
	requireKind(t, err, apperr.KindInvalidCode)

	_, err = f.users.Login(ctx, "ed@example.com", "newsecret1")
	require.NoError(t, err)
}

func TestInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	loner := f.member(t, "solo@example.com", "")
	_, err := f.users.Invite(ctx, loner, "mate@example.com")
	requireKind(t, err, apperr.KindPreconditionFailed)

	boss := f.member(t, "boss@example.com", "B1234567")
	guest, err := f.users.Invite(ctx, boss, "mate@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleGuest, guest.Role)
	assert.Equal(t, model.StatusPending, guest.Status)
	assert.Equal(t, "B1234567", guest.CompanyCIF())

	ev := f.mail.last()
	assert.Equal(t, queue.MailInvitation, ev.Kind)
	assert.Equal(t, "boss@example.com", ev.InvitedBy)

	_, err = f.users.Invite(ctx, boss, "mate@example.com")
	requireKind(t, err, apperr.KindConflict)

	// The invitation code sets the first password.
	require.NoError(t, f.users.ResetPassword(ctx, "mate@example.com", "123456", "guestpass1"))
	_, err = f.users.Login(ctx, "mate@example.com", "guestpass1")
	require.NoError(t, err)
}

func TestDispatchFailureDoesNotFailRegister(t *testing.T) {
	f := newFixture(t)
	f.mail.err = assert.AnError
	_, created, err := f.users.Register(context.Background(), RegisterInput{Email: "fy@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u := f.member(t, "gone@example.com", "")
	require.NoError(t, f.users.DeleteAccount(ctx, u, true))
	got, err := f.db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, got.Status)

	owner := f.member(t, "owner@example.com", "B1")
	mate := f.member(t, "mate@example.com", "B1")
	c, _, _ := f.workspace(t, owner)
	p, err := f.projects.Create(ctx, mate, ProjectInput{Name: "Mate", ProjectCode: "M-1", ClientID: c.ID})
	requireKind(t, err, apperr.KindNotFound)
	assert.Nil(t, p)

	require.NoError(t, f.users.DeleteAccount(ctx, owner, false))
	_, err = f.db.Clients().GetByID(ctx, c.ID)
	assert.Error(t, err)
}

func TestUpdateCompanyData_Freelancer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "free@example.com", "")
	_, err := f.users.UpdatePersonalData(ctx, u, PersonalInput{Name: "Lola", Lastname: "Gil", NIF: "1Z"})
	require.NoError(t, err)

	got, err := f.users.UpdateCompanyData(ctx, u, CompanyInput{CIF: "X1", Address: "Calle 1", IsFreelancer: true})
	require.NoError(t, err)
	assert.Equal(t, "Lola Gil", got.Company.Name)
	assert.Equal(t, "X1", got.CompanyCIF())
}

func TestUploadLogo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "logo@example.com", "")
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	_, err := f.users.UploadLogo(ctx, u, "logo.gif", png)
	requireKind(t, err, apperr.KindValidation)
	_, err = f.users.UploadLogo(ctx, u, "logo.png", []byte("plain text"))
	requireKind(t, err, apperr.KindValidation)
	_, err = f.users.UploadLogo(ctx, u, "logo.png", make([]byte, 1<<20+1))
	requireKind(t, err, apperr.KindValidation)

	got, err := f.users.UploadLogo(ctx, u, "logo.PNG", png)
	require.NoError(t, err)
	assert.Contains(t, got.LogoURL, "https://gw.test/ipfs/")
	_, ok := f.store.Bytes("logos/1.png")
	assert.True(t, ok)
}

// presigningStore hands out a new locator on every upload and fetch, the way
// presigned S3 links do.
type presigningStore struct {
	*artifact.MockStore
	mu       sync.Mutex
	signed   int
	fetchErr error
}

func (p *presigningStore) sign(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signed++
	return "https://s3.test/" + name + "?sig=" + strconv.Itoa(p.signed)
}

func (p *presigningStore) Upload(ctx context.Context, data []byte, name string) (artifact.Ref, error) {
	ref, err := p.MockStore.Upload(ctx, data, name)
	if err != nil {
		return ref, err
	}
	ref.Locator = p.sign(name)
	return ref, nil
}

func (p *presigningStore) Fetch(ctx context.Context, name string) (artifact.Ref, error) {
	if p.fetchErr != nil {
		return artifact.Ref{}, p.fetchErr
	}
	ref, err := p.MockStore.Fetch(ctx, name)
	if err != nil {
		return ref, err
	}
	ref.Locator = p.sign(name)
	return ref, nil
}

func TestProfileSignsLogoLocatorOnRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &presigningStore{MockStore: artifact.NewMockStore("")}
	users := NewUserService(f.db.Users(), f.db.Tokens(), f.mail, store, AuthConfig{
		JWTSecret: "test-secret", AccessTTLMin: 60, RefreshTTLDays: 1, BcryptCost: 4,
	})
	u := f.member(t, "logo@example.com", "")
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	_, err := users.UploadLogo(ctx, u, "logo.png", png)
	require.NoError(t, err)
	stored, err := f.db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	key := "logos/" + strconv.FormatUint(u.ID, 10) + ".png"
	assert.Equal(t, key, stored.LogoKey)

	first, err := users.Profile(ctx, u)
	require.NoError(t, err)
	second, err := users.Profile(ctx, u)
	require.NoError(t, err)
	assert.Contains(t, first.LogoURL, key)
	assert.NotEqual(t, stored.LogoURL, first.LogoURL)
	assert.NotEqual(t, first.LogoURL, second.LogoURL)

	store.fetchErr = errors.New("s3 unavailable")
	fallback, err := users.Profile(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, stored.LogoURL, fallback.LogoURL)
}
