package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/albaranes/internal/model"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *UserRepo, *ClientRepo, *ProjectRepo, *DeliveryNoteRepo) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, func() *UserRepo { return NewUserRepo(db) }, NewClientRepo(db), NewProjectRepo(db), NewDeliveryNoteRepo(db)
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(&mysql.MySQLError{Number: 1062}), ErrConflict)
	assert.ErrorIs(t, translate(&mysql.MySQLError{Number: 1451}), ErrInUse)
	other := &mysql.MySQLError{Number: 1213}
	assert.Equal(t, error(other), translate(other))
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	mock, users, _, _, _ := newMock(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := users().Create(context.Background(), &model.User{Email: " A@X.com ", Status: model.StatusPending, Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateNormalizesEmail(t *testing.T) {
	mock, users, _, _, _ := newMock(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("a@x.com", sqlmock.AnyArg(), model.StatusPending, model.RoleUser, "123456", 3,
			sqlmock.AnyArg(), sqlmock.AnyArg(), "A", "", "", 30, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(9, 1))

	u := &model.User{Email: " A@X.com ", PasswordHash: "h", Status: model.StatusPending, Role: model.RoleUser,
		Code: "123456", Attempts: 3, Personal: model.PersonalData{Name: "A", Age: 30}}
	require.NoError(t, users().Create(context.Background(), u))
	assert.Equal(t, uint64(9), u.ID)
	assert.Equal(t, "a@x.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByIDScansCompany(t *testing.T) {
	mock, users, _, _, _ := newMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "status", "role", "code", "attempts",
		"reset_code", "reset_code_expiration", "name", "lastname", "nif", "age", "company_name",
		"company_cif", "company_address", "logo_url", "logo_key", "created_at", "updated_at"}).
		AddRow(1, "a@x.com", "h", "verified", "user", "111111", 3, nil, nil, "Ana", "Lopez", "X1", 30,
			"Acme", "B123", "Calle 1", "", "logos/1.png", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).WithArgs(uint64(1)).WillReturnRows(rows)

	u, err := users().GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "B123", u.CompanyCIF())
	assert.Nil(t, u.ResetCodeExpiration)
	assert.Equal(t, "Ana Lopez", u.DisplayName())
	assert.Equal(t, "logos/1.png", u.LogoKey)
}

func TestUserRepo_UpdateProfileWritesLogoKey(t *testing.T) {
	mock, users, _, _, _ := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("logo_url=?, logo_key=? WHERE id=?")).
		WithArgs("Ana", "", "", 0, nil, nil, nil, "https://s3.test/logos/4.png?sig", "logos/4.png", uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := users().UpdateProfile(context.Background(), &model.User{ID: 4, Personal: model.PersonalData{Name: "Ana"},
		LogoURL: "https://s3.test/logos/4.png?sig", LogoKey: "logos/4.png"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmailMissing(t *testing.T) {
	mock, users, _, _, _ := newMock(t)
	mock.ExpectQuery("FROM users WHERE email").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := users().GetByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_DecrementAttempts(t *testing.T) {
	mock, users, _, _, _ := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET attempts=attempts-1").WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT attempts FROM users").WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))
	mock.ExpectCommit()

	left, err := users().DecrementAttempts(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, left)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_DecrementAttemptsExhausted(t *testing.T) {
	mock, users, _, _, _ := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET attempts=attempts-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := users().DecrementAttempts(context.Background(), 4)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_HardDeleteInTx(t *testing.T) {
	mock, users, _, _, _ := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM delivery_notes").WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM projects").WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM clients").WithArgs(uint64(3)).
		WillReturnError(&mysql.MySQLError{Number: 1451})
	mock.ExpectRollback()

	err := users().HardDelete(context.Background(), 3)
	assert.ErrorIs(t, err, ErrInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepo_ListUsesVisibilityPredicate(t *testing.T) {
	mock, _, clients, _, _ := newMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "email", "phone", "nif", "street", "number", "postal",
		"city", "province", "archived", "created_by", "company_cif", "created_at", "updated_at"}).
		AddRow(2, "C2", nil, "", "", "Gran Via", 1, "28013", "Madrid", "Madrid", false, 8, "B123", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE archived=? AND (created_by = ? OR (? <> '' AND company_cif = ?))")).
		WithArgs(false, uint64(5), "B123", "B123").WillReturnRows(rows)

	out, err := clients.List(context.Background(), ClientFilter{Scope: Scope{UserID: 5, CIF: "B123"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Email)
	assert.Equal(t, uint64(8), out[0].CreatedBy)
}

func TestClientRepo_EmailTakenSkipsEmpty(t *testing.T) {
	mock, _, clients, _, _ := newMock(t)
	taken, err := clients.EmailTaken(context.Background(), "", Scope{UserID: 1}, 0)
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepo_DeleteReferenced(t *testing.T) {
	mock, _, clients, _, _ := newMock(t)
	mock.ExpectExec("DELETE FROM clients").WithArgs(uint64(1)).
		WillReturnError(&mysql.MySQLError{Number: 1451})

	assert.ErrorIs(t, clients.Delete(context.Background(), 1), ErrInUse)
}

func TestProjectRepo_Taken(t *testing.T) {
	mock, _, _, projects, _ := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("(project_code=? OR name=?)")).
		WithArgs(uint64(1), uint64(0), "P-1", "Reforma").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	taken, err := projects.Taken(context.Background(), 1, "P-1", "Reforma", 0)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestDeliveryNoteRepo_ConditionalTransitions(t *testing.T) {
	mock, _, _, _, notes := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("SET signed=1, pdf_url=?, pdf_cid=?")).
		WithArgs("https://x/abc", "abc", uint64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, notes.MarkSigned(ctx, 7, "https://x/abc", "abc"), ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM delivery_notes WHERE id=? AND signed=0")).
		WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, notes.Delete(ctx, 7), ErrConflict)

	mock.ExpectExec(regexp.QuoteMeta("SET deleted_at=NULL WHERE id=? AND deleted_at IS NOT NULL")).
		WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, notes.Restore(ctx, 7))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryNoteRepo_ListSignedFilter(t *testing.T) {
	mock, _, _, _, notes := newMock(t)
	signed := true
	mock.ExpectQuery(regexp.QuoteMeta("deleted_at IS NULL AND signed=?")).
		WithArgs(uint64(1), "", "", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	out, err := notes.List(context.Background(), NoteFilter{Scope: Scope{UserID: 1}, Signed: &signed})
	require.NoError(t, err)
	assert.Empty(t, out)
}
