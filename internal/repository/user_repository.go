package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/albaranes/internal/dbx"
	"github.com/iliyamo/albaranes/internal/model"
)

// UserRepo is the MySQL UserStore.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, status, role, code, attempts, reset_code,
	reset_code_expiration, name, lastname, nif, age, company_name, company_cif, company_address,
	logo_url, logo_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                          model.User
		resetCode                  sql.NullString
		resetExp                   sql.NullTime
		compName, compCIF, compAdr sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.Role, &u.Code, &u.Attempts,
		&resetCode, &resetExp, &u.Personal.Name, &u.Personal.Lastname, &u.Personal.NIF, &u.Personal.Age,
		&compName, &compCIF, &compAdr, &u.LogoURL, &u.LogoKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.ResetCode = resetCode.String
	if resetExp.Valid {
		t := resetExp.Time
		u.ResetCodeExpiration = &t
	}
	if compCIF.Valid || compName.Valid {
		u.Company = &model.Company{Name: compName.String, CIF: compCIF.String, Address: compAdr.String}
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func companyArgs(c *model.Company) (name, cif, addr sql.NullString) {
	if c == nil {
		return
	}
	return sql.NullString{String: c.Name, Valid: true}, sql.NullString{String: c.CIF, Valid: true},
		sql.NullString{String: c.Address, Valid: true}
}

// Create inserts u and fills its ID. ErrEmailExists when the email is taken.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	name, cif, addr := companyArgs(u.Company)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, status, role, code, attempts, reset_code,
			reset_code_expiration, name, lastname, nif, age, company_name, company_cif, company_address)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.Email, u.PasswordHash, u.Status, u.Role, u.Code, u.Attempts, nullString(u.ResetCode),
		u.ResetCodeExpiration, u.Personal.Name, u.Personal.Lastname, u.Personal.NIF, u.Personal.Age,
		name, cif, addr)
	if err != nil {
		if errors.Is(translate(err), ErrConflict) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email)))
}

func (r *UserRepo) ResetRegistration(ctx context.Context, u *model.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash=?, status='pending', role=?, code=?, attempts=?,
			reset_code=NULL, reset_code_expiration=NULL, name=?, lastname='', nif='', age=?,
			company_name=NULL, company_cif=NULL, company_address=NULL, logo_url='', logo_key=''
		 WHERE id=? AND status<>'verified'`,
		u.PasswordHash, u.Role, u.Code, u.Attempts, u.Personal.Name, u.Personal.Age, u.ID)
	return expectOne(res, err, ErrConflict)
}

func (r *UserRepo) DecrementAttempts(ctx context.Context, id uint64) (int, error) {
	var left int
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE users SET attempts=attempts-1 WHERE id=? AND attempts>0", id)
		if err := expectOne(res, err, ErrConflict); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT attempts FROM users WHERE id=?", id).Scan(&left)
	})
	return left, err
}

func (r *UserRepo) MarkVerified(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET status='verified' WHERE id=? AND status<>'deleted'", id)
	return expectOne(res, err, ErrNotFound)
}

func (r *UserRepo) SetResetCode(ctx context.Context, id uint64, code string, exp time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET reset_code=?, reset_code_expiration=? WHERE id=?", code, exp.UTC(), id)
	return expectOne(res, err, ErrNotFound)
}

func (r *UserRepo) ResetPassword(ctx context.Context, id uint64, code, hash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash=?, reset_code=NULL, reset_code_expiration=NULL
		 WHERE id=? AND reset_code=? AND reset_code_expiration > ?`,
		hash, id, code, now.UTC())
	return expectOne(res, err, ErrNotFound)
}

// UpdateProfile writes the onboarding fields (personal, company, logo).
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	name, cif, addr := companyArgs(u.Company)
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name=?, lastname=?, nif=?, age=?, company_name=?, company_cif=?,
			company_address=?, logo_url=?, logo_key=? WHERE id=?`,
		u.Personal.Name, u.Personal.Lastname, u.Personal.NIF, u.Personal.Age, name, cif, addr,
		u.LogoURL, u.LogoKey, u.ID)
	return expectOne(res, err, ErrNotFound)
}

func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET status='deleted' WHERE id=?", id)
	return expectOne(res, err, ErrNotFound)
}

// HardDelete removes the user's delivery notes, projects and clients before
// the account itself so the RESTRICT foreign keys never fire mid-cascade. A
// colleague's note that still references one of these clients yields ErrInUse.
func (r *UserRepo) HardDelete(ctx context.Context, id uint64) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, q := range []string{
			"DELETE FROM delivery_notes WHERE created_by=?",
			"DELETE FROM projects WHERE created_by=?",
			"DELETE FROM clients WHERE created_by=?",
			"DELETE FROM refresh_tokens WHERE user_id=?",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return translate(err)
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
		return expectOne(res, err, ErrNotFound)
	})
}

// expectOne turns an Exec result into miss when no row matched.
func expectOne(res sql.Result, err error, miss error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return miss
	}
	return nil
}
