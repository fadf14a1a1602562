package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/albaranes/internal/dbx"
	"github.com/iliyamo/albaranes/internal/model"
)

// ClientRepo is the MySQL ClientStore.
type ClientRepo struct{ db dbx.DBTX }

func NewClientRepo(db dbx.DBTX) *ClientRepo { return &ClientRepo{db: db} }

const clientColumns = `id, name, email, phone, nif, street, number, postal, city, province, archived,
	created_by, company_cif, created_at, updated_at`

// visible is the SQL form of the ownership predicate; it takes the scope as
// (user id, cif, cif).
const visible = `(created_by = ? OR (? <> '' AND company_cif = ?))`

func scanClient(row rowScanner) (*model.Client, error) {
	var (
		c     model.Client
		email sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &email, &c.Phone, &c.NIF, &c.Address.Street, &c.Address.Number,
		&c.Address.Postal, &c.Address.City, &c.Address.Province, &c.Archived, &c.CreatedBy,
		&c.CompanyCIF, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Email = email.String
	return &c, nil
}

// Create inserts c and re-reads it so timestamps are populated.
func (r *ClientRepo) Create(ctx context.Context, c *model.Client) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (name, email, phone, nif, street, number, postal, city, province,
			archived, created_by, company_cif) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.Name, nullString(c.Email), c.Phone, c.NIF, c.Address.Street, c.Address.Number, c.Address.Postal,
		c.Address.City, c.Address.Province, c.Archived, c.CreatedBy, c.CompanyCIF)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (*model.Client, error) {
	return scanClient(r.db.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE id=?", id))
}

func (r *ClientRepo) EmailTaken(ctx context.Context, email string, s Scope, exclude uint64) (bool, error) {
	if email == "" {
		return false, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clients WHERE email=? AND id<>? AND "+visible,
		email, exclude, s.UserID, s.CIF, s.CIF).Scan(&n)
	return n > 0, err
}

// List returns the clients visible to the scope, newest first.
func (r *ClientRepo) List(ctx context.Context, f ClientFilter) ([]*model.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE archived=? AND "+visible+" ORDER BY id DESC",
		f.Archived, f.UserID, f.CIF, f.CIF)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClientRepo) Update(ctx context.Context, c *model.Client) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET name=?, email=?, phone=?, nif=?, street=?, number=?, postal=?, city=?,
			province=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`,
		c.Name, nullString(c.Email), c.Phone, c.NIF, c.Address.Street, c.Address.Number, c.Address.Postal,
		c.Address.City, c.Address.Province, c.ID)
	return expectOne(res, err, ErrNotFound)
}

func (r *ClientRepo) SetArchived(ctx context.Context, id uint64, archived bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE clients SET archived=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", archived, id)
	return expectOne(res, err, ErrNotFound)
}

// Delete removes the client. ErrInUse while projects or notes reference it.
func (r *ClientRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM clients WHERE id=?", id)
	return expectOne(res, err, ErrNotFound)
}
