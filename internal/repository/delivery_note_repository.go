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

// DeliveryNoteRepo is the MySQL DeliveryNoteStore. The signed and deleted_at
// guards live in the WHERE clauses so each transition is a single conditional
// statement.
type DeliveryNoteRepo struct{ db dbx.DBTX }

func NewDeliveryNoteRepo(db dbx.DBTX) *DeliveryNoteRepo { return &DeliveryNoteRepo{db: db} }

const noteColumns = `id, client_id, project_id, format, material, hours, description, work_date,
	created_by, company_cif, signed, pdf_url, pdf_cid, deleted_at, created_at, updated_at`

func scanNote(row rowScanner) (*model.DeliveryNote, error) {
	var (
		n         model.DeliveryNote
		material  sql.NullString
		hours     sql.NullFloat64
		deletedAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.ClientID, &n.ProjectID, &n.Format, &material, &hours, &n.Description,
		&n.WorkDate, &n.CreatedBy, &n.CompanyCIF, &n.Signed, &n.PDFURL, &n.PDFCID, &deletedAt,
		&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if material.Valid {
		n.Material = &material.String
	}
	if hours.Valid {
		n.Hours = &hours.Float64
	}
	if deletedAt.Valid {
		n.DeletedAt = &deletedAt.Time
	}
	return &n, nil
}

func (r *DeliveryNoteRepo) Create(ctx context.Context, n *model.DeliveryNote) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_notes (client_id, project_id, format, material, hours, description,
			work_date, created_by, company_cif) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ClientID, n.ProjectID, n.Format, n.Material, n.Hours, n.Description, n.WorkDate.UTC(),
		n.CreatedBy, n.CompanyCIF)
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
	*n = *stored
	return nil
}

func (r *DeliveryNoteRepo) GetByID(ctx context.Context, id uint64) (*model.DeliveryNote, error) {
	return scanNote(r.db.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM delivery_notes WHERE id=?", id))
}

func (r *DeliveryNoteRepo) List(ctx context.Context, f NoteFilter) ([]*model.DeliveryNote, error) {
	where := []string{visible}
	args := []any{f.UserID, f.CIF, f.CIF}
	if f.Deleted {
		where = append(where, "deleted_at IS NOT NULL")
	} else {
		where = append(where, "deleted_at IS NULL")
	}
	if f.Signed != nil {
		where = append(where, "signed=?")
		args = append(args, *f.Signed)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM delivery_notes WHERE "+strings.Join(where, " AND ")+
			" ORDER BY work_date DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.DeliveryNote{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *DeliveryNoteRepo) Update(ctx context.Context, n *model.DeliveryNote) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE delivery_notes SET format=?, material=?, hours=?, description=?, work_date=?,
			updated_at=CURRENT_TIMESTAMP
		 WHERE id=? AND signed=0 AND deleted_at IS NULL`,
		n.Format, n.Material, n.Hours, n.Description, n.WorkDate.UTC(), n.ID)
	return expectOne(res, err, ErrConflict)
}

func (r *DeliveryNoteRepo) MarkSigned(ctx context.Context, id uint64, url, cid string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE delivery_notes SET signed=1, pdf_url=?, pdf_cid=?, updated_at=CURRENT_TIMESTAMP
		 WHERE id=? AND deleted_at IS NULL`,
		url, cid, id)
	return expectOne(res, err, ErrNotFound)
}

func (r *DeliveryNoteRepo) SoftDelete(ctx context.Context, id uint64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE delivery_notes SET deleted_at=? WHERE id=? AND deleted_at IS NULL", at.UTC(), id)
	return expectOne(res, err, ErrNotFound)
}

func (r *DeliveryNoteRepo) Restore(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE delivery_notes SET deleted_at=NULL WHERE id=? AND deleted_at IS NOT NULL", id)
	return expectOne(res, err, ErrNotFound)
}

func (r *DeliveryNoteRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM delivery_notes WHERE id=? AND signed=0", id)
	return expectOne(res, err, ErrConflict)
}
