package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/albaranes/internal/dbx"
	"github.com/iliyamo/albaranes/internal/model"
)

// ProjectRepo is the MySQL ProjectStore. Every query is scoped by id only;
// creator checks happen in the service so a miss and a denial stay distinct.
type ProjectRepo struct{ db dbx.DBTX }

func NewProjectRepo(db dbx.DBTX) *ProjectRepo { return &ProjectRepo{db: db} }

const projectColumns = `id, name, project_code, code, email, street, number, postal, city,
	province, client_id, archived, created_by, created_at, updated_at`

func scanProject(row rowScanner) (*model.Project, error) {
	var p model.Project
	err := row.Scan(&p.ID, &p.Name, &p.ProjectCode, &p.Code, &p.Email, &p.Address.Street,
		&p.Address.Number, &p.Address.Postal, &p.Address.City, &p.Address.Province, &p.ClientID,
		&p.Archived, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (name, project_code, code, email, street, number, postal, city,
			province, client_id, archived, created_by) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.Name, p.ProjectCode, p.Code, p.Email, p.Address.Street, p.Address.Number,
		p.Address.Postal, p.Address.City, p.Address.Province, p.ClientID, p.Archived, p.CreatedBy)
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
	*p = *stored
	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uint64) (*model.Project, error) {
	return scanProject(r.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id=?", id))
}

func (r *ProjectRepo) Taken(ctx context.Context, createdBy uint64, projectCode, name string, exclude uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects
		 WHERE created_by=? AND id<>? AND (project_code=? OR name=?)`,
		createdBy, exclude, projectCode, name).Scan(&n)
	return n > 0, err
}

func (r *ProjectRepo) List(ctx context.Context, f ProjectFilter) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE created_by=? AND archived=? ORDER BY id DESC",
		f.CreatedBy, f.Archived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name=?, project_code=?, code=?, email=?, street=?, number=?, postal=?,
			city=?, province=?, client_id=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`,
		p.Name, p.ProjectCode, p.Code, p.Email, p.Address.Street, p.Address.Number,
		p.Address.Postal, p.Address.City, p.Address.Province, p.ClientID, p.ID)
	return expectOne(res, err, ErrNotFound)
}

func (r *ProjectRepo) SetArchived(ctx context.Context, id uint64, archived bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE projects SET archived=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", archived, id)
	return expectOne(res, err, ErrNotFound)
}

// Delete removes the project. ErrInUse while delivery notes reference it.
func (r *ProjectRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id=?", id)
	return expectOne(res, err, ErrNotFound)
}
