package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

type fileRepository struct {
	BaseRepository
}

func NewFileRepository(base BaseRepository) repository.FileRepository {
	return &fileRepository{base}
}

const fileMetaColumns = `
	id, owner_id, patient_id, patient_firstname, patient_lastname,
	file_name, file_category, file_size, file_type, uploaded_by, uploaded_at
`

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	query := `INSERT INTO files (` + fileMetaColumns + `, file_data) VALUES (
		:id, :owner_id, :patient_id, :patient_firstname, :patient_lastname,
		:file_name, :file_category, :file_size, :file_type, :uploaded_by, :uploaded_at,
		:file_data
	)`
	if _, err := r.GetDB().NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("failed to create file: %w", translate(err))
	}
	return nil
}

func (r *fileRepository) Get(ctx context.Context, id uuid.UUID) (*model.File, error) {
	query := `SELECT ` + fileMetaColumns + `, file_data FROM files WHERE id = $1`

	var file model.File
	if err := r.GetDB().GetContext(ctx, &file, query, id); err != nil {
		return nil, notFoundOr(err, "file")
	}
	return &file, nil
}

func (r *fileRepository) Update(ctx context.Context, file *model.File) error {
	query := `UPDATE files SET file_name = $1, file_category = $2 WHERE id = $3`
	result, err := r.GetDB().ExecContext(ctx, query, file.Name, file.Category, file.ID)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("file %s: %w", file.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("file %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *fileRepository) List(ctx context.Context, filter model.FileFilter) ([]*model.File, error) {
	query := `SELECT ` + fileMetaColumns + ` FROM files WHERE owner_id = $1`
	args := []interface{}{filter.OwnerID}

	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	query += " ORDER BY uploaded_at DESC"

	var files []*model.File
	if err := r.GetDB().SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}
