package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

type medicineRepository struct {
	BaseRepository
}

func NewMedicineRepository(base BaseRepository) repository.MedicineRepository {
	return &medicineRepository{base}
}

type medicineRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Category  string    `db:"category"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *medicineRepository) Create(ctx context.Context, medicine *model.Medicine) error {
	query := `
		INSERT INTO medicines (id, name, category, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		medicine.ID,
		medicine.Data.Name,
		medicine.Data.Category,
		medicine.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medicine: %w", translate(err))
	}
	return nil
}

func (r *medicineRepository) Get(ctx context.Context, id string) (*model.Medicine, error) {
	var row medicineRow
	err := r.GetDB().GetContext(ctx, &row, `SELECT id, name, category, created_at FROM medicines WHERE id = $1`, id)
	if err != nil {
		return nil, notFoundOr(err, "medicine")
	}
	return row.toModel(), nil
}

func (r *medicineRepository) List(ctx context.Context) ([]*model.Medicine, error) {
	var rows []medicineRow
	err := r.GetDB().SelectContext(ctx, &rows, `SELECT id, name, category, created_at FROM medicines ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}

	out := make([]*model.Medicine, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (row medicineRow) toModel() *model.Medicine {
	return &model.Medicine{
		ID:        row.ID,
		Data:      model.MedicineInfo{Name: row.Name, Category: row.Category},
		CreatedAt: row.CreatedAt,
	}
}
