package model

import (
	"strings"
	"time"

	"github.com/jwalitptl/care-api/pkg/hashid"
)

// Medicine is a catalog entry shared across patients, keyed by a hash of
// category and name.
type Medicine struct {
	ID        string       `json:"medicine_id" db:"id"`
	Data      MedicineInfo `json:"medicine_data"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

type MedicineInfo struct {
	Name     string `json:"medicine_name" binding:"required"`
	Category string `json:"medicine_category" binding:"required"`
}

// NewMedicine builds a catalog entry with its derived id.
func NewMedicine(name, category string) *Medicine {
	info := MedicineInfo{
		Name:     strings.TrimSpace(name),
		Category: strings.TrimSpace(category),
	}
	return &Medicine{
		ID:        MedicineID(info.Name, info.Category),
		Data:      info,
		CreatedAt: time.Now().UTC(),
	}
}

// MedicineID derives the catalog id for a name and category.
func MedicineID(name, category string) string {
	return hashid.Derive(strings.TrimSpace(category), strings.TrimSpace(name))
}

type CreateMedicineRequest struct {
	MedicineData MedicineInfo `json:"medicine_data" binding:"required"`
}
