package medicine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

func TestEnsureIsGetOrCreate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewMedicineRepository(), time.Minute)

	first, created, err := svc.Ensure(ctx, "Aspirin", "Painkiller")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.MedicineID("Aspirin", "Painkiller"), first.ID)

	again, created, err := svc.Ensure(ctx, " Aspirin ", "Painkiller")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}

func TestEnsureRequiresNameAndCategory(t *testing.T) {
	_, _, err := NewService(memory.NewMedicineRepository(), time.Minute).Ensure(context.Background(), "Aspirin", " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListCacheIsInvalidatedOnCreate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewMedicineRepository(), time.Minute)

	_, _, err := svc.Ensure(ctx, "Aspirin", "Painkiller")
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, _, err = svc.Ensure(ctx, "Metformin", "Diabetes")
	require.NoError(t, err)

	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Diabetes", list[0].Data.Category)
}

func TestGetMissing(t *testing.T) {
	_, err := NewService(memory.NewMedicineRepository(), time.Minute).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
