package file

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository/memory"
	"github.com/jwalitptl/care-api/internal/service/patient"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func setup(t *testing.T) (*Service, *model.User, string) {
	t.Helper()
	patients := patient.NewService(memory.NewPatientRepository(memory.NewOutboxRepository()), nil, metrics.New("test", nil))
	owner := &model.User{Base: model.Base{ID: uuid.New()}, Email: "nurse@example.com", IsActive: true}
	p, err := patients.Create(context.Background(), owner, model.PersonalInfo{
		Identity: model.IdentitySection{FirstName: "Ayşe", LastName: "Yılmaz", CitizenID: "12345678901"},
	})
	require.NoError(t, err)
	return NewService(memory.NewFileRepository(), patients), owner, p.PatientID
}

func TestUploadDetectsTypeAndDenormalizesPatient(t *testing.T) {
	ctx := context.Background()
	svc, owner, patientID := setup(t)

	f, err := svc.Upload(ctx, owner, &model.UploadFileRequest{
		PatientID: patientID,
		Name:      " scan.png ",
		Category:  "imaging",
		Data:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
	})
	require.NoError(t, err)

	assert.Equal(t, "scan.png", f.Name)
	assert.Equal(t, "image/png", f.Type)
	assert.Equal(t, int64(len(pngHeader)), f.Size)
	assert.Equal(t, "Ayşe", f.PatientFirstName)
	assert.Equal(t, "Yılmaz", f.PatientLastName)
	assert.Equal(t, "nurse@example.com", f.UploadedBy)

	list, err := svc.List(ctx, owner, patientID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Data)

	got, err := svc.Get(ctx, owner, f.ID)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), got.Data)
}

func TestUploadRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, owner, patientID := setup(t)

	_, err := svc.Upload(ctx, owner, &model.UploadFileRequest{PatientID: patientID, Name: "x", Data: "%%%"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	stranger := &model.User{Base: model.Base{ID: uuid.New()}}
	_, err = svc.Upload(ctx, stranger, &model.UploadFileRequest{PatientID: patientID, Name: "x", Data: "aGVsbG8="})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, owner, patientID := setup(t)
	f, err := svc.Upload(ctx, owner, &model.UploadFileRequest{PatientID: patientID, Name: "notes.txt", Data: "aGVsbG8gd29ybGQ="})
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", f.Type)

	name := "renamed.txt"
	updated, err := svc.Update(ctx, owner, f.ID, &model.UpdateFileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", updated.Name)

	stranger := &model.User{Base: model.Base{ID: uuid.New()}}
	assert.ErrorIs(t, svc.Delete(ctx, stranger, f.ID), apperrors.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, owner, f.ID))
	_, err = svc.Get(ctx, owner, f.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
