package file

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/internal/service"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

// PatientReader resolves the patient a file is uploaded for.
type PatientReader interface {
	Get(ctx context.Context, actor *model.User, patientID string) (*model.PatientRecord, error)
}

type Service struct {
	repo     repository.FileRepository
	patients PatientReader
}

func NewService(repo repository.FileRepository, patients PatientReader) *Service {
	return &Service{repo: repo, patients: patients}
}

// Upload stores a base64 document for a patient the actor can access.
// Size and content type come from the decoded bytes.
func (s *Service) Upload(ctx context.Context, actor *model.User, req *model.UploadFileRequest) (*model.File, error) {
	raw, data, err := decode(req.Data)
	if err != nil {
		return nil, apperrors.BadRequest("file_data must be base64 encoded", err)
	}
	if len(raw) == 0 {
		return nil, apperrors.Validation("file_data is empty")
	}

	p, err := s.patients.Get(ctx, actor, req.PatientID)
	if err != nil {
		return nil, err
	}

	f := &model.File{
		ID:               uuid.New(),
		OwnerID:          actor.ID,
		PatientID:        p.PatientID,
		PatientFirstName: p.PersonalInfo.Identity.FirstName,
		PatientLastName:  p.PersonalInfo.Identity.LastName,
		Name:             strings.TrimSpace(req.Name),
		Category:         strings.TrimSpace(req.Category),
		Size:             int64(len(raw)),
		Type:             mimetype.Detect(raw).String(),
		UploadedBy:       actor.Email,
		UploadedAt:       time.Now().UTC(),
		Data:             data,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, service.FromRepository(err, "file", "")
	}

	log.Debug().Str("file_id", f.ID.String()).Str("patient_id", f.PatientID).Str("file_type", f.Type).Int64("file_size", f.Size).Msg("file uploaded")
	return f, nil
}

func (s *Service) List(ctx context.Context, actor *model.User, patientID string) ([]*model.File, error) {
	files, err := s.repo.List(ctx, model.FileFilter{OwnerID: actor.ID, PatientID: patientID})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list files: %w", err))
	}
	return files, nil
}

// Get returns the file with its content.
func (s *Service) Get(ctx context.Context, actor *model.User, id uuid.UUID) (*model.File, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepository(err, "file", "")
	}
	if f.OwnerID != actor.ID && !actor.IsStaff {
		return nil, apperrors.Forbidden("you do not have access to this file")
	}
	return f, nil
}

func (s *Service) Update(ctx context.Context, actor *model.User, id uuid.UUID, req *model.UpdateFileRequest) (*model.File, error) {
	f, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("file_name must not be empty")
		}
		f.Name = name
	}
	if req.Category != nil {
		f.Category = strings.TrimSpace(*req.Category)
	}
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, service.FromRepository(err, "file", "")
	}
	return f, nil
}

func (s *Service) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return service.FromRepository(err, "file", "")
	}
	return nil
}

// decode accepts plain base64 or a data URL and returns the bytes along
// with the canonical base64 text to store.
func decode(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", err
	}
	return raw, base64.StdEncoding.EncodeToString(raw), nil
}
