package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/internal/service"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

// Patients is the part of the patient service used for administration.
type Patients interface {
	ListAll(ctx context.Context) ([]*model.PatientRecord, error)
	Access(ctx context.Context, actor *model.User, patientID string) (*model.PatientAccess, error)
	SetAccess(ctx context.Context, actor *model.User, patientID string, userIDs []uuid.UUID) (*model.PatientAccess, error)
}

type Service struct {
	users    repository.UserRepository
	patients Patients
}

func NewService(users repository.UserRepository, patients Patients) *Service {
	return &Service{users: users, patients: patients}
}

func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list users: %w", err))
	}
	return users, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepository(err, "user", apperrors.CodeDuplicateEmail)
	}
	return u, nil
}

// UpdateUser applies permission and status changes. Unknown permission
// codes are rejected before anything is written.
func (s *Service) UpdateUser(ctx context.Context, actor *model.User, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.PermissionCodes != nil {
		codes := make([]string, 0, len(req.PermissionCodes))
		seen := make(map[string]bool, len(req.PermissionCodes))
		for _, code := range req.PermissionCodes {
			if !model.IsKnownPermission(code) {
				return nil, apperrors.Validation("unknown permission code %q", code)
			}
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
		u.PermissionCodes = codes
	}
	if req.IsStaff != nil {
		u.IsStaff = *req.IsStaff
	}
	if req.IsActive != nil {
		if !*req.IsActive && actor.ID == u.ID {
			return nil, apperrors.Validation("you cannot deactivate your own account")
		}
		u.IsActive = *req.IsActive
	}
	u.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, u); err != nil {
		return nil, service.FromRepository(err, "user", apperrors.CodeDuplicateEmail)
	}
	log.Info().
		Str("user_id", u.ID.String()).
		Str("actor_id", actor.ID.String()).
		Strs("permission_codes", u.PermissionCodes).
		Bool("is_staff", u.IsStaff).
		Bool("is_active", u.IsActive).
		Msg("user updated")
	return u, nil
}

func (s *Service) Permissions() []string {
	return append([]string(nil), model.AllPermissions...)
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.PatientAccess, error) {
	records, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.PatientAccess, 0, len(records))
	for _, r := range records {
		out = append(out, &model.PatientAccess{
			PatientID:    r.PatientID,
			OwnerID:      r.OwnerID,
			AllowedUsers: r.AllowedUsers,
		})
	}
	return out, nil
}

func (s *Service) PatientAccess(ctx context.Context, actor *model.User, patientID string) (*model.PatientAccess, error) {
	return s.patients.Access(ctx, actor, patientID)
}

// SetPatientAccess replaces the sharing list. Every id must belong to an
// existing account.
func (s *Service) SetPatientAccess(ctx context.Context, actor *model.User, patientID string, userIDs []uuid.UUID) (*model.PatientAccess, error) {
	for _, id := range userIDs {
		if _, err := s.users.Get(ctx, id); err != nil {
			return nil, service.FromRepository(err, fmt.Sprintf("user %s", id), "")
		}
	}
	return s.patients.SetAccess(ctx, actor, patientID, userIDs)
}
