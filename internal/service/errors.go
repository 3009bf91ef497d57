// Package service holds helpers shared by the domain services.
package service

import (
	"errors"

	"github.com/jwalitptl/care-api/internal/repository"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

// FromRepository maps storage sentinels onto application errors.
// AppErrors raised below the repository (e.g. schema validation on load)
// pass through unchanged.
func FromRepository(err error, resource, duplicateCode string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Duplicate(duplicateCode, resource+" already exists")
	default:
		return apperrors.Internal(err)
	}
}
