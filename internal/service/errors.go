package service

import (
	"database/sql"
	"errors"

	"github.com/zafarze/gat-sub000/pkg/database"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
)

// lookupError maps a missing row to ErrNotFound and anything else to ErrInternal.
func lookupError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+what)
}

// saveError maps unique violations to ErrConflict.
func saveError(err error, what string) error {
	if database.IsUniqueViolation(err) {
		return appErrors.Clone(appErrors.ErrConflict, what+" already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save "+what)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func invalid(message string) error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func forbidden(message string) error {
	return appErrors.Clone(appErrors.ErrForbidden, message)
}
