package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the parent of every input rejection.
	ErrValidation = errors.New("validation failed")

	ErrIDRequired      = fmt.Errorf("%w: id is required", ErrValidation)
	ErrFileRequired    = fmt.Errorf("%w: file is required", ErrValidation)
	ErrFileTooLarge    = fmt.Errorf("%w: file exceeds the maximum size", ErrValidation)
	ErrArchiveTooLarge = fmt.Errorf("%w: archive exceeds the maximum size", ErrValidation)
	ErrEmptyArchive    = fmt.Errorf("%w: archive contains no supported files", ErrValidation)
	ErrInvalidArchive  = fmt.Errorf("%w: archive is not a valid zip file", ErrValidation)
	ErrTagNameRequired = fmt.Errorf("%w: tag name is required", ErrValidation)
	ErrTagExists       = fmt.Errorf("%w: tag already exists", ErrValidation)

	ErrNotFound = errors.New("not found")
	// ErrStorage wraps byte store failures on the synchronous path.
	ErrStorage = errors.New("storage failure")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
