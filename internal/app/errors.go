package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code, so a 403 flavour of ErrUnauthorized still satisfies
// errors.Is(err, ErrUnauthorized).
func (e *DomainError) Is(target error) bool {
	other, ok := target.(*DomainError)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrUnauthorized      = domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	ErrNotFound          = domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	ErrInvalidJoinCode   = domainError(http.StatusBadRequest, "INVALID_JOIN_CODE", "Invalid join code", nil)
	ErrAlreadyMember     = domainError(http.StatusConflict, "ALREADY_MEMBER", "Already a member of this workspace", nil)
	ErrAdminNotRemovable = domainError(http.StatusConflict, "ADMIN_NOT_REMOVABLE", "Admin cannot be removed", nil)
	ErrLastAdmin         = domainError(http.StatusConflict, "LAST_ADMIN", "Workspace needs at least one admin", nil)
	ErrValidation        = domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid input", nil)
)

// forbidden is the caller-is-known-but-not-allowed flavour of ErrUnauthorized.
func forbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, ErrUnauthorized.Code, message, nil)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, ErrNotFound.Code, message, nil)
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, ErrValidation.Code, message, nil)
}
