package services

import (
	"fmt"
	"net/http"

	apperrors "github.com/mediadesk/mediadesk/pkg/errors"
)

var (
	// ErrRequestNotFound indicates the referenced access request does not exist.
	ErrRequestNotFound = apperrors.New("REQUEST_NOT_FOUND", "Access request not found", http.StatusNotFound)
	// ErrDuplicateRequest signals a conflicting pending request for the same grant.
	ErrDuplicateRequest = apperrors.New("DUPLICATE_REQUEST", "A pending request already exists for this resource and permission", http.StatusConflict)
	// ErrAlreadyReviewed signals the request has already left the pending state.
	ErrAlreadyReviewed = apperrors.New("ALREADY_REVIEWED", "Access request has already been reviewed", http.StatusConflict)
	// ErrNotAuthorizedReviewer indicates the reviewer lacks approve rights on the resource.
	ErrNotAuthorizedReviewer = apperrors.New("NOT_AUTHORIZED", "Not authorized to review requests for this resource", http.StatusForbidden)
	// ErrNotCancellable indicates a cancel attempt on a non-pending request or by a non-owner.
	ErrNotCancellable = apperrors.New("NOT_CANCELLABLE", "Access request can no longer be cancelled", http.StatusConflict)
	// ErrRoleNotFound indicates the requested role does not exist in the catalog.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
)

// newValidationError reports malformed input such as unknown enum values.
func newValidationError(message string) *apperrors.AppError {
	return apperrors.New("VALIDATION_ERROR", message, http.StatusBadRequest)
}

// storeError wraps an underlying persistence failure while keeping the
// operation name for operators.
func storeError(op string, err error) *apperrors.AppError {
	return apperrors.New("STORE_ERROR", "Storage operation failed", http.StatusInternalServerError).
		WithInternal(fmt.Errorf("%s: %w", op, err))
}
