package domain

import "errors"

var (
	// ErrUnauthenticated indicates a missing, invalid or expired identity token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates that the caller is authenticated but does not own the listing.
	ErrForbidden = errors.New("user not authorized to perform this action")
	// ErrListingNotFound indicates that the referenced listing id does not resolve.
	ErrListingNotFound = errors.New("listing not found")
	// ErrValidation indicates a required field is missing or fails type/range parsing.
	ErrValidation = errors.New("invalid listing data")
	// ErrStorageUnavailable indicates the repository or media store could not be reached.
	// Callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
