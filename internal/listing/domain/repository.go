package domain

import "context"

// ListingRepository is durable listing storage. Implementations return
// ErrListingNotFound for unknown ids and wrap driver failures with
// ErrStorageUnavailable.
type ListingRepository interface {
	// Find returns every listing matching p, newest first.
	Find(ctx context.Context, p Predicate) ([]*Listing, error)
	FindByID(ctx context.Context, id string) (*Listing, error)
	FindByOwnerAndID(ctx context.Context, ownerID, id string) (*Listing, error)
	// Insert stores a new listing and assigns its ID.
	Insert(ctx context.Context, listing *Listing) error
	// ReplaceFields overwrites the mutable fields and the file list of one
	// listing in a single write.
	ReplaceFields(ctx context.Context, id string, update ListingUpdate) error
	// BulkSetStatus sets status on every listing matching p and returns how many
	// were modified.
	BulkSetStatus(ctx context.Context, p Predicate, status ListingStatus) (int64, error)
	Delete(ctx context.Context, id string) error
}

// FreshReader is implemented by repositories that may serve FindByID from a
// cache. FindByIDFresh always reads the backing store; mutations derive their
// writes from it.
type FreshReader interface {
	FindByIDFresh(ctx context.Context, id string) (*Listing, error)
}

// Authenticator verifies an opaque identity token and returns the user id it
// carries. Failures wrap ErrUnauthenticated.
type Authenticator interface {
	Verify(ctx context.Context, token string) (string, error)
}

// MediaStore keeps uploaded files. Identifiers returned by Store are the values
// kept in Listing.Files.
type MediaStore interface {
	Store(ctx context.Context, data []byte, originalName string) (string, error)
	Delete(ctx context.Context, id string) error
}

// EventPublisher publishes listing events. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

const (
	SubjectListingCreated = "listing.created"
	SubjectListingUpdated = "listing.updated"
	SubjectListingDeleted = "listing.deleted"
	SubjectListingExpired = "listing.expired"
)
