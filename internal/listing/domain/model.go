package domain

import (
	"time"
)

// ListingStatus is the lifecycle state of a listing. It only ever moves from
// StatusLive to StatusExpired.
type ListingStatus string

const (
	StatusLive    ListingStatus = "live"
	StatusExpired ListingStatus = "expired"
)

func (s ListingStatus) IsValid() bool {
	switch s {
	case StatusLive, StatusExpired:
		return true
	}
	return false
}

// TransactionKind says whether a property is offered for rent or for sale.
type TransactionKind string

const (
	TransactionRent TransactionKind = "rent"
	TransactionSale TransactionKind = "sale"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionRent, TransactionSale:
		return true
	}
	return false
}

// ListingFields are the attributes an owner replaces on every update.
type ListingFields struct {
	Price           float64
	TransactionKind TransactionKind
	Furnished       Furnished
	Facilities      []string
	City            string
	Bedrooms        int
	Bathrooms       int
	Size            float64
	Age             float64
	Keywords        string
	Description     string
	PropertyType    string
	Title           string
	Neighborhood    string
	OwnerLabel      string
}

// Listing is a published property advertisement.
type Listing struct {
	ID      string
	OwnerID string
	ListingFields
	Files     []string
	Status    ListingStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasFile reports whether id is one of the listing's media identifiers.
func (l *Listing) HasFile(id string) bool {
	for _, f := range l.Files {
		if f == id {
			return true
		}
	}
	return false
}

// IsOwnedBy reports whether userID owns the listing.
func (l *Listing) IsOwnedBy(userID string) bool {
	return userID != "" && l.OwnerID == userID
}

// ListingUpdate is the payload of a field replacement: every mutable field, the
// merged file list and the new modification time, written in one operation.
type ListingUpdate struct {
	Fields    ListingFields
	Files     []string
	UpdatedAt time.Time
}

// NewListing builds a live listing owned by ownerID.
func NewListing(ownerID string, fields ListingFields, files []string, now time.Time) *Listing {
	if files == nil {
		files = []string{}
	}
	return &Listing{
		OwnerID:       ownerID,
		ListingFields: fields,
		Files:         files,
		Status:        StatusLive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
