package domain

import (
	"strings"
	"time"
)

// Predicate is a conjunction of optional clauses over listing fields. A nil
// pointer, empty string or empty slice contributes no clause, so the zero value
// matches every listing.
type Predicate struct {
	MinPrice        *float64
	MaxPrice        *float64
	Bedrooms        *int
	Bathrooms       *int
	PropertyType    string
	City            string
	Neighborhood    string
	TransactionKind string
	Furnished       *Furnished
	// Facilities must all be present on a listing; extra facilities are fine.
	Facilities []string
	// Text is a case-insensitive free-text term.
	Text string

	OwnerID       string
	Status        ListingStatus
	StatusNot     ListingStatus
	CreatedBefore *time.Time
}

// IsEmpty reports whether p matches every listing.
func (p Predicate) IsEmpty() bool {
	return p.MinPrice == nil && p.MaxPrice == nil &&
		p.Bedrooms == nil && p.Bathrooms == nil &&
		p.PropertyType == "" && p.City == "" && p.Neighborhood == "" &&
		p.TransactionKind == "" && p.Furnished == nil &&
		len(p.Facilities) == 0 && p.Text == "" &&
		p.OwnerID == "" && p.Status == "" && p.StatusNot == "" &&
		p.CreatedBefore == nil
}

// Unsatisfiable reports whether the price bounds exclude every value.
func (p Predicate) Unsatisfiable() bool {
	return p.MinPrice != nil && p.MaxPrice != nil && *p.MinPrice > *p.MaxPrice
}

// Matches evaluates the predicate against a single listing.
func (p Predicate) Matches(l *Listing) bool {
	if l == nil {
		return false
	}
	if p.MinPrice != nil && l.Price < *p.MinPrice {
		return false
	}
	if p.MaxPrice != nil && l.Price > *p.MaxPrice {
		return false
	}
	if p.Bedrooms != nil && l.Bedrooms != *p.Bedrooms {
		return false
	}
	if p.Bathrooms != nil && l.Bathrooms != *p.Bathrooms {
		return false
	}
	if p.PropertyType != "" && l.PropertyType != p.PropertyType {
		return false
	}
	if p.City != "" && l.City != p.City {
		return false
	}
	if p.Neighborhood != "" && l.Neighborhood != p.Neighborhood {
		return false
	}
	if p.TransactionKind != "" && string(l.TransactionKind) != p.TransactionKind {
		return false
	}
	if p.Furnished != nil && !l.Furnished.Equal(*p.Furnished) {
		return false
	}
	if !containsAll(l.Facilities, p.Facilities) {
		return false
	}
	if p.Text != "" && !matchesText(l, p.Text) {
		return false
	}
	if p.OwnerID != "" && l.OwnerID != p.OwnerID {
		return false
	}
	if p.Status != "" && l.Status != p.Status {
		return false
	}
	if p.StatusNot != "" && l.Status == p.StatusNot {
		return false
	}
	if p.CreatedBefore != nil && !l.CreatedAt.Before(*p.CreatedBefore) {
		return false
	}
	return true
}

func containsAll(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func matchesText(l *Listing, term string) bool {
	term = strings.ToLower(term)
	for _, s := range []string{l.Keywords, l.Title, l.Description, l.Neighborhood} {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}
