package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ListingForm is a listing submission as it arrives from a client: every value is
// a string and any of them may be missing.
type ListingForm struct {
	Price           string
	TransactionKind string
	Furnished       string
	Facilities      []string
	City            string
	Bedrooms        string
	Bathrooms       string
	Size            string
	Age             string
	Keywords        string
	Description     string
	PropertyType    string
	Title           string
	Neighborhood    string
	OwnerLabel      string
}

// FieldError describes one rejected form field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string { return e.Field + ": " + e.Reason }

// ValidationErrors lists every rejected field of a submission. It unwraps to
// ErrValidation.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.String()
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (v ValidationErrors) Unwrap() error { return ErrValidation }

// ParseListingForm validates a submission and converts it to typed fields.
// Facilities may be sent as repeated values, as a comma separated string, or as
// a mix of both; the result is de-duplicated. The owner label is optional.
func ParseListingForm(form ListingForm) (ListingFields, error) {
	var errs ValidationErrors
	required := func(name, v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			errs = append(errs, FieldError{Field: name, Reason: "is required"})
		}
		return v
	}
	number := func(name, v string, check func(float64) bool, rule string) float64 {
		v = required(name, v)
		if v == "" {
			return 0
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			errs = append(errs, FieldError{Field: name, Reason: "must be a number"})
			return 0
		}
		if !check(f) {
			errs = append(errs, FieldError{Field: name, Reason: rule})
		}
		return f
	}
	count := func(name, v string) int {
		v = required(name, v)
		if v == "" {
			return 0
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, FieldError{Field: name, Reason: "must be an integer"})
			return 0
		}
		if n < 0 {
			errs = append(errs, FieldError{Field: name, Reason: "must not be negative"})
		}
		return n
	}
	nonNegative := func(f float64) bool { return f >= 0 }

	fields := ListingFields{
		Price:        number("Price", form.Price, nonNegative, "must not be negative"),
		City:         required("City", form.City),
		Bedrooms:     count("Bedrooms", form.Bedrooms),
		Bathrooms:    count("Bathrooms", form.Bathrooms),
		Size:         number("PropertySize", form.Size, func(f float64) bool { return f > 0 }, "must be greater than zero"),
		Age:          number("PropertyAge", form.Age, nonNegative, "must not be negative"),
		Keywords:     required("Keywords", form.Keywords),
		Description:  required("Description", form.Description),
		PropertyType: required("PropType", form.PropertyType),
		Title:        required("Title", form.Title),
		Neighborhood: required("Neighborhood", form.Neighborhood),
		OwnerLabel:   strings.TrimSpace(form.OwnerLabel),
		Facilities:   SplitTags(form.Facilities...),
	}

	if kind := required("rent_sale", form.TransactionKind); kind != "" {
		fields.TransactionKind = TransactionKind(kind)
		if !fields.TransactionKind.IsValid() {
			errs = append(errs, FieldError{Field: "rent_sale", Reason: "must be rent or sale"})
		}
	}
	if furnished := required("Furnished", form.Furnished); furnished != "" {
		fields.Furnished = ParseFurnished(furnished)
	}

	if len(errs) > 0 {
		return ListingFields{}, errs
	}
	return fields, nil
}

// SplitTags splits comma separated values, trims every token, drops empty ones
// and removes duplicates while keeping first-seen order.
func SplitTags(values ...string) []string {
	tags := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			tags = append(tags, tok)
		}
	}
	return tags
}
