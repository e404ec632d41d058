package query

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/urbanestate/listing-service/internal/listing/domain"
)

var (
	leadingDecimal = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	leadingInteger = regexp.MustCompile(`^[+-]?\d+`)
)

// Compile turns search parameters into a predicate. It never fails: a value that
// cannot be parsed simply adds no clause. Compile is pure, so equal Params always
// yield equal predicates.
func Compile(p Params) domain.Predicate {
	var pred domain.Predicate

	if v, ok := parseDecimal(p.MinPrice); ok {
		pred.MinPrice = &v
	}
	if v, ok := parseInteger(p.Bedrooms); ok {
		pred.Bedrooms = &v
	}
	if v, ok := parseDecimal(p.MaxPrice); ok {
		pred.MaxPrice = &v
	}
	if v, ok := parseInteger(p.Bathrooms); ok {
		pred.Bathrooms = &v
	}

	pred.PropertyType = p.PropertyType
	pred.City = p.City
	pred.Neighborhood = p.Neighborhood
	pred.TransactionKind = p.RentSale
	pred.Text = strings.TrimSpace(p.Text)

	if p.Furnished != "" {
		f := domain.ParseFurnished(p.Furnished)
		pred.Furnished = &f
	}
	if p.Amenities != "" {
		if tags := domain.SplitTags(p.Amenities); len(tags) > 0 {
			pred.Facilities = tags
		}
	}
	return pred
}

// CompileValues is Compile(ParamsFromValues(v)).
func CompileValues(v map[string][]string) domain.Predicate {
	return Compile(ParamsFromValues(v))
}

func parseDecimal(s string) (float64, bool) {
	m := leadingDecimal.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseInteger(s string) (int, bool) {
	m := leadingInteger.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
