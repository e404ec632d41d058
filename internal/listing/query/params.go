// Package query compiles loosely typed listing search parameters into a
// domain.Predicate.
package query

import "net/url"

// Recognized query parameter names.
const (
	ParamMinPrice     = "minPrice"
	ParamMaxPrice     = "maxPrice"
	ParamBedrooms     = "bedrooms"
	ParamBathrooms    = "bathrooms"
	ParamPropertyType = "propertyType"
	ParamCity         = "city"
	ParamNeighborhood = "neighborhood"
	ParamRentSale     = "rent_sale"
	ParamFurnished    = "furnished"
	ParamAmenities    = "amenities"
	ParamText         = "q"
)

// Params holds the raw, unvalidated search options. Every field is optional; an
// empty string means "not given". Each field has its own parse-or-ignore rule,
// applied by Compile:
//
//	MinPrice, MaxPrice   leading decimal number, ignored if there is none
//	Bedrooms, Bathrooms  leading integer, ignored if there is none
//	PropertyType, City,
//	Neighborhood, RentSale, Text
//	                     exact string
//	Furnished            "true"/"false" become booleans, anything else is literal
//	Amenities            comma separated, trimmed, empty tokens dropped
type Params struct {
	MinPrice     string
	MaxPrice     string
	Bedrooms     string
	Bathrooms    string
	PropertyType string
	City         string
	Neighborhood string
	RentSale     string
	Furnished    string
	Amenities    string
	Text         string
}

// ParamsFromValues picks the recognized parameters out of a URL query. Only the
// first value of a repeated parameter is used; unknown parameters are ignored.
func ParamsFromValues(v url.Values) Params {
	return Params{
		MinPrice:     v.Get(ParamMinPrice),
		MaxPrice:     v.Get(ParamMaxPrice),
		Bedrooms:     v.Get(ParamBedrooms),
		Bathrooms:    v.Get(ParamBathrooms),
		PropertyType: v.Get(ParamPropertyType),
		City:         v.Get(ParamCity),
		Neighborhood: v.Get(ParamNeighborhood),
		RentSale:     v.Get(ParamRentSale),
		Furnished:    v.Get(ParamFurnished),
		Amenities:    v.Get(ParamAmenities),
		Text:         v.Get(ParamText),
	}
}
