package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanestate/listing-service/internal/listing/domain"
)

func TestCompile_EmptyMatchesEverything(t *testing.T) {
	p := Compile(Params{})
	assert.True(t, p.IsEmpty())
	assert.True(t, p.Matches(&domain.Listing{ListingFields: domain.ListingFields{City: "anywhere"}}))
}

func TestCompile_Deterministic(t *testing.T) {
	params := Params{MinPrice: "100", Bedrooms: "2", Amenities: "pool,gym", Furnished: "true"}
	assert.Equal(t, Compile(params), Compile(params))
}

func TestCompile_Numbers(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantNil bool
		want    float64
	}{
		{"plain", "1500", false, 1500},
		{"decimal", "99.5", false, 99.5},
		{"leading number", "250abc", false, 250},
		{"surrounding spaces", "  42 ", false, 42},
		{"no digits", "abc", true, 0},
		{"empty", "", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Compile(Params{MinPrice: tt.in})
			if tt.wantNil {
				assert.Nil(t, p.MinPrice)
				return
			}
			require.NotNil(t, p.MinPrice)
			assert.Equal(t, tt.want, *p.MinPrice)
		})
	}
}

func TestCompile_IntegerFields(t *testing.T) {
	p := Compile(Params{Bedrooms: "3.7", Bathrooms: "two"})
	require.NotNil(t, p.Bedrooms)
	assert.Equal(t, 3, *p.Bedrooms)
	assert.Nil(t, p.Bathrooms)
}

func TestCompile_ContradictoryRange(t *testing.T) {
	p := Compile(Params{MinPrice: "5000", MaxPrice: "100"})
	assert.True(t, p.Unsatisfiable())

	for _, price := range []float64{0, 100, 2500, 5000, 10000} {
		l := &domain.Listing{ListingFields: domain.ListingFields{Price: price}}
		assert.False(t, p.Matches(l), "price %v", price)
	}
}

func TestCompile_Amenities(t *testing.T) {
	p := Compile(Params{Amenities: "pool,gym,"})
	assert.Equal(t, []string{"pool", "gym"}, p.Facilities)

	p = Compile(Params{Amenities: " , ,"})
	assert.Nil(t, p.Facilities)
	assert.True(t, p.IsEmpty())
}

func TestCompile_Furnished(t *testing.T) {
	p := Compile(Params{Furnished: "true"})
	require.NotNil(t, p.Furnished)
	assert.True(t, p.Furnished.Equal(domain.FurnishedFlag(true)))

	p = Compile(Params{Furnished: "semi"})
	require.NotNil(t, p.Furnished)
	assert.True(t, p.Furnished.Equal(domain.FurnishedText("semi")))

	assert.Nil(t, Compile(Params{}).Furnished)
}

func TestCompileValues(t *testing.T) {
	v, err := url.ParseQuery("city=Riyadh&rent_sale=rent&propertyType=villa&neighborhood=Olaya&q=%20garden%20&unknown=1")
	require.NoError(t, err)

	p := CompileValues(v)
	assert.Equal(t, "Riyadh", p.City)
	assert.Equal(t, "rent", p.TransactionKind)
	assert.Equal(t, "villa", p.PropertyType)
	assert.Equal(t, "Olaya", p.Neighborhood)
	assert.Equal(t, "garden", p.Text)
	assert.Nil(t, p.MinPrice)
}
