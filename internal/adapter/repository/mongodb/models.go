package mongodb

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/urbanestate/listing-service/internal/listing/domain"
)

// listingDocument mirrors the stored shape of the listings collection. Field
// names are kept as they exist in deployed data.
type listingDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       interface{}        `bson:"UserId"`
	Price        float64            `bson:"Price"`
	RentSale     string             `bson:"rent_sale"`
	Furnished    interface{}        `bson:"Furnished"`
	Facilities   []string           `bson:"Facilities"`
	City         string             `bson:"City"`
	Bedrooms     int                `bson:"Bedrooms"`
	Bathrooms    int                `bson:"Bathrooms"`
	PropertySize float64            `bson:"PropertySize"`
	PropertyAge  float64            `bson:"PropertyAge"`
	Keywords     string             `bson:"Keywords"`
	Description  string             `bson:"Description"`
	PropType     string             `bson:"PropType"`
	Title        string             `bson:"Title"`
	Neighborhood string             `bson:"Neighborhood"`
	File         []string           `bson:"File"`
	Status       string             `bson:"status"`
	AdOwner      string             `bson:"AdOwner,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

// ownerValue stores user ids as ObjectIDs when they are ObjectID hex, as the
// user collection issues them, and as plain strings otherwise.
func ownerValue(ownerID string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(ownerID); err == nil {
		return oid
	}
	return ownerID
}

func ownerString(v interface{}) string {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func furnishedValue(f domain.Furnished) interface{} {
	if f.IsZero() {
		return nil
	}
	return f.Value()
}

func fromDomainListing(l *domain.Listing) listingDocument {
	doc := listingDocument{
		UserID:    ownerValue(l.OwnerID),
		File:      l.Files,
		Status:    string(l.Status),
		CreatedAt: l.CreatedAt.UTC(),
		UpdatedAt: l.UpdatedAt.UTC(),
	}
	if oid, err := primitive.ObjectIDFromHex(l.ID); err == nil {
		doc.ID = oid
	}
	doc.setFields(l.ListingFields)
	if doc.File == nil {
		doc.File = []string{}
	}
	return doc
}

func (d *listingDocument) setFields(f domain.ListingFields) {
	d.Price = f.Price
	d.RentSale = string(f.TransactionKind)
	d.Furnished = furnishedValue(f.Furnished)
	d.Facilities = f.Facilities
	if d.Facilities == nil {
		d.Facilities = []string{}
	}
	d.City = f.City
	d.Bedrooms = f.Bedrooms
	d.Bathrooms = f.Bathrooms
	d.PropertySize = f.Size
	d.PropertyAge = f.Age
	d.Keywords = f.Keywords
	d.Description = f.Description
	d.PropType = f.PropertyType
	d.Title = f.Title
	d.Neighborhood = f.Neighborhood
	d.AdOwner = f.OwnerLabel
}

func (d *listingDocument) toDomainListing() *domain.Listing {
	furnished, err := domain.FurnishedFromValue(d.Furnished)
	if err != nil {
		furnished = domain.FurnishedText(fmt.Sprint(d.Furnished))
	}
	files := d.File
	if files == nil {
		files = []string{}
	}
	status := domain.ListingStatus(d.Status)
	if status == "" {
		status = domain.StatusLive
	}
	return &domain.Listing{
		ID:      d.ID.Hex(),
		OwnerID: ownerString(d.UserID),
		ListingFields: domain.ListingFields{
			Price:           d.Price,
			TransactionKind: domain.TransactionKind(d.RentSale),
			Furnished:       furnished,
			Facilities:      d.Facilities,
			City:            d.City,
			Bedrooms:        d.Bedrooms,
			Bathrooms:       d.Bathrooms,
			Size:            d.PropertySize,
			Age:             d.PropertyAge,
			Keywords:        d.Keywords,
			Description:     d.Description,
			PropertyType:    d.PropType,
			Title:           d.Title,
			Neighborhood:    d.Neighborhood,
			OwnerLabel:      d.AdOwner,
		},
		Files:     files,
		Status:    status,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
