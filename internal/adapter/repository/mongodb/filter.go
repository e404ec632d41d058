package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/urbanestate/listing-service/internal/listing/domain"
)

// toFilter translates a predicate into a query document. Callers check
// Unsatisfiable first; toFilter does not special-case it.
func toFilter(p domain.Predicate) bson.M {
	filter := bson.M{}

	if p.MinPrice != nil || p.MaxPrice != nil {
		price := bson.M{}
		if p.MinPrice != nil {
			price["$gte"] = *p.MinPrice
		}
		if p.MaxPrice != nil {
			price["$lte"] = *p.MaxPrice
		}
		filter["Price"] = price
	}
	if p.Bedrooms != nil {
		filter["Bedrooms"] = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		filter["Bathrooms"] = *p.Bathrooms
	}
	if p.PropertyType != "" {
		filter["PropType"] = p.PropertyType
	}
	if p.City != "" {
		filter["City"] = p.City
	}
	if p.Neighborhood != "" {
		filter["Neighborhood"] = p.Neighborhood
	}
	if p.TransactionKind != "" {
		filter["rent_sale"] = p.TransactionKind
	}
	if p.Furnished != nil {
		filter["Furnished"] = p.Furnished.Value()
	}
	if len(p.Facilities) > 0 {
		filter["Facilities"] = bson.M{"$all": p.Facilities}
	}
	if p.Text != "" {
		filter["$text"] = bson.M{"$search": p.Text}
	}
	if p.OwnerID != "" {
		filter["UserId"] = ownerValue(p.OwnerID)
	}
	if p.Status != "" || p.StatusNot != "" {
		status := bson.M{}
		if p.Status != "" {
			status["$eq"] = string(p.Status)
		}
		if p.StatusNot != "" {
			status["$ne"] = string(p.StatusNot)
		}
		filter["status"] = status
	}
	if p.CreatedBefore != nil {
		filter["createdAt"] = bson.M{"$lt": p.CreatedBefore.UTC()}
	}
	return filter
}
