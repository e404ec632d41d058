package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

const listingCollectionName = "listings"

// ListingRepository implements domain.ListingRepository on MongoDB.
type ListingRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

var _ domain.ListingRepository = (*ListingRepository)(nil)

// NewListingRepository returns a repository over the listings collection and
// makes sure its indexes exist. Index failures are logged, not returned, since
// the indexes may already exist with other options.
func NewListingRepository(db *mongo.Database, log *logger.Logger) *ListingRepository {
	collection := db.Collection(listingCollectionName)
	log = log.Named("ListingRepository")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "UserId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "City", Value: 1}, {Key: "Neighborhood", Value: 1}}},
		{Keys: bson.D{{Key: "Price", Value: 1}}},
		{
			Keys: bson.D{
				{Key: "Keywords", Value: "text"},
				{Key: "Title", Value: "text"},
				{Key: "Description", Value: "text"},
				{Key: "Neighborhood", Value: "text"},
			},
			Options: options.Index().SetName("listing_text"),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("failed to create indexes for listings collection", zap.Error(err))
	} else {
		log.Info("ensured indexes for listings collection")
	}

	return &ListingRepository{collection: collection, logger: log}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", domain.ErrListingNotFound, id)
}

func (r *ListingRepository) Find(ctx context.Context, p domain.Predicate) ([]*domain.Listing, error) {
	if p.Unsatisfiable() {
		return []*domain.Listing{}, nil
	}
	filter := toFilter(p)
	r.logger.Debug("finding listings", zap.Any("filter", filter))

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		r.logger.Error("failed to find listings", zap.Error(err))
		return nil, storageErr("find listings", err)
	}
	defer cursor.Close(ctx)

	var docs []*listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("failed to decode listings", zap.Error(err))
		return nil, storageErr("decode listings", err)
	}

	listings := make([]*domain.Listing, len(docs))
	for i, doc := range docs {
		listings[i] = doc.toDomainListing()
	}
	return listings, nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound(id)
	}
	return r.findOne(ctx, bson.M{"_id": oid}, id)
}

func (r *ListingRepository) FindByOwnerAndID(ctx context.Context, ownerID, id string) (*domain.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound(id)
	}
	return r.findOne(ctx, bson.M{"_id": oid, "UserId": ownerValue(ownerID)}, id)
}

func (r *ListingRepository) findOne(ctx context.Context, filter bson.M, id string) (*domain.Listing, error) {
	var doc listingDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(id)
		}
		r.logger.Error("failed to get listing", zap.String("listing_id", id), zap.Error(err))
		return nil, storageErr("find listing", err)
	}
	return doc.toDomainListing(), nil
}

func (r *ListingRepository) Insert(ctx context.Context, listing *domain.Listing) error {
	doc := fromDomainListing(listing)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("failed to insert listing", zap.String("owner_id", listing.OwnerID), zap.Error(err))
		return storageErr("insert listing", err)
	}
	listing.ID = doc.ID.Hex()
	r.logger.Info("listing inserted", zap.String("listing_id", listing.ID))
	return nil
}

func (r *ListingRepository) ReplaceFields(ctx context.Context, id string, update domain.ListingUpdate) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound(id)
	}

	var doc listingDocument
	doc.setFields(update.Fields)
	files := update.Files
	if files == nil {
		files = []string{}
	}

	set := bson.M{
		"Price":        doc.Price,
		"rent_sale":    doc.RentSale,
		"Furnished":    doc.Furnished,
		"Facilities":   doc.Facilities,
		"City":         doc.City,
		"Bedrooms":     doc.Bedrooms,
		"Bathrooms":    doc.Bathrooms,
		"PropertySize": doc.PropertySize,
		"PropertyAge":  doc.PropertyAge,
		"Keywords":     doc.Keywords,
		"Description":  doc.Description,
		"PropType":     doc.PropType,
		"Title":        doc.Title,
		"Neighborhood": doc.Neighborhood,
		"AdOwner":      doc.AdOwner,
		"File":         files,
		"updatedAt":    update.UpdatedAt.UTC(),
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		r.logger.Error("failed to update listing", zap.String("listing_id", id), zap.Error(err))
		return storageErr("update listing", err)
	}
	if result.MatchedCount == 0 {
		return notFound(id)
	}
	r.logger.Info("listing updated", zap.String("listing_id", id))
	return nil
}

func (r *ListingRepository) BulkSetStatus(ctx context.Context, p domain.Predicate, status domain.ListingStatus) (int64, error) {
	if p.Unsatisfiable() {
		return 0, nil
	}
	result, err := r.collection.UpdateMany(ctx, toFilter(p), bson.M{"$set": bson.M{"status": string(status)}})
	if err != nil {
		r.logger.Error("failed to bulk update listing status", zap.String("status", string(status)), zap.Error(err))
		return 0, storageErr("bulk set status", err)
	}
	return result.ModifiedCount, nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound(id)
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		r.logger.Error("failed to delete listing", zap.String("listing_id", id), zap.Error(err))
		return storageErr("delete listing", err)
	}
	if result.DeletedCount == 0 {
		return notFound(id)
	}
	r.logger.Info("listing deleted", zap.String("listing_id", id))
	return nil
}
