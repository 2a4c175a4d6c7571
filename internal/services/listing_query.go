package services

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cimars/catalog/internal/models"
)

// rangeClause builds a {$gte, $lte} document; nil when both bounds are unset.
func rangeClause(lo, hi *float64) bson.M {
	if lo == nil && hi == nil {
		return nil
	}
	r := bson.M{}
	if lo != nil {
		r["$gte"] = *lo
	}
	if hi != nil {
		r["$lte"] = *hi
	}
	return r
}

// BuildListingQuery turns filter criteria into a MongoDB predicate. Area
// bounds match either the built area of a construction or the land area of
// any listing.
func BuildListingQuery(f models.ListingFilter) bson.M {
	query := bson.M{}
	if f.Kind != nil {
		query["type"] = *f.Kind
	}
	if f.DealType != nil {
		query["dealType"] = *f.DealType
	}
	if f.City != nil {
		query["address.city"] = *f.City
	}
	if price := rangeClause(f.MinPrice, f.MaxPrice); price != nil {
		query["price"] = price
	}
	if area := rangeClause(f.MinArea, f.MaxArea); area != nil {
		query["$or"] = bson.A{
			bson.M{"construction.builtArea": area},
			bson.M{"landArea": area},
		}
	}
	if f.Featured != nil {
		query["featured"] = *f.Featured
	}
	return query
}

// pageOptions sorts by _id so pages are stable under insertion order.
func pageOptions(f models.ListingFilter) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(f.Skip()).
		SetLimit(int64(f.Limit))
}

func kindQuery(kind models.ListingKind) bson.M {
	if kind == "" {
		return bson.M{}
	}
	return bson.M{"type": kind}
}
