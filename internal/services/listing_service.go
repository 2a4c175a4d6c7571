package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cimars/catalog/internal/config"
	"cimars/catalog/internal/db"
	"cimars/catalog/internal/events"
	"cimars/catalog/internal/models"
)

// IListingService defines the catalog operations. Methods named Public or
// returning pages hand out sanitized copies; the rest return raw records for
// the admin surface.
type IListingService interface {
	CreateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	FindListingByID(ctx context.Context, kind models.ListingKind, id string) (*models.Listing, error)
	FindListingByCode(ctx context.Context, code string) (*models.Listing, error)
	GetPublicListing(ctx context.Context, kind models.ListingKind, id string) (*models.Listing, error)
	ListPublicListings(ctx context.Context, kind models.ListingKind) ([]*models.Listing, error)
	SearchListings(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error)
	GetFeaturedListings(ctx context.Context) ([]*models.Listing, error)
	UpdateListing(ctx context.Context, kind models.ListingKind, id string, patch map[string]any) (*models.Listing, error)
	DeleteListing(ctx context.Context, kind models.ListingKind, id string) error
	AddImages(ctx context.Context, id string, urls []string) (*models.Listing, error)
}

// IListingNotifier is told about new listings. Failures are logged only.
type IListingNotifier interface {
	ListingCreated(ctx context.Context, listing *models.Listing) error
}

// listingService implements IListingService.
type listingService struct {
	db        *mongo.Database
	cfg       *config.Config
	codes     *CodeGenerator
	publisher events.IPublisher
	notifier  IListingNotifier
}

// NewListingService creates a new ListingService. publisher and notifier may be nil.
func NewListingService(database *mongo.Database, cfg *config.Config, codes *CodeGenerator, publisher events.IPublisher, notifier IListingNotifier) IListingService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &listingService{db: database, cfg: cfg, codes: codes, publisher: publisher, notifier: notifier}
}

func (s *listingService) collection() *mongo.Collection {
	return s.db.Collection(db.ListingsCollection)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CreateListing validates the record, mints its code and inserts it. A
// failed insert leaves a gap in the prefix's sequence.
func (s *listingService) CreateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	if err := listing.Validate(); err != nil {
		return nil, err
	}
	prefix, err := s.codes.Prefix(listing)
	if err != nil {
		return nil, err
	}
	code, err := s.codes.AllocateCode(ctx, prefix)
	if err != nil {
		return nil, err
	}

	created := *listing
	created.ID = primitive.NewObjectID()
	created.Code = code
	created.CreatedAt = now()
	created.UpdatedAt = created.CreatedAt
	created.RefreshGeohash()
	if created.Images == nil {
		created.Images = []string{}
	}

	if _, err := s.collection().InsertOne(ctx, &created); err != nil {
		slog.Warn("listing insert failed, sequence value not reused", "code", code, "error", err)
		return nil, fmt.Errorf("failed to insert listing %s: %w", code, err)
	}
	slog.Info("listing created", "code", code, "type", created.Kind, "id", created.ID.Hex())

	s.publish(ctx, events.ListingCreated, &created)
	if s.notifier != nil {
		if err := s.notifier.ListingCreated(ctx, &created); err != nil {
			slog.Warn("listing created notification failed", "code", code, "error", err)
		}
	}
	return &created, nil
}

func (s *listingService) publish(ctx context.Context, eventType string, l *models.Listing) {
	if err := s.publisher.Publish(ctx, events.NewListingEvent(eventType, l)); err != nil {
		slog.Warn("listing event not published", "event", eventType, "code", l.Code, "error", err)
	}
}

func (s *listingService) findOne(ctx context.Context, filter bson.M) (*models.Listing, error) {
	var listing models.Listing
	err := s.collection().FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("error finding listing: %w", err)
	}
	return &listing, nil
}

// FindListingByID returns the raw record. An empty kind searches the whole catalog.
func (s *listingService) FindListingByID(ctx context.Context, kind models.ListingKind, id string) (*models.Listing, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	filter := kindQuery(kind)
	filter["_id"] = oid
	return s.findOne(ctx, filter)
}

func (s *listingService) FindListingByCode(ctx context.Context, code string) (*models.Listing, error) {
	return s.findOne(ctx, bson.M{"code": code})
}

func (s *listingService) GetPublicListing(ctx context.Context, kind models.ListingKind, id string) (*models.Listing, error) {
	listing, err := s.FindListingByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return listing.Sanitized(), nil
}

func (s *listingService) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*models.Listing, error) {
	cursor, err := s.collection().Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("error querying listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []*models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("error decoding listings: %w", err)
	}
	return listings, nil
}

// ListPublicListings returns every listing of kind, oldest first.
func (s *listingService) ListPublicListings(ctx context.Context, kind models.ListingKind) ([]*models.Listing, error) {
	listings, err := s.find(ctx, kindQuery(kind), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return models.SanitizeAll(listings), nil
}

// SearchListings applies the filter and returns the requested page plus the
// total match count.
func (s *listingService) SearchListings(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error) {
	if err := filter.CheckPaging(); err != nil {
		return nil, err
	}
	query := BuildListingQuery(filter)

	total, err := s.collection().CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error counting listings: %w", err)
	}
	listings, err := s.find(ctx, query, pageOptions(filter))
	if err != nil {
		return nil, err
	}

	return &models.ListingPage{
		Data:       models.SanitizeAll(listings),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: models.TotalPages(total, filter.Limit),
	}, nil
}

func (s *listingService) GetFeaturedListings(ctx context.Context) ([]*models.Listing, error) {
	limit := s.cfg.FeaturedLimit
	if limit < 1 {
		limit = 3
	}
	f := models.NewListingFilter()
	featured := true
	f.Featured = &featured
	f.Limit = limit

	listings, err := s.find(ctx, BuildListingQuery(f), pageOptions(f))
	if err != nil {
		return nil, err
	}
	return models.SanitizeAll(listings), nil
}

// UpdateListing merges patch into the stored record, re-validates it and
// replaces it. code, type, id and createdAt never change.
func (s *listingService) UpdateListing(ctx context.Context, kind models.ListingKind, id string, patch map[string]any) (*models.Listing, error) {
	current, err := s.FindListingByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	next, err := applyPatch(current, patch)
	if err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.RefreshGeohash()
	next.UpdatedAt = now()
	if next.Images == nil {
		next.Images = []string{}
	}

	filter := bson.M{"_id": current.ID, "type": current.Kind}
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)

	var updated models.Listing
	err = s.collection().FindOneAndReplace(ctx, filter, next, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", current.Code, err)
	}

	s.publish(ctx, events.ListingUpdated, &updated)
	return &updated, nil
}

// DeleteListing removes the record for good.
func (s *listingService) DeleteListing(ctx context.Context, kind models.ListingKind, id string) error {
	oid, err := models.ParseID(id)
	if err != nil {
		return err
	}
	filter := kindQuery(kind)
	filter["_id"] = oid

	var deleted models.Listing
	err = s.collection().FindOneAndDelete(ctx, filter).Decode(&deleted)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to delete listing %s: %w", id, err)
	}

	slog.Info("listing deleted", "code", deleted.Code, "id", id)
	s.publish(ctx, events.ListingDeleted, &deleted)
	return nil
}

// AddImages appends media URLs and promotes the first one to cover image
// when none is set.
func (s *listingService) AddImages(ctx context.Context, id string, urls []string) (*models.Listing, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, models.NewValidationError("images", "at least one image is required")
	}

	collection := s.collection()
	update := bson.M{
		"$push": bson.M{"images": bson.M{"$each": urls}},
		"$set":  bson.M{"updatedAt": now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Listing
	if err := collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to add images to listing %s: %w", id, err)
	}

	if updated.CoverImage == "" {
		cover := bson.M{"$set": bson.M{"coverImage": urls[0]}}
		coverFilter := bson.M{"_id": oid, "coverImage": bson.M{"$in": bson.A{nil, ""}}}
		if err := collection.FindOneAndUpdate(ctx, coverFilter, cover, opts).Decode(&updated); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to set cover image on listing %s: %w", id, err)
		}
	}

	s.publish(ctx, events.ListingUpdated, &updated)
	return &updated, nil
}
