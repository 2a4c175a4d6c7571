package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cimars/catalog/internal/db"
	"cimars/catalog/internal/models"
)

const (
	defaultEnquiryLimit = 50
	maxEnquiryLimit     = 200
)

// IEnquiryService records contact requests and forwards them to the admin.
type IEnquiryService interface {
	Submit(ctx context.Context, req ContactRequest) (*models.Enquiry, error)
	ListEnquiries(ctx context.Context, limit int) ([]*models.Enquiry, error)
}

type enquiryService struct {
	db       *mongo.Database
	listings IListingService
	mail     IMailService
}

func NewEnquiryService(database *mongo.Database, listings IListingService, mail IMailService) IEnquiryService {
	return &enquiryService{db: database, listings: listings, mail: mail}
}

func (s *enquiryService) collection() *mongo.Collection {
	return s.db.Collection(db.EnquiriesCollection)
}

// Submit stores the enquiry before queueing the mail, so a mail failure
// still leaves a record with Sent false.
func (s *enquiryService) Submit(ctx context.Context, req ContactRequest) (*models.Enquiry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	req.PropertyCode = strings.ToUpper(strings.TrimSpace(req.PropertyCode))
	if req.PropertyCode != "" {
		if _, err := ParseCode(req.PropertyCode); err != nil {
			return nil, models.NewValidationError("propertyCode", "%q is not a property code", req.PropertyCode)
		}
		_, err := s.listings.FindListingByCode(ctx, req.PropertyCode)
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewValidationError("propertyCode", "no property with code %q", req.PropertyCode)
		}
		if err != nil {
			return nil, err
		}
	}

	enquiry := &models.Enquiry{
		PropertyCode: req.PropertyCode,
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Message:      req.Message,
		CreatedAt:    time.Now().UTC(),
	}
	enquiry.GenIDIfEmpty()
	if _, err := s.collection().InsertOne(ctx, enquiry); err != nil {
		return nil, fmt.Errorf("error storing enquiry: %w", err)
	}

	if err := s.mail.SendContact(ctx, req); err != nil {
		return enquiry, err
	}

	if _, err := s.collection().UpdateByID(ctx, enquiry.ID, bson.M{"$set": bson.M{"sent": true}}); err != nil {
		slog.Warn("failed to mark enquiry sent", "enquiry", enquiry.ID.Hex(), "error", err)
	}
	enquiry.Sent = true
	return enquiry, nil
}

// ListEnquiries returns the newest enquiries first.
func (s *enquiryService) ListEnquiries(ctx context.Context, limit int) ([]*models.Enquiry, error) {
	if limit <= 0 {
		limit = defaultEnquiryLimit
	}
	if limit > maxEnquiryLimit {
		limit = maxEnquiryLimit
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying enquiries: %w", err)
	}
	defer cursor.Close(ctx)

	enquiries := []*models.Enquiry{}
	if err := cursor.All(ctx, &enquiries); err != nil {
		return nil, fmt.Errorf("error decoding enquiries: %w", err)
	}
	return enquiries, nil
}
