package handlers_test

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"cimars/catalog/internal/models"
	"cimars/catalog/internal/services"
)

// --- Mock ListingService ---
type MockListingService struct {
	mock.Mock
}

func listingOrNil(args mock.Arguments) (*models.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func listingsOrNil(args mock.Arguments) ([]*models.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

func (m *MockListingService) CreateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	return listingOrNil(m.Called(ctx, listing))
}

func (m *MockListingService) FindListingByID(ctx context.Context, kind models.ListingKind, id string) (*models.Listing, error) {
	return listingOrNil(m.Called(ctx, kind, id))
}

func (m *MockListingService) FindListingByCode(ctx context.Context, code string) (*models.Listing, error) {
	return listingOrNil(m.Called(ctx, code))
}

func (m *MockListingService) GetPublicListing(ctx context.Context, kind models.ListingKind, id string) (*models.Listing, error) {
	return listingOrNil(m.Called(ctx, kind, id))
}

func (m *MockListingService) ListPublicListings(ctx context.Context, kind models.ListingKind) ([]*models.Listing, error) {
	return listingsOrNil(m.Called(ctx, kind))
}

func (m *MockListingService) SearchListings(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingPage), args.Error(1)
}

func (m *MockListingService) GetFeaturedListings(ctx context.Context) ([]*models.Listing, error) {
	return listingsOrNil(m.Called(ctx))
}

func (m *MockListingService) UpdateListing(ctx context.Context, kind models.ListingKind, id string, patch map[string]any) (*models.Listing, error) {
	return listingOrNil(m.Called(ctx, kind, id, patch))
}

func (m *MockListingService) DeleteListing(ctx context.Context, kind models.ListingKind, id string) error {
	return m.Called(ctx, kind, id).Error(0)
}

func (m *MockListingService) AddImages(ctx context.Context, id string, urls []string) (*models.Listing, error) {
	return listingOrNil(m.Called(ctx, id, urls))
}

// --- Mock MailService ---
type MockMailService struct {
	mock.Mock
}

func (m *MockMailService) SendEmail(ctx context.Context, to, subject, template string, data map[string]any) error {
	return m.Called(ctx, to, subject, template, data).Error(0)
}

func (m *MockMailService) SendContact(ctx context.Context, req services.ContactRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockMailService) SendWelcome(ctx context.Context, to, name string) error {
	return m.Called(ctx, to, name).Error(0)
}

func (m *MockMailService) ListingCreated(ctx context.Context, listing *models.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

// --- Mock EnquiryService ---
type MockEnquiryService struct {
	mock.Mock
}

func (m *MockEnquiryService) Submit(ctx context.Context, req services.ContactRequest) (*models.Enquiry, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Enquiry), args.Error(1)
}

func (m *MockEnquiryService) ListEnquiries(ctx context.Context, limit int) ([]*models.Enquiry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Enquiry), args.Error(1)
}

// --- Mock MediaStore ---
type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error) {
	data, _ := io.ReadAll(body)
	args := m.Called(ctx, folder, filename, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *MockMediaStore) List(ctx context.Context, folder string) ([]string, error) {
	args := m.Called(ctx, folder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMediaStore) Delete(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}
