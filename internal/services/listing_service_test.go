package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"cimars/catalog/internal/config"
	"cimars/catalog/internal/db"
	"cimars/catalog/internal/events"
	"cimars/catalog/internal/models"
	"cimars/catalog/internal/utils"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ListingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.ListingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type failingNotifier struct{ calls int }

func (n *failingNotifier) ListingCreated(context.Context, *models.Listing) error {
	n.calls++
	return errors.New("smtp down")
}

func setupListingTest(t *testing.T, dbName string) (IListingService, *mongo.Database, *recordingPublisher) {
	t.Helper()
	database := utils.SetupTestDB(t, dbName, db.ListingsCollection, db.CountersCollection)
	require.NoError(t, db.EnsureIndexes(context.Background(), database))
	pub := &recordingPublisher{}
	svc := NewListingService(database, &config.Config{FeaturedLimit: 3}, NewCodeGenerator(NewMongoCounterStore(database)), pub, nil)
	return svc, database, pub
}

func newHouse(deal models.DealType, city string, price, builtArea float64) *models.Listing {
	return &models.Listing{
		Kind: models.KindConstruction,
		Address: models.Address{
			Street:         "Av. Vallarta",
			ExteriorNumber: "1500",
			InteriorNumber: "2",
			ZipCode:        "44130",
			City:           city,
			Country:        "Mexico",
		},
		Notes:                "call before visiting",
		Price:                price,
		LandArea:             builtArea * 1.5,
		DealType:             deal,
		CommissionPercentage: ptr(3.5),
		OwnerName:            "R. Gómez",
		Construction: &models.ConstructionDetails{
			BuiltArea:        ptr(builtArea),
			ConstructionType: models.ConstructionHouse,
		},
	}
}

func newLandListing(deal models.DealType, city string, price, landArea float64) *models.Listing {
	return &models.Listing{
		Kind:     models.KindLand,
		Address:  models.Address{Street: "Km 12", ZipCode: "45640", City: city, Country: "Mexico"},
		Price:    price,
		LandArea: landArea,
		DealType: deal,
		Land: &models.LandDetails{
			LandUse:                   models.LandUseResidential,
			LandOccupationCoefficient: ptr(0.7),
			LandType:                  models.LandTypeUrban,
			Topography:                models.TopographyFlat,
		},
	}
}

func assertSanitized(t *testing.T, l *models.Listing) {
	t.Helper()
	assert.Empty(t, l.Address.Street)
	assert.Empty(t, l.Address.InteriorNumber)
	assert.Empty(t, l.Address.ExteriorNumber)
	assert.Nil(t, l.CommissionPercentage)
	assert.Empty(t, l.Notes)
	assert.Empty(t, l.OwnerName)
}

func TestListingService_CRUD(t *testing.T) {
	svc, _, pub := setupListingTest(t, "testdb_listing_service_crud")
	ctx := context.Background()

	house := newHouse(models.DealSale, "Guadalajara", 3000000, 180)
	house.Location = &models.GeoPoint{Longitude: -103.3496, Latitude: 20.6597}
	created, err := svc.CreateListing(ctx, house)
	require.NoError(t, err)
	assert.Equal(t, "VC001", created.Code)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, "9ewt80z", created.Geohash)
	assert.NotNil(t, created.Images)

	// raw read keeps private fields
	raw, err := svc.FindListingByID(ctx, models.KindConstruction, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Av. Vallarta", raw.Address.Street)
	assert.Equal(t, "R. Gómez", raw.OwnerName)

	// public read strips them
	public, err := svc.GetPublicListing(ctx, "", created.ID.Hex())
	require.NoError(t, err)
	assertSanitized(t, public)
	assert.Equal(t, "VC001", public.Code)

	// wrong variant view
	_, err = svc.FindListingByID(ctx, models.KindLand, created.ID.Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)

	byCode, err := svc.FindListingByCode(ctx, "VC001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)

	updated, err := svc.UpdateListing(ctx, models.KindConstruction, created.ID.Hex(), map[string]any{
		"price":        2900000.0,
		"code":         "VC777",
		"construction": map[string]any{"rooms": 4.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2900000.0, updated.Price)
	assert.Equal(t, "VC001", updated.Code)
	require.NotNil(t, updated.Construction.Rooms)
	assert.Equal(t, 4, *updated.Construction.Rooms)
	assert.Equal(t, 180.0, *updated.Construction.BuiltArea)
	assert.WithinDuration(t, created.CreatedAt, updated.CreatedAt, 0)

	require.NoError(t, svc.DeleteListing(ctx, models.KindConstruction, created.ID.Hex()))
	_, err = svc.FindListingByID(ctx, "", created.ID.Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteListing(ctx, models.KindConstruction, created.ID.Hex()), models.ErrNotFound)

	assert.Equal(t, []string{events.ListingCreated, events.ListingUpdated, events.ListingDeleted}, pub.types())
}

func TestListingService_CodesPerPrefix(t *testing.T) {
	svc, _, _ := setupListingTest(t, "testdb_listing_service_codes")
	ctx := context.Background()

	a, err := svc.CreateListing(ctx, newHouse(models.DealSale, "Guadalajara", 1, 100))
	require.NoError(t, err)
	b, err := svc.CreateListing(ctx, newHouse(models.DealSale, "Guadalajara", 1, 100))
	require.NoError(t, err)
	apt := newHouse(models.DealSale, "Guadalajara", 1, 60)
	apt.Construction.ConstructionType = models.ConstructionApartment
	c, err := svc.CreateListing(ctx, apt)
	require.NoError(t, err)
	d, err := svc.CreateListing(ctx, newLandListing(models.DealRent, "Zapopan", 1, 500))
	require.NoError(t, err)

	assert.Equal(t, "VC001", a.Code)
	assert.Equal(t, "VC002", b.Code)
	assert.Equal(t, "VD001", c.Code)
	assert.Equal(t, "RT001", d.Code)
}

func TestListingService_CreateRejectsInvalid(t *testing.T) {
	svc, database, _ := setupListingTest(t, "testdb_listing_service_invalid")
	ctx := context.Background()

	bad := newLandListing(models.DealSale, "Zapopan", 1, 100)
	bad.Land.LandOccupationCoefficient = ptr(1.5)
	_, err := svc.CreateListing(ctx, bad)
	assert.True(t, models.IsValidationError(err))

	castle := newHouse(models.DealSale, "Guadalajara", 1, 100)
	castle.Construction.ConstructionType = "Castle"
	_, err = svc.CreateListing(ctx, castle)
	assert.True(t, models.IsValidationError(err))

	current, err := NewMongoCounterStore(database).Current(ctx, "VT")
	require.NoError(t, err)
	assert.Equal(t, int64(0), current, "invalid records never consume a sequence value")
}

func TestListingService_InvalidIdentifier(t *testing.T) {
	svc, _, _ := setupListingTest(t, "testdb_listing_service_badid")
	ctx := context.Background()

	_, err := svc.GetPublicListing(ctx, "", "not-an-id")
	assert.ErrorIs(t, err, models.ErrInvalidIdentifier)
	_, err = svc.UpdateListing(ctx, models.KindLand, "xyz", map[string]any{"price": 1.0})
	assert.ErrorIs(t, err, models.ErrInvalidIdentifier)
	assert.ErrorIs(t, svc.DeleteListing(ctx, models.KindLand, "123"), models.ErrInvalidIdentifier)
}

func TestListingService_UpdateLandKeepsIdentity(t *testing.T) {
	svc, _, _ := setupListingTest(t, "testdb_listing_service_update_land")
	ctx := context.Background()

	created, err := svc.CreateListing(ctx, newLandListing(models.DealSale, "Tonalá", 700000, 400))
	require.NoError(t, err)

	updated, err := svc.UpdateListing(ctx, models.KindLand, created.ID.Hex(), map[string]any{
		"type":     "Construction",
		"code":     "RT999",
		"landArea": 450.0,
	})
	require.NoError(t, err)
	assert.Equal(t, created.Code, updated.Code)
	assert.Equal(t, models.KindLand, updated.Kind)
	assert.Equal(t, 450.0, updated.LandArea)

	_, err = svc.UpdateListing(ctx, models.KindLand, created.ID.Hex(), map[string]any{
		"land": map[string]any{"topography": "Mountainous"},
	})
	assert.True(t, models.IsValidationError(err))

	_, err = svc.UpdateListing(ctx, models.KindConstruction, created.ID.Hex(), map[string]any{"price": 1.0})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListingService_SearchAreaAcrossVariants(t *testing.T) {
	svc, _, _ := setupListingTest(t, "testdb_listing_service_area")
	ctx := context.Background()

	house, err := svc.CreateListing(ctx, newHouse(models.DealSale, "Guadalajara", 2000000, 120))
	require.NoError(t, err)
	plot, err := svc.CreateListing(ctx, newLandListing(models.DealSale, "Zapopan", 500000, 120))
	require.NoError(t, err)

	f := models.NewListingFilter()
	f.MinArea = ptr(100.0)
	f.MaxArea = ptr(150.0)
	page, err := svc.SearchListings(ctx, f)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, house.Code, page.Data[0].Code)
	assert.Equal(t, plot.Code, page.Data[1].Code)

	f.MinArea = ptr(200.0)
	f.MaxArea = nil
	page, err = svc.SearchListings(ctx, f)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, int64(0), page.TotalPages)
}

func TestListingService_SearchPagination(t *testing.T) {
	svc, _, _ := setupListingTest(t, "testdb_listing_service_paging")
	ctx := context.Background()

	var codes []string
	for i := 0; i < 17; i++ {
		l, err := svc.CreateListing(ctx, newLandListing(models.DealRent, "Zapopan", float64(1000+i), 300))
		require.NoError(t, err)
		codes = append(codes, l.Code)
	}

	f := models.NewListingFilter()
	page, err := svc.SearchListings(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(17), page.Total)
	assert.Equal(t, int64(3), page.TotalPages)
	assert.Len(t, page.Data, 8)
	for _, l := range page.Data {
		assertSanitized(t, l)
	}

	f.Page = 3
	page, err = svc.SearchListings(ctx, f)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, codes[16], page.Data[0].Code)

	f.Page = 4
	page, err = svc.SearchListings(ctx, f)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, int64(17), page.Total)

	f.Page = 0
	_, err = svc.SearchListings(ctx, f)
	assert.ErrorIs(t, err, models.ErrInvalidPage)
	f.Page = 1
	f.Limit = 0
	_, err = svc.SearchListings(ctx, f)
	assert.ErrorIs(t, err, models.ErrInvalidLimit)
}

func TestListingService_SearchCriteria(t *testing.T) {
	svc, _, _ := setupListingTest(t, "testdb_listing_service_criteria")
	ctx := context.Background()

	cheap := newHouse(models.DealRent, "Guadalajara", 15000, 90)
	cheap.Featured = true
	_, err := svc.CreateListing(ctx, cheap)
	require.NoError(t, err)
	_, err = svc.CreateListing(ctx, newHouse(models.DealSale, "Guadalajara", 4000000, 250))
	require.NoError(t, err)
	_, err = svc.CreateListing(ctx, newLandListing(models.DealSale, "Zapopan", 900000, 1000))
	require.NoError(t, err)

	f := models.NewListingFilter()
	f.City = ptr("Guadalajara")
	f.DealType = ptr(models.DealSale)
	page, err := svc.SearchListings(ctx, f)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "VC001", page.Data[0].Code)

	f = models.NewListingFilter()
	f.MaxPrice = ptr(1000000.0)
	f.Kind = ptr(models.KindConstruction)
	page, err = svc.SearchListings(ctx, f)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "RC001", page.Data[0].Code)

	featured, err := svc.GetFeaturedListings(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assertSanitized(t, featured[0])

	lands, err := svc.ListPublicListings(ctx, models.KindLand)
	require.NoError(t, err)
	require.Len(t, lands, 1)
	assert.Equal(t, "VT001", lands[0].Code)
	assertSanitized(t, lands[0])
}

func TestListingService_AddImages(t *testing.T) {
	svc, _, _ := setupListingTest(t, "testdb_listing_service_images")
	ctx := context.Background()

	created, err := svc.CreateListing(ctx, newLandListing(models.DealSale, "Zapopan", 1, 100))
	require.NoError(t, err)

	updated, err := svc.AddImages(ctx, created.ID.Hex(), []string{"https://media/a.jpg", "https://media/b.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://media/a.jpg", "https://media/b.jpg"}, updated.Images)
	assert.Equal(t, "https://media/a.jpg", updated.CoverImage)

	updated, err = svc.AddImages(ctx, created.ID.Hex(), []string{"https://media/c.jpg"})
	require.NoError(t, err)
	assert.Len(t, updated.Images, 3)
	assert.Equal(t, "https://media/a.jpg", updated.CoverImage)
}

func TestListingService_NotifierFailureDoesNotBlockCreate(t *testing.T) {
	database := utils.SetupTestDB(t, "testdb_listing_service_notify", db.ListingsCollection, db.CountersCollection)
	notifier := &failingNotifier{}
	svc := NewListingService(database, &config.Config{}, NewCodeGenerator(NewMongoCounterStore(database)), nil, notifier)

	created, err := svc.CreateListing(context.Background(), newLandListing(models.DealSale, "Zapopan", 1, 100))
	require.NoError(t, err)
	assert.Equal(t, "VT001", created.Code)
	assert.Equal(t, 1, notifier.calls)
}
