package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingKind is the discriminator stored in the "type" field.
type ListingKind string

const (
	KindConstruction ListingKind = "Construction"
	KindLand         ListingKind = "Land"
)

func (k ListingKind) Valid() bool {
	return k == KindConstruction || k == KindLand
}

type DealType string

const (
	DealSale DealType = "Sale"
	DealRent DealType = "Rent"
)

func (d DealType) Valid() bool {
	return d == DealSale || d == DealRent
}

type ConstructionType string

const (
	ConstructionHouse     ConstructionType = "House"
	ConstructionApartment ConstructionType = "Apartment"
	ConstructionLoft      ConstructionType = "Loft"
	ConstructionRetail    ConstructionType = "Retail"
	ConstructionBuilding  ConstructionType = "Building"
	ConstructionOffice    ConstructionType = "Office"
)

var constructionTypes = []ConstructionType{
	ConstructionHouse, ConstructionApartment, ConstructionLoft,
	ConstructionRetail, ConstructionBuilding, ConstructionOffice,
}

type LandUse string

const (
	LandUseResidential  LandUse = "Residential"
	LandUseCommercial   LandUse = "Commercial"
	LandUseAgricultural LandUse = "Agricultural"
	LandUseMixed        LandUse = "Mixed"
)

type LandType string

const (
	LandTypeUrban      LandType = "Urban"
	LandTypeSuburban   LandType = "Suburban"
	LandTypeRural      LandType = "Rural"
	LandTypeIndustrial LandType = "Industrial"
)

type Topography string

const (
	TopographyFlat      Topography = "Flat"
	TopographyInclined  Topography = "Inclined"
	TopographyIrregular Topography = "Irregular"
)

// Address of a listing. Street and unit numbers are private and never leave
// the admin surface.
type Address struct {
	Street         string `bson:"street,omitempty" json:"street,omitempty"`
	InteriorNumber string `bson:"interiorNumber,omitempty" json:"interiorNumber,omitempty"`
	ExteriorNumber string `bson:"exteriorNumber,omitempty" json:"exteriorNumber,omitempty"`
	Neighborhood   string `bson:"neighborhood,omitempty" json:"neighborhood,omitempty"`
	ZipCode        string `bson:"zipCode" json:"zipCode"`
	City           string `bson:"city,omitempty" json:"city,omitempty"`
	State          string `bson:"state,omitempty" json:"state,omitempty"`
	Country        string `bson:"country" json:"country"`
}

// ConstructionDetails holds the fields only built structures carry.
type ConstructionDetails struct {
	Rooms             *int             `bson:"rooms,omitempty" json:"rooms,omitempty"`
	Bathrooms         *int             `bson:"bathrooms,omitempty" json:"bathrooms,omitempty"`
	BuiltArea         *float64         `bson:"builtArea,omitempty" json:"builtArea,omitempty"`
	Floors            *int             `bson:"floors,omitempty" json:"floors,omitempty"`
	Equipment         []string         `bson:"equipment,omitempty" json:"equipment,omitempty"`
	Finishes          string           `bson:"finishes,omitempty" json:"finishes,omitempty"`
	Furnished         *bool            `bson:"furnished,omitempty" json:"furnished,omitempty"`
	ConstructionStyle string           `bson:"constructionStyle,omitempty" json:"constructionStyle,omitempty"`
	Private           *bool            `bson:"private,omitempty" json:"private,omitempty"`
	ConstructionYear  *int             `bson:"constructionYear,omitempty" json:"constructionYear,omitempty"`
	ConstructionType  ConstructionType `bson:"constructionType" json:"constructionType"`
}

// LandDetails holds the fields only raw parcels carry. All of them are mandatory.
type LandDetails struct {
	LandUse                   LandUse    `bson:"landUse" json:"landUse"`
	LandOccupationCoefficient *float64   `bson:"landOccupationCoefficient" json:"landOccupationCoefficient"`
	LandType                  LandType   `bson:"landType" json:"landType"`
	Topography                Topography `bson:"topography" json:"topography"`
}

// Listing is a catalog entry. Exactly one of Construction or Land is set and
// it agrees with Kind.
type Listing struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Kind                 ListingKind          `bson:"type" json:"type"`
	Code                 string               `bson:"code" json:"code"`
	Address              Address              `bson:"address" json:"address"`
	Description          string               `bson:"description,omitempty" json:"description,omitempty"`
	Notes                string               `bson:"notes,omitempty" json:"notes,omitempty"`
	Price                float64              `bson:"price" json:"price"`
	LandArea             float64              `bson:"landArea" json:"landArea"`
	DealType             DealType             `bson:"dealType" json:"dealType"`
	Services             []string             `bson:"services,omitempty" json:"services,omitempty"`
	Location             *GeoPoint            `bson:"location,omitempty" json:"location,omitempty"`
	Geohash              string               `bson:"geohash,omitempty" json:"geohash,omitempty"`
	CommissionPercentage *float64             `bson:"commissionPercentage,omitempty" json:"commissionPercentage,omitempty"`
	OwnerName            string               `bson:"ownerName,omitempty" json:"ownerName,omitempty"`
	Featured             bool                 `bson:"featured" json:"featured"`
	CoverImage           string               `bson:"coverImage,omitempty" json:"coverImage,omitempty"`
	Images               []string             `bson:"images" json:"images"`
	Construction         *ConstructionDetails `bson:"construction,omitempty" json:"construction,omitempty"`
	Land                 *LandDetails         `bson:"land,omitempty" json:"land,omitempty"`
	CreatedAt            time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// currentYear is swapped in tests.
var currentYear = func() int { return time.Now().Year() }

// Validate checks the record against the catalog constraints and returns the
// first violation as a *ValidationError.
func (l *Listing) Validate() error {
	if !l.Kind.Valid() {
		return NewValidationError("type", "must be one of Construction, Land, got %q", l.Kind)
	}
	if l.Address.ZipCode == "" {
		return NewValidationError("address.zipCode", "is required")
	}
	if l.Address.Country == "" {
		return NewValidationError("address.country", "is required")
	}
	if l.Price < 0 {
		return NewValidationError("price", "must not be negative")
	}
	if l.LandArea < 0 {
		return NewValidationError("landArea", "must not be negative")
	}
	if !l.DealType.Valid() {
		return NewValidationError("dealType", "must be one of Sale, Rent, got %q", l.DealType)
	}
	if l.Location != nil {
		if err := l.Location.Validate(); err != nil {
			return err
		}
	}
	if c := l.CommissionPercentage; c != nil && (*c < 0 || *c > 100) {
		return NewValidationError("commissionPercentage", "must be between 0 and 100")
	}

	switch l.Kind {
	case KindConstruction:
		if l.Land != nil {
			return NewValidationError("land", "not allowed on a Construction listing")
		}
		if l.Construction == nil {
			return NewValidationError("construction", "is required for a Construction listing")
		}
		return l.Construction.validate()
	default:
		if l.Construction != nil {
			return NewValidationError("construction", "not allowed on a Land listing")
		}
		if l.Land == nil {
			return NewValidationError("land", "is required for a Land listing")
		}
		return l.Land.validate()
	}
}

func (c *ConstructionDetails) validate() error {
	if c.Rooms != nil && *c.Rooms < 0 {
		return NewValidationError("construction.rooms", "must not be negative")
	}
	if c.Bathrooms != nil && *c.Bathrooms < 0 {
		return NewValidationError("construction.bathrooms", "must not be negative")
	}
	if c.BuiltArea != nil && *c.BuiltArea < 0 {
		return NewValidationError("construction.builtArea", "must not be negative")
	}
	if c.Floors != nil && *c.Floors < 1 {
		return NewValidationError("construction.floors", "must be at least 1")
	}
	if y := c.ConstructionYear; y != nil {
		if *y < 0 {
			return NewValidationError("construction.constructionYear", "must not be negative")
		}
		if now := currentYear(); *y > now {
			return NewValidationError("construction.constructionYear", "must not be later than %d", now)
		}
	}
	for _, t := range constructionTypes {
		if c.ConstructionType == t {
			return nil
		}
	}
	return NewValidationError("construction.constructionType",
		"must be one of House, Apartment, Loft, Retail, Building, Office, got %q", c.ConstructionType)
}

func (d *LandDetails) validate() error {
	switch d.LandUse {
	case LandUseResidential, LandUseCommercial, LandUseAgricultural, LandUseMixed:
	default:
		return NewValidationError("land.landUse", "must be one of Residential, Commercial, Agricultural, Mixed, got %q", d.LandUse)
	}
	if d.LandOccupationCoefficient == nil {
		return NewValidationError("land.landOccupationCoefficient", "is required")
	}
	if c := *d.LandOccupationCoefficient; c < 0 || c > 1 {
		return NewValidationError("land.landOccupationCoefficient", "must be between 0 and 1")
	}
	switch d.LandType {
	case LandTypeUrban, LandTypeSuburban, LandTypeRural, LandTypeIndustrial:
	default:
		return NewValidationError("land.landType", "must be one of Urban, Suburban, Rural, Industrial, got %q", d.LandType)
	}
	switch d.Topography {
	case TopographyFlat, TopographyInclined, TopographyIrregular:
	default:
		return NewValidationError("land.topography", "must be one of Flat, Inclined, Irregular, got %q", d.Topography)
	}
	return nil
}

// RefreshGeohash derives Geohash from Location.
func (l *Listing) RefreshGeohash() {
	if l.Location == nil {
		l.Geohash = ""
		return
	}
	l.Geohash = l.Location.Geohash()
}

// Sanitized returns a copy safe for public consumers: street, unit numbers,
// commission, internal notes and owner name are removed.
func (l *Listing) Sanitized() *Listing {
	out := *l
	out.Address.Street = ""
	out.Address.InteriorNumber = ""
	out.Address.ExteriorNumber = ""
	out.CommissionPercentage = nil
	out.Notes = ""
	out.OwnerName = ""
	return &out
}

// SanitizeAll maps Sanitized over a slice.
func SanitizeAll(listings []*Listing) []*Listing {
	out := make([]*Listing, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.Sanitized())
	}
	return out
}
