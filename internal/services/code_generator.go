package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"cimars/catalog/internal/models"
)

var constructionTypeCodes = map[models.ConstructionType]string{
	models.ConstructionHouse:     "C",
	models.ConstructionApartment: "D",
	models.ConstructionLoft:      "L",
	models.ConstructionRetail:    "LC",
	models.ConstructionBuilding:  "E",
	models.ConstructionOffice:    "O",
}

const landTypeCode = "T"

var codePattern = regexp.MustCompile(`^([VR])([A-Z]{1,2})(\d{3,})$`)

// ParsedCode is a listing code split into its parts.
type ParsedCode struct {
	DealType models.DealType
	TypeCode string
	Seq      int64
}

// Prefix returns the counter scope for the listing.
func (p ParsedCode) Prefix() string {
	return dealCode(p.DealType) + p.TypeCode
}

// CodeGenerator mints listing codes of the form <deal><type><seq>, e.g. VC001.
type CodeGenerator struct {
	store ICounterStore
}

func NewCodeGenerator(store ICounterStore) *CodeGenerator {
	return &CodeGenerator{store: store}
}

func dealCode(d models.DealType) string {
	if d == models.DealSale {
		return "V"
	}
	return "R"
}

// Prefix derives the counter prefix from deal type and subtype. It never
// touches the store.
func (g *CodeGenerator) Prefix(l *models.Listing) (string, error) {
	var typeCode string
	switch {
	case l.Kind == models.KindLand:
		typeCode = landTypeCode
	case l.Construction != nil:
		code, ok := constructionTypeCodes[l.Construction.ConstructionType]
		if !ok {
			return "", fmt.Errorf("%w: %q", models.ErrUnmappedVariant, l.Construction.ConstructionType)
		}
		typeCode = code
	default:
		return "", fmt.Errorf("%w: listing has no construction details", models.ErrUnmappedVariant)
	}
	return dealCode(l.DealType) + typeCode, nil
}

// AllocateCode advances the prefix's counter once and formats the result.
// Every successful call consumes a sequence value.
func (g *CodeGenerator) AllocateCode(ctx context.Context, prefix string) (string, error) {
	seq, err := g.store.Next(ctx, prefix)
	if err != nil {
		return "", err
	}
	return FormatCode(prefix, seq), nil
}

// Generate is Prefix followed by AllocateCode.
func (g *CodeGenerator) Generate(ctx context.Context, l *models.Listing) (string, error) {
	prefix, err := g.Prefix(l)
	if err != nil {
		return "", err
	}
	return g.AllocateCode(ctx, prefix)
}

// FormatCode zero-pads seq to at least three digits.
func FormatCode(prefix string, seq int64) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// ParseCode decodes a code minted by FormatCode.
func ParseCode(code string) (ParsedCode, error) {
	m := codePattern.FindStringSubmatch(code)
	if m == nil {
		return ParsedCode{}, fmt.Errorf("%w: malformed listing code %q", models.ErrInvalidIdentifier, code)
	}
	seq, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return ParsedCode{}, fmt.Errorf("%w: malformed listing code %q: %v", models.ErrInvalidIdentifier, code, err)
	}
	deal := models.DealRent
	if m[1] == "V" {
		deal = models.DealSale
	}
	if !knownTypeCode(m[2]) {
		return ParsedCode{}, fmt.Errorf("%w: listing code %q has unknown type code %q", models.ErrInvalidIdentifier, code, m[2])
	}
	return ParsedCode{DealType: deal, TypeCode: m[2], Seq: seq}, nil
}

func knownTypeCode(tc string) bool {
	if tc == landTypeCode {
		return true
	}
	for _, c := range constructionTypeCodes {
		if c == tc {
			return true
		}
	}
	return false
}
