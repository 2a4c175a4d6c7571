package models

import (
	"github.com/mmcloughlin/geohash"
)

// GeohashPrecision is the cell size stored alongside each located listing
// (about 150m x 150m).
const GeohashPrecision = 7

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Longitude float64 `bson:"longitude" json:"longitude"`
	Latitude  float64 `bson:"latitude" json:"latitude"`
}

func (p GeoPoint) Validate() error {
	if p.Longitude < -180 || p.Longitude > 180 {
		return NewValidationError("location.longitude", "must be between -180 and 180, got %v", p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return NewValidationError("location.latitude", "must be between -90 and 90, got %v", p.Latitude)
	}
	return nil
}

// Geohash encodes the point at GeohashPrecision.
func (p GeoPoint) Geohash() string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, GeohashPrecision)
}
