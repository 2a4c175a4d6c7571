package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Base carries the ObjectID of documents that are not listings.
type Base struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
}

// ParseID turns a wire identifier into an ObjectID. Malformed input is
// reported as ErrInvalidIdentifier so callers never reach the store with it.
func ParseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	return id, nil
}
