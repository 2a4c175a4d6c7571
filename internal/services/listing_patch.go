package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cimars/catalog/internal/models"
)

// systemFields are owned by the catalog. Patches naming them are accepted
// but the keys are dropped.
var systemFields = map[string]bool{
	"id":        true,
	"_id":       true,
	"code":      true,
	"type":      true,
	"createdAt": true,
	"updatedAt": true,
	"geohash":   true,
}

// requiredFields cannot be cleared by a patch.
var requiredFields = map[string]bool{
	"address":  true,
	"price":    true,
	"landArea": true,
	"dealType": true,
}

// applyPatch merges patch into a copy of current. Nested objects merge key
// by key; any other value replaces the old one, null included. Unknown
// fields and type mismatches are reported as *models.ValidationError.
func applyPatch(current *models.Listing, patch map[string]any) (*models.Listing, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listing %s: %w", current.Code, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode listing %s: %w", current.Code, err)
	}

	for key, value := range patch {
		if systemFields[key] {
			continue
		}
		if value == nil && requiredFields[key] {
			return nil, models.NewValidationError(key, "is required")
		}
		doc[key] = mergeValue(doc[key], value)
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, models.NewValidationError("", "patch is not serialisable: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()

	var next models.Listing
	if err := dec.Decode(&next); err != nil {
		return nil, decodeError(err)
	}

	next.ID = current.ID
	next.Code = current.Code
	next.Kind = current.Kind
	next.CreatedAt = current.CreatedAt
	return &next, nil
}

func mergeValue(old, patch any) any {
	oldMap, okOld := old.(map[string]any)
	patchMap, okPatch := patch.(map[string]any)
	if !okOld || !okPatch {
		return patch
	}
	out := make(map[string]any, len(oldMap)+len(patchMap))
	for k, v := range oldMap {
		out[k] = v
	}
	for k, v := range patchMap {
		out[k] = mergeValue(out[k], v)
	}
	return out
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return models.NewValidationError(typeErr.Field, "expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	msg := err.Error()
	if field, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return models.NewValidationError(strings.Trim(field, `"`), "is not a recognised field")
	}
	return models.NewValidationError("", "%s", msg)
}
