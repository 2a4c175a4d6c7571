// Package contracts validates admin payloads against embedded JSON Schemas
// before they are bound to listing records.
package contracts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cimars/catalog/internal/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://cimars.mx/schemas/"

// Schema names.
const (
	ConstructionCreate = "construction_create"
	LandCreate         = "land_create"
)

var compiledSchemas = map[string]*jsonschema.Schema{}

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	entries, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		panic(err)
	}
	for _, p := range entries {
		data, err := schemaFS.ReadFile(p)
		if err != nil {
			panic(fmt.Sprintf("reading schema %s: %v", p, err))
		}
		if err := compiler.AddResource(schemaBaseURL+path.Base(p), bytes.NewReader(data)); err != nil {
			panic(fmt.Sprintf("adding schema %s: %v", p, err))
		}
	}

	for _, name := range []string{ConstructionCreate, LandCreate} {
		compiledSchemas[name] = compiler.MustCompile(schemaBaseURL + name + ".json")
	}
}

// CreateSchemaFor names the create schema of a listing kind.
func CreateSchemaFor(kind models.ListingKind) (string, error) {
	switch kind {
	case models.KindConstruction:
		return ConstructionCreate, nil
	case models.KindLand:
		return LandCreate, nil
	}
	return "", fmt.Errorf("%w: %q", models.ErrUnmappedVariant, kind)
}

// Validate checks body against the named schema. Violations come back as
// *models.ValidationError pointing at the offending field.
func Validate(name string, body []byte) error {
	schema, ok := compiledSchemas[name]
	if !ok {
		return fmt.Errorf("schema %q not found", name)
	}

	doc, err := unmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return models.NewValidationError("body", "is not valid JSON")
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validating %s: %w", name, err)
	}
	leaf := firstLeaf(ve)
	return models.NewValidationError(fieldOf(leaf), "%s", leaf.Message)
}

// unmarshalJSON decodes a document the way jsonschema/v5 expects it:
// numbers kept as json.Number and no trailing data after the value.
func unmarshalJSON(r io.Reader) (any, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}
	if t, _ := decoder.Token(); t != nil {
		return nil, fmt.Errorf("invalid character %v after top-level value", t)
	}
	return doc, nil
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// fieldOf turns the instance location into a dotted path. Errors reported
// on the parent object (missing or extra properties) name the property in
// the message, so it is appended.
func fieldOf(ve *jsonschema.ValidationError) string {
	parts := []string{}
	for _, p := range strings.Split(strings.TrimPrefix(ve.InstanceLocation, "/"), "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if strings.HasPrefix(ve.Message, "missing properties") || strings.HasPrefix(ve.Message, "additionalProperties") {
		if name := firstQuoted(ve.Message); name != "" {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "body"
	}
	return strings.Join(parts, ".")
}

func firstQuoted(s string) string {
	_, rest, ok := strings.Cut(s, "'")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "'")
	return name
}
