package api

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body schemas.
const (
	schemaCompetitorCreate = "competitor_create.json"
	schemaCompetitorUpdate = "competitor_update.json"
	schemaContest          = "contest.json"
	schemaContestEdit      = "contest_edit.json"
	schemaAdjustment       = "adjustment.json"
)

const defaultMaxBodyBytes = 64 << 10

// schemaSet holds the compiled request schemas keyed by file name.
type schemaSet map[string]*jsonschema.Schema

func compileSchemas() (schemaSet, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	set := make(schemaSet, len(entries))
	for _, entry := range entries {
		f, err := schemaFS.Open("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("open schema %s: %w", entry.Name(), err)
		}
		err = compiler.AddResource(entry.Name(), f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", entry.Name(), err)
		}
	}
	for _, entry := range entries {
		schema, err := compiler.Compile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", entry.Name(), err)
		}
		set[entry.Name()] = schema
	}
	return set, nil
}

// mustCompileSchemas panics on an invalid embedded schema.
func mustCompileSchemas() schemaSet {
	set, err := compileSchemas()
	if err != nil {
		panic(err)
	}
	return set
}

// decode reads the body, validates it against the named schema and decodes it into dst.
func (s schemaSet) decode(w http.ResponseWriter, r *http.Request, name string, maxBytes int64, dst any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("body larger than %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("read body: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	schema, ok := s[name]
	if !ok {
		return fmt.Errorf("unknown schema %s", name)
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return errors.New(validationMessage(ve))
		}
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// validationMessage reports the innermost failure, which names the offending field.
func validationMessage(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}
