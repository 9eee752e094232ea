package umcf

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var (
	//go:embed schema/document.schema.json
	documentSchemaJSON []byte

	//go:embed schema/archive.schema.json
	archiveSchemaJSON []byte
)

var (
	schemasOnce    sync.Once
	documentSchema *gojsonschema.Schema
	archiveSchema  *gojsonschema.Schema
	schemaErr      error
)

func loadSchemas() error {
	schemasOnce.Do(func() {
		documentSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchemaJSON))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile document schema: %w", schemaErr)
			return
		}
		archiveSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(archiveSchemaJSON))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile archive schema: %w", schemaErr)
		}
	})
	return schemaErr
}

// ValidateDocument checks raw JSON against the UMCF document schema.
func ValidateDocument(data []byte) error {
	if err := loadSchemas(); err != nil {
		return err
	}
	return validate(documentSchema, data)
}

func validateArchive(data []byte) error {
	if err := loadSchemas(); err != nil {
		return err
	}
	return validate(archiveSchema, data)
}

func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for i, e := range result.Errors() {
		if i == 5 {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(result.Errors())-i))
			break
		}
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema validation: %s", strings.Join(msgs, "; "))
}
