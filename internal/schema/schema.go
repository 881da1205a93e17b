// Package schema validates template documents against the embedded JSON
// schema before they are imported.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed template.schema.json
var templateSchema []byte

// Raw returns the schema document.
func Raw() []byte { return templateSchema }

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error
)

func load() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(templateSchema))
	})
	return compiled, compileErr
}

// ValidationError lists every violation found in one document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template does not conform to schema: %s", strings.Join(e.Problems, "; "))
}

// Validate checks a template JSON document. A nil return means the document
// is structurally valid; semantic checks such as token definitions are left
// to PageConfig.Validate.
func Validate(doc []byte) error {
	s, err := load()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{}
	for _, e := range result.Errors() {
		verr.Problems = append(verr.Problems, e.String())
	}
	return verr
}
