// Package api embeds the OpenAPI document of the formtree session API.
package api

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var document []byte

// Document returns a copy of the raw OpenAPI document.
func Document() []byte {
	return bytes.Clone(document)
}

var parsed = sync.OnceValues(func() (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
})

// Load parses and validates the document. The result is shared and must not be modified.
func Load() (*openapi3.T, error) {
	return parsed()
}
