// Package extract converts uploaded document bytes into plain text for use
// as conversational context.
package extract

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Extractor converts the raw bytes of one document format into plain text.
type Extractor interface {
	// Extract returns the document's text content. An error means the
	// document could not be processed; it never partially succeeds.
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry holds the mapping between media types and their Extractor
// implementations. Media types without a registered extractor are passed
// to the model as inline bytes instead.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
	}
}

// Register adds an extractor for a media type.
func (r *Registry) Register(mediaType string, e Extractor) {
	if _, exists := r.extractors[mediaType]; exists {
		log.Warn().Str("media_type", mediaType).Msg("extractor already registered, overwriting")
	}
	r.extractors[mediaType] = e
}

// Get retrieves the extractor for a media type.
func (r *Registry) Get(mediaType string) (Extractor, error) {
	e, exists := r.extractors[mediaType]
	if !exists {
		return nil, fmt.Errorf("no extractor registered for media type: %s", mediaType)
	}
	return e, nil
}

// Supports reports whether a media type has a registered extractor.
func (r *Registry) Supports(mediaType string) bool {
	_, exists := r.extractors[mediaType]
	return exists
}
