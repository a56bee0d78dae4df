package services

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// statuses; everything else is an internal error.
var (
	// ErrValidation covers malformed input rejected before any side
	// effect: empty prompt, empty edit content, oversized uploads.
	ErrValidation = errors.New("input validation failed")

	// ErrAccessDenied is returned when the caller does not own the
	// conversation or message they are operating on.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnsupportedMediaType is returned for attachment media types
	// outside the allow-list. This is a hard rejection, distinct from the
	// soft degrade path used when encoding a supported type fails.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrAssistantImmutable is returned when a caller tries to edit an
	// assistant message. Assistant messages are derived output; they are
	// only ever superseded by deletion and regeneration.
	ErrAssistantImmutable = errors.New("assistant messages cannot be edited")

	// ErrUpstreamGeneration is returned when the model invocation fails or
	// the response stream breaks mid-flight. No partial assistant message
	// is persisted in that case.
	ErrUpstreamGeneration = errors.New("generation failed")

	// ErrResponseNotSaved is returned when the assistant response streamed
	// cleanly but could not be persisted afterwards. The caller saw the
	// full text; it is just not durable. Distinct from a failed turn.
	ErrResponseNotSaved = errors.New("assistant response streamed but not saved")
)
