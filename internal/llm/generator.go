// Package llm provides the generation-endpoint client used for chat turns.
package llm

import "context"

// Part is one element of a multi-part prompt: either plain text or an
// inline byte payload with its declared media type. Exactly one of Text
// and Inline is set.
type Part struct {
	Text   string
	Inline *InlineData
}

// InlineData is a raw byte payload the model consumes directly. The bytes
// are base64-encoded on the wire by the transport client.
type InlineData struct {
	MIMEType string
	Data     []byte
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// InlinePart builds an inline-bytes part.
func InlinePart(mimeType string, data []byte) Part {
	return Part{Inline: &InlineData{MIMEType: mimeType, Data: data}}
}

// Chunk is one increment of a streamed model response. Err is set on the
// final chunk if the stream broke; a closed channel without an Err chunk
// is a clean end-of-stream.
type Chunk struct {
	Text string
	Err  error
}

// Generator streams a model response for an ordered sequence of parts.
// Implementations must preserve the model's emission order and must close
// the channel when the stream ends.
type Generator interface {
	Stream(ctx context.Context, parts []Part) (<-chan Chunk, error)
}
