package llm

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// GeminiGenerator implements Generator against the Gemini API.
//
// The client is constructed once and injected wherever a Generator is
// needed; nothing here is package-level state.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// toGenaiContents maps domain parts onto a single user content, preserving
// part order.
func toGenaiContents(parts []Part) []*genai.Content {
	genaiParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Inline != nil {
			genaiParts = append(genaiParts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: p.Inline.MIMEType,
					Data:     p.Inline.Data,
				},
			})
			continue
		}
		genaiParts = append(genaiParts, &genai.Part{Text: p.Text})
	}
	return []*genai.Content{{Role: "user", Parts: genaiParts}}
}

// Stream sends the parts to the model and relays response fragments over
// the returned channel in emission order. The channel is closed on clean
// end-of-stream; a stream error is delivered as a final Chunk with Err set.
func (g *GeminiGenerator) Stream(ctx context.Context, parts []Part) (<-chan Chunk, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("at least one part is required")
	}
	contents := toGenaiContents(parts)

	ch := make(chan Chunk)
	go relay(ctx, g.client.Models.GenerateContentStream(ctx, g.model, contents, nil), ch)

	return ch, nil
}

// relay pumps stream fragments into ch and closes it when the stream ends.
// A broken stream must end with the terminal Err chunk before the close:
// a close without one reads as a clean end-of-stream to the consumer, and
// that must never happen for a stream that broke. The consumer drains the
// channel until close, so blocking sends cannot wedge; only a text send
// may be abandoned when the context dies, and that path still delivers a
// final Err chunk.
func relay(ctx context.Context, stream iter.Seq2[*genai.GenerateContentResponse, error], ch chan<- Chunk) {
	defer close(ch)

	for resp, err := range stream {
		if err != nil {
			log.Warn().Err(err).Msg("generation stream broke")
			ch <- Chunk{Err: err}
			return
		}

		text := ""
		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			for _, p := range resp.Candidates[0].Content.Parts {
				text += p.Text
			}
		}
		if text == "" {
			continue
		}

		select {
		case ch <- Chunk{Text: text}:
		case <-ctx.Done():
			ch <- Chunk{Err: ctx.Err()}
			return
		}
	}
}
