package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docchat-backend/internal/blob"
	"docchat-backend/internal/extract"
	"docchat-backend/internal/llm"
	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// allowedMediaTypes is the explicit allow-list for attachments. Anything
// else is rejected outright before the turn creates any state.
var allowedMediaTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":          true,
	"text/rtf":            true,
	"application/epub+zip": true,
	"image/png":            true,
	"image/jpeg":           true,
	"image/webp":           true,
	"image/gif":            true,
}

// ValidateAttachment performs the hard, side-effect-free checks shared by
// turn submission and standalone uploads.
func ValidateAttachment(in *models.AttachmentInput, maxBytes int64) error {
	if in == nil {
		return fmt.Errorf("%w: no attachment provided", ErrValidation)
	}
	if strings.TrimSpace(in.FileName) == "" {
		return fmt.Errorf("%w: attachment file name is required", ErrValidation)
	}
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: attachment is empty", ErrValidation)
	}
	if maxBytes > 0 && int64(len(in.Data)) > maxBytes {
		return fmt.Errorf("%w: attachment exceeds %d bytes", ErrValidation, maxBytes)
	}
	if !allowedMediaTypes[in.MediaType] {
		return fmt.Errorf("%w: %s", ErrUnsupportedMediaType, in.MediaType)
	}
	return nil
}

// AttachmentEncoder turns an uploaded file into a model-consumable part.
//
// One strategy applies uniformly: extraction is attempted synchronously
// under a hard timeout for media types with a registered extractor, and
// falls back to passing the raw bytes inline on timeout or when no
// extractor exists. A FileUpload metadata record tracks the outcome.
type AttachmentEncoder struct {
	files          store.FileStore
	blobs          blob.Store
	extractors     *extract.Registry
	extractTimeout time.Duration
	maxBytes       int64
}

func NewAttachmentEncoder(files store.FileStore, blobs blob.Store, extractors *extract.Registry, extractTimeout time.Duration, maxBytes int64) *AttachmentEncoder {
	return &AttachmentEncoder{
		files:          files,
		blobs:          blobs,
		extractors:     extractors,
		extractTimeout: extractTimeout,
		maxBytes:       maxBytes,
	}
}

// Validate runs the hard allow-list and size checks.
func (e *AttachmentEncoder) Validate(in *models.AttachmentInput) error {
	return ValidateAttachment(in, e.maxBytes)
}

// Encode persists the attachment bytes, records metadata, and produces the
// model part. An error return means the caller should continue the turn
// without attachment content (degraded fidelity, not a failed turn); the
// returned descriptor is always usable for the persisted user message.
func (e *AttachmentEncoder) Encode(ctx context.Context, userID, conversationID uuid.UUID, in *models.AttachmentInput) (llm.Part, *models.AttachedFile, error) {
	descriptor := &models.AttachedFile{
		Name: in.FileName,
		Type: in.MediaType,
		Size: int64(len(in.Data)),
	}

	url, err := e.blobs.Put(ctx, in.FileName, in.MediaType, in.Data)
	if err != nil {
		return llm.Part{}, descriptor, fmt.Errorf("storing attachment bytes: %w", err)
	}
	descriptor.URL = url

	record, err := e.files.CreateFileUpload(ctx, store.CreateFileUploadParams{
		ID:             uuid.New(),
		UserID:         userID,
		ConversationID: &conversationID,
		FileName:       in.FileName,
		FileType:       in.MediaType,
		FileURL:        url,
	})
	if err != nil {
		// Metadata is an audit trail; the bytes are durable, so the turn
		// still gets its inline part.
		log.Error().Str("file_name", in.FileName).Err(err).Msg("recording file upload failed")
		return llm.InlinePart(in.MediaType, in.Data), descriptor, nil
	}

	e.setStatus(ctx, record.ID, models.StatusProcessing)

	if !e.extractors.Supports(in.MediaType) {
		e.setStatus(ctx, record.ID, models.StatusCompleted)
		return llm.InlinePart(in.MediaType, in.Data), descriptor, nil
	}

	extractor, _ := e.extractors.Get(in.MediaType)
	extractCtx, cancel := context.WithTimeout(ctx, e.extractTimeout)
	defer cancel()

	text, err := extractor.Extract(extractCtx, in.Data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Extraction ran long; the inline bytes still reach the model.
			// The record stays processing so the webhook path can finish
			// extraction later, rather than landing in the same terminal
			// state as an upload with nothing left to extract.
			log.Warn().Str("file_name", in.FileName).Msg("extraction timed out, falling back to inline bytes")
			return llm.InlinePart(in.MediaType, in.Data), descriptor, nil
		}
		e.setStatus(ctx, record.ID, models.StatusFailed)
		return llm.Part{}, descriptor, fmt.Errorf("extracting %s: %w", in.FileName, err)
	}

	if err := e.files.SetFileUploadExtractedText(ctx, record.ID, text); err != nil {
		log.Error().Str("file_id", record.ID.String()).Err(err).Msg("saving extracted text failed")
	}
	e.setStatus(ctx, record.ID, models.StatusCompleted)

	return llm.TextPart(fmt.Sprintf("Attached document %s:\n\n%s", in.FileName, text)), descriptor, nil
}

func (e *AttachmentEncoder) setStatus(ctx context.Context, fileID uuid.UUID, status models.ProcessingStatus) {
	if err := e.files.UpdateFileUploadStatus(ctx, fileID, status); err != nil {
		log.Error().Str("file_id", fileID.String()).Str("status", string(status)).Err(err).Msg("updating file status failed")
	}
}
