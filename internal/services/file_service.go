package services

import (
	"context"
	"fmt"
	"time"

	"docchat-backend/internal/blob"
	"docchat-backend/internal/extract"
	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FileService handles standalone file uploads and the background
// extraction side channel. Upload returns as soon as the bytes and
// metadata are durable; extraction is triggered out-of-band and may finish
// after the chat turn that motivated it, benefiting later turns only.
type FileService struct {
	files          store.FileStore
	blobs          blob.Store
	extractors     *extract.Registry
	extractTimeout time.Duration
	maxBytes       int64

	webhookURL    string
	webhookSecret string
	rest          *resty.Client
}

func NewFileService(files store.FileStore, blobs blob.Store, extractors *extract.Registry, extractTimeout time.Duration, maxBytes int64, webhookURL, webhookSecret string) *FileService {
	return &FileService{
		files:          files,
		blobs:          blobs,
		extractors:     extractors,
		extractTimeout: extractTimeout,
		maxBytes:       maxBytes,
		webhookURL:     webhookURL,
		webhookSecret:  webhookSecret,
		rest:           resty.New().SetTimeout(10 * time.Second),
	}
}

// Upload validates and stores a file, records its metadata with status
// pending, and fires a best-effort processing trigger.
func (s *FileService) Upload(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, in *models.AttachmentInput) (*models.FileUpload, error) {
	if err := ValidateAttachment(in, s.maxBytes); err != nil {
		return nil, err
	}

	url, err := s.blobs.Put(ctx, in.FileName, in.MediaType, in.Data)
	if err != nil {
		return nil, fmt.Errorf("storing file bytes: %w", err)
	}

	record, err := s.files.CreateFileUpload(ctx, store.CreateFileUploadParams{
		ID:             uuid.New(),
		UserID:         userID,
		ConversationID: conversationID,
		FileName:       in.FileName,
		FileType:       in.MediaType,
		FileURL:        url,
	})
	if err != nil {
		return nil, fmt.Errorf("recording file upload: %w", err)
	}

	// Fire-and-forget: extraction is decoupled from the upload response.
	go s.triggerProcessing(record.ID)

	log.Info().Str("file_id", record.ID.String()).Str("file_name", in.FileName).Msg("file uploaded, processing triggered")
	return record, nil
}

func (s *FileService) triggerProcessing(fileID uuid.UUID) {
	resp, err := s.rest.R().
		SetAuthToken(s.webhookSecret).
		SetBody(models.ProcessFileRequest{FileID: fileID}).
		Post(s.webhookURL)
	if err != nil {
		log.Warn().Str("file_id", fileID.String()).Err(err).Msg("processing trigger failed")
		return
	}
	if resp.IsError() {
		log.Warn().Str("file_id", fileID.String()).Int("status", resp.StatusCode()).Msg("processing trigger rejected")
	}
}

// ProcessFile runs extraction for one uploaded file: pending ->
// processing -> completed (text stored, or nothing to extract) | failed.
// Failed is terminal; the caller must resubmit the file.
func (s *FileService) ProcessFile(ctx context.Context, fileID uuid.UUID) error {
	record, err := s.files.GetFileUploadByID(ctx, fileID)
	if err != nil {
		return err
	}
	if record.ProcessingStatus == models.StatusCompleted || record.ProcessingStatus == models.StatusFailed {
		// Terminal; reprocessing would regress the state machine.
		return nil
	}

	if err := s.files.UpdateFileUploadStatus(ctx, fileID, models.StatusProcessing); err != nil {
		return fmt.Errorf("marking file processing: %w", err)
	}

	if !s.extractors.Supports(record.FileType) {
		// No extractor for this format; the bytes are consumed inline at
		// turn time instead.
		if err := s.files.UpdateFileUploadStatus(ctx, fileID, models.StatusCompleted); err != nil {
			return fmt.Errorf("marking file completed: %w", err)
		}
		return nil
	}

	data, err := s.blobs.Get(ctx, record.FileURL)
	if err != nil {
		s.markFailed(ctx, fileID)
		return fmt.Errorf("reading stored file: %w", err)
	}

	extractor, _ := s.extractors.Get(record.FileType)
	extractCtx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	text, err := extractor.Extract(extractCtx, data)
	if err != nil {
		s.markFailed(ctx, fileID)
		return fmt.Errorf("extracting text: %w", err)
	}

	if err := s.files.SetFileUploadExtractedText(ctx, fileID, text); err != nil {
		s.markFailed(ctx, fileID)
		return fmt.Errorf("saving extracted text: %w", err)
	}
	if err := s.files.UpdateFileUploadStatus(ctx, fileID, models.StatusCompleted); err != nil {
		return fmt.Errorf("marking file completed: %w", err)
	}

	log.Info().Str("file_id", fileID.String()).Msg("file extraction completed")
	return nil
}

func (s *FileService) markFailed(ctx context.Context, fileID uuid.UUID) {
	if err := s.files.UpdateFileUploadStatus(ctx, fileID, models.StatusFailed); err != nil {
		log.Error().Str("file_id", fileID.String()).Err(err).Msg("marking file failed did not apply")
	}
}

// List returns the caller's uploads, optionally scoped to a conversation.
func (s *FileService) List(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.FileUpload, error) {
	uploads, err := s.files.ListFileUploadsByUser(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing file uploads: %w", err)
	}
	return uploads, nil
}
