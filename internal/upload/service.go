// Package upload implements the chunked-upload-and-pin pipeline: a session
// is initialized once, chunks arrive in any order (possibly in parallel),
// and a finalize call verifies completeness, reassembles the file, pins it
// with its metadata, and tears the session down.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yzRobo/mintcanvas-server/internal/counter"
	"github.com/yzRobo/mintcanvas-server/internal/storage"
	"github.com/yzRobo/mintcanvas-server/pkg/types"
)

// Pinner is the pinning-service boundary the pipeline depends on
type Pinner interface {
	PinFile(ctx context.Context, content []byte, fileName, fileType string) (*types.PinResult, error)
	PinJSON(ctx context.Context, content interface{}, name string) (*types.PinResult, error)
}

// Recorder persists pin history. It is optional; a nil Recorder disables
// history without touching the pipeline.
type Recorder interface {
	Record(ctx context.Context, record *types.PinRecord) error
}

// Service coordinates the three upload phases and the direct pin path
type Service struct {
	storage   storage.BlobStorage
	counter   counter.Store
	pinner    Pinner
	history   Recorder
	uriScheme string
}

// NewService creates a new upload service. history may be nil.
func NewService(blobStorage storage.BlobStorage, counterStore counter.Store, pinner Pinner, history Recorder, uriScheme string) *Service {
	if uriScheme == "" {
		uriScheme = "ipfs"
	}
	return &Service{
		storage:   blobStorage,
		counter:   counterStore,
		pinner:    pinner,
		history:   history,
		uriScheme: uriScheme,
	}
}

// InitSession creates the durable session record and a zeroed chunk counter.
// Re-initializing an existing session ID overwrites the record and resets
// the counter, so callers must not reuse IDs after chunks have been sent.
func (s *Service) InitSession(ctx context.Context, req *types.InitUploadRequest) error {
	if err := validateSessionID(req.SessionID); err != nil {
		return err
	}

	session := types.UploadSession{
		SessionID:   req.SessionID,
		FileName:    req.FileName,
		FileType:    req.FileType,
		FileSize:    req.FileSize,
		TotalChunks: req.TotalChunks,
		CreatedAt:   time.Now().UTC(),
	}

	record, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	if err := s.storage.Store(ctx, sessionPath(req.SessionID), bytes.NewReader(record), "application/json"); err != nil {
		return fmt.Errorf("failed to store session record: %w", err)
	}

	if err := s.counter.Init(ctx, req.SessionID); err != nil {
		return fmt.Errorf("failed to initialize chunk counter: %w", err)
	}

	log.Info().
		Str("session_id", req.SessionID).
		Str("file_name", req.FileName).
		Int64("file_size", req.FileSize).
		Int("total_chunks", req.TotalChunks).
		Msg("upload session initialized")

	return nil
}

// ReceiveChunk decodes and stores one chunk, then records its receipt.
// Returns the distinct received count and the session's expected total.
func (s *Service) ReceiveChunk(ctx context.Context, req *types.UploadChunkRequest) (received, total int, err error) {
	session, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return 0, 0, err
	}

	index := *req.ChunkIndex
	if index < 0 || index >= session.TotalChunks {
		return 0, 0, fmt.Errorf("%w: index %d, session %s expects indices 0-%d",
			ErrChunkOutOfRange, index, req.SessionID, session.TotalChunks-1)
	}

	data, err := decodeBase64Payload(req.ChunkData)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode chunk %d for session %s: %w", index, req.SessionID, err)
	}

	contentType := session.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.storage.Store(ctx, chunkPath(req.SessionID, index), bytes.NewReader(data), contentType); err != nil {
		return 0, 0, fmt.Errorf("failed to store chunk %d for session %s: %w", index, req.SessionID, err)
	}

	// The counter only moves after the blob write succeeds, and never for a
	// repeated index.
	received, err = s.counter.AddChunk(ctx, req.SessionID, index)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count chunk %d for session %s: %w", index, req.SessionID, err)
	}

	log.Info().
		Str("session_id", req.SessionID).
		Int("chunk_index", index).
		Int("chunks_received", received).
		Int("total_chunks", session.TotalChunks).
		Msg("chunk stored")

	return received, session.TotalChunks, nil
}

// Finalize verifies completeness, reassembles the file, pins image and
// metadata, and deletes all session artifacts. Failures before the chunk
// listing preserve partial progress so the client can retry finalize;
// failures after it trigger a best-effort cleanup and require a fresh
// session.
func (s *Service) Finalize(ctx context.Context, req *types.FinalizeUploadRequest) (outcome *types.PinOutcome, err error) {
	session, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	received, err := s.counter.Count(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, counter.ErrNotFound) {
			return nil, ErrCounterMissing
		}
		return nil, fmt.Errorf("failed to read chunk counter for session %s: %w", req.SessionID, err)
	}
	if received != session.TotalChunks {
		return nil, &CountMismatchError{Expected: session.TotalChunks, Actual: received, Source: "counter"}
	}

	// Trailing slash keeps an S3 prefix scan from catching another session
	// whose ID shares a prefix with this one.
	listed, err := s.storage.List(ctx, req.SessionID+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for session %s: %w", req.SessionID, err)
	}
	chunkPaths := make([]string, 0, len(listed))
	for _, key := range listed {
		if isChunkPath(key) {
			chunkPaths = append(chunkPaths, key)
		}
	}
	if len(chunkPaths) != session.TotalChunks {
		// Counter and storage disagree; the stores are updated independently,
		// so this divergence is possible and distinct from an incomplete
		// upload.
		return nil, &CountMismatchError{Expected: session.TotalChunks, Actual: len(chunkPaths), Source: "storage"}
	}

	// From here on, any failure tears the session down best-effort while the
	// original error is surfaced.
	defer func() {
		if err != nil {
			log.Warn().Err(err).Str("session_id", req.SessionID).Msg("finalize failed, cleaning up session")
			s.cleanupSession(ctx, req.SessionID, chunkPaths)
			err = fmt.Errorf("failed to finalize upload for session %s: %w", req.SessionID, err)
		}
	}()

	sorted, err := sortChunkPaths(chunkPaths)
	if err != nil {
		return nil, err
	}

	var buffer bytes.Buffer
	for _, key := range sorted {
		if err = s.appendChunk(ctx, &buffer, key); err != nil {
			return nil, err
		}
	}

	if int64(buffer.Len()) != session.FileSize {
		// Advisory only: the counter and listing checks passed, so the
		// declared size is the suspect value.
		log.Warn().
			Str("session_id", req.SessionID).
			Int("reassembled_size", buffer.Len()).
			Int64("declared_size", session.FileSize).
			Msg("reassembled size differs from declared file size")
	}

	log.Info().
		Str("session_id", req.SessionID).
		Int("chunks", len(sorted)).
		Int("size", buffer.Len()).
		Msg("file reassembled")

	outcome, err = s.pinImageAndMetadata(ctx, buffer.Bytes(), session.FileName, session.FileType, req.Name, req.Description, req.ExternalURL, req.Attributes)
	if err != nil {
		return nil, err
	}

	s.recordPin(ctx, outcome, req.Name, session.FileName, int64(buffer.Len()), "chunked")

	// Success-path teardown is best-effort too: the pins are durable, so a
	// straggling blob must not fail the request.
	s.cleanupSession(ctx, req.SessionID, chunkPaths)

	log.Info().
		Str("session_id", req.SessionID).
		Str("token_uri", outcome.TokenURI).
		Str("image_uri", outcome.ImageURI).
		Msg("upload finalized")

	return outcome, nil
}

// DirectPin handles the non-chunked path: decode the whole file from one
// base64 payload, pin it, then pin its metadata. No session state exists, so
// there is nothing to clean up.
func (s *Service) DirectPin(ctx context.Context, req *types.DirectPinRequest) (*types.PinOutcome, error) {
	data, err := decodeBase64Payload(req.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = "nft-image.png"
	}
	fileType := req.FileType
	if fileType == "" {
		fileType = "image/png"
	}

	outcome, err := s.pinImageAndMetadata(ctx, data, fileName, fileType, req.Name, req.Description, req.ExternalURL, req.Attributes)
	if err != nil {
		return nil, err
	}

	s.recordPin(ctx, outcome, req.Name, fileName, int64(len(data)), "direct")

	return outcome, nil
}

// pinImageAndMetadata runs the shared two-stage protocol: pin the image,
// then pin a metadata document referencing it
func (s *Service) pinImageAndMetadata(ctx context.Context, image []byte, fileName, fileType, name, description, externalURL string, attributes []types.Attribute) (*types.PinOutcome, error) {
	imageResult, err := s.pinner.PinFile(ctx, image, fileName, fileType)
	if err != nil {
		return nil, fmt.Errorf("failed to pin image: %w", err)
	}
	imageURI := s.contentURI(imageResult.CID)

	if attributes == nil {
		attributes = []types.Attribute{}
	}
	metadata := types.NFTMetadata{
		Name:        name,
		Description: description,
		Image:       imageURI,
		ExternalURL: externalURL,
		Attributes:  attributes,
	}

	jsonName := fmt.Sprintf("%s_%s.json", sanitizeName(name), uuid.New().String()[:8])
	jsonResult, err := s.pinner.PinJSON(ctx, metadata, jsonName)
	if err != nil {
		return nil, fmt.Errorf("failed to pin metadata: %w", err)
	}

	return &types.PinOutcome{
		TokenURI: s.contentURI(jsonResult.CID),
		ImageURI: imageURI,
		JSONCID:  jsonResult.CID,
		ImageCID: imageResult.CID,
	}, nil
}

// recordPin writes a history entry. The pins are already durable, so a
// failed write is logged and the request still succeeds.
func (s *Service) recordPin(ctx context.Context, outcome *types.PinOutcome, name, fileName string, size int64, source string) {
	if s.history == nil {
		return
	}
	record := &types.PinRecord{
		Name:     name,
		FileName: fileName,
		FileSize: size,
		ImageCID: outcome.ImageCID,
		JSONCID:  outcome.JSONCID,
		TokenURI: outcome.TokenURI,
		ImageURI: outcome.ImageURI,
		Source:   source,
	}
	if err := s.history.Record(ctx, record); err != nil {
		log.Error().Err(err).Str("json_cid", outcome.JSONCID).Msg("failed to record pin history")
	}
}

func (s *Service) contentURI(cid string) string {
	return s.uriScheme + "://" + cid
}

// getSession loads the static session record, mapping a missing record to
// ErrSessionNotFound
func (s *Service) getSession(ctx context.Context, sessionID string) (*types.UploadSession, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	exists, err := s.storage.Exists(ctx, sessionPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to check session %s: %w", sessionID, err)
	}
	if !exists {
		return nil, ErrSessionNotFound
	}

	reader, err := s.storage.Retrieve(ctx, sessionPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session %s: %w", sessionID, err)
	}
	defer reader.Close()

	var session types.UploadSession
	if err := json.NewDecoder(reader).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session record %s: %w", sessionID, err)
	}
	return &session, nil
}

// appendChunk downloads one chunk blob into the reassembly buffer
func (s *Service) appendChunk(ctx context.Context, buffer *bytes.Buffer, key string) error {
	reader, err := s.storage.Retrieve(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to download chunk %s: %w", key, err)
	}
	defer reader.Close()

	if _, err := io.Copy(buffer, reader); err != nil {
		return fmt.Errorf("failed to read chunk %s: %w", key, err)
	}
	return nil
}
