package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/yzRobo/mintcanvas-server/internal/history"
	"github.com/yzRobo/mintcanvas-server/internal/upload"
	"github.com/yzRobo/mintcanvas-server/pkg/types"
)

// handleInitUpload starts a chunked upload session
func handleInitUpload(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.InitUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Error:   "Missing required fields (fileName, fileType, fileSize, totalChunks, sessionId)",
			})
			return
		}

		if err := uploadService.InitSession(c.Request.Context(), &req); err != nil {
			if errors.Is(err, upload.ErrInvalidSessionID) {
				c.JSON(http.StatusBadRequest, types.APIResponse{
					Success: false,
					Error:   "Invalid sessionId; only letters, digits, '-' and '_' are allowed",
				})
				return
			}
			log.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to initialize upload session")
			c.JSON(http.StatusInternalServerError, types.APIResponse{
				Success: false,
				Error:   "Failed to initialize chunked upload: " + err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, types.InitUploadResponse{
			Success:   true,
			Message:   "Chunked upload session initialized",
			SessionID: req.SessionID,
		})
	}
}

// handleUploadChunk accepts one base64-encoded chunk
func handleUploadChunk(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.UploadChunkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Error:   "Missing required fields (sessionId, chunkIndex, chunkData)",
			})
			return
		}

		received, total, err := uploadService.ReceiveChunk(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, upload.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, types.APIResponse{
					Success: false,
					Error:   "Session not found; it may have expired or was never initialized",
				})
				return
			}
			if errors.Is(err, upload.ErrInvalidSessionID) || errors.Is(err, upload.ErrChunkOutOfRange) {
				c.JSON(http.StatusBadRequest, types.APIResponse{
					Success: false,
					Error:   err.Error(),
				})
				return
			}
			log.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to process chunk")
			c.JSON(http.StatusInternalServerError, types.APIResponse{
				Success: false,
				Error:   "Failed to upload chunk for session " + req.SessionID + ": " + err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, types.UploadChunkResponse{
			Success:        true,
			Message:        "Chunk " + strconv.Itoa(*req.ChunkIndex+1) + "/" + strconv.Itoa(total) + " received and stored",
			ChunksReceived: received,
			TotalChunks:    total,
		})
	}
}

// handleFinalizeUpload verifies, reassembles, pins, and cleans up a session
func handleFinalizeUpload(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.FinalizeUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Error:   "Missing required fields (sessionId, name, description)",
			})
			return
		}

		outcome, err := uploadService.Finalize(c.Request.Context(), &req)
		if err != nil {
			status, message := finalizeErrorResponse(req.SessionID, err)
			if status == http.StatusInternalServerError {
				log.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to finalize upload")
			}
			c.JSON(status, types.APIResponse{Success: false, Error: message})
			return
		}

		c.JSON(http.StatusOK, types.PinResponse{
			Success:  true,
			Message:  "File processed and metadata pinned successfully",
			TokenURI: outcome.TokenURI,
			ImageURI: outcome.ImageURI,
			JSONCID:  outcome.JSONCID,
			ImageCID: outcome.ImageCID,
		})
	}
}

// finalizeErrorResponse maps pipeline errors onto HTTP statuses
func finalizeErrorResponse(sessionID string, err error) (int, string) {
	var mismatch *upload.CountMismatchError
	switch {
	case errors.Is(err, upload.ErrInvalidSessionID):
		return http.StatusBadRequest, "Invalid sessionId; only letters, digits, '-' and '_' are allowed"
	case errors.Is(err, upload.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found; it may have expired or was never initialized"
	case errors.Is(err, upload.ErrCounterMissing):
		return http.StatusBadRequest, "Session chunk count missing or expired. Please try again."
	case errors.As(err, &mismatch):
		return http.StatusBadRequest, mismatch.Error()
	default:
		return http.StatusInternalServerError, "Failed to finalize upload for session " + sessionID + ": " + err.Error()
	}
}

// handleDirectPin pins a whole file plus metadata in a single request
func handleDirectPin(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.DirectPinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.APIResponse{
				Success: false,
				Error:   "Missing required fields (imageBase64, name, description)",
			})
			return
		}

		outcome, err := uploadService.DirectPin(c.Request.Context(), &req)
		if err != nil {
			log.Error().Err(err).Str("name", req.Name).Msg("failed to pin content")
			c.JSON(http.StatusInternalServerError, types.APIResponse{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, types.PinResponse{
			Success:  true,
			Message:  "Metadata created and pinned successfully",
			TokenURI: outcome.TokenURI,
			ImageURI: outcome.ImageURI,
			JSONCID:  outcome.JSONCID,
			ImageCID: outcome.ImageCID,
		})
	}
}

// handleListPins returns the most recent pin-history records
func handleListPins(historyService *history.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		records, err := historyService.List(c.Request.Context(), limit)
		if err != nil {
			log.Error().Err(err).Msg("failed to list pin history")
			c.JSON(http.StatusInternalServerError, types.APIResponse{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, types.APIResponse{Success: true, Data: records})
	}
}
