package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadSession holds the static metadata for one in-flight chunked upload.
// It is written once by the init endpoint and never mutated afterwards.
type UploadSession struct {
	SessionID   string    `json:"sessionId"`
	FileName    string    `json:"fileName"`
	FileType    string    `json:"fileType"`
	FileSize    int64     `json:"fileSize"`
	TotalChunks int       `json:"totalChunks"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Attribute is a single OpenSea-style NFT trait
type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// NFTMetadata is the token metadata document pinned alongside the image
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	ExternalURL string      `json:"external_url"`
	Attributes  []Attribute `json:"attributes"`
}

// PinResult is what the pinning service reports for a piece of content.
// It is returned to callers transiently and never persisted as-is.
type PinResult struct {
	CID       string    `json:"cid"`
	SizeBytes int64     `json:"sizeBytes"`
	Timestamp time.Time `json:"timestamp"`
}

// PinOutcome is the final result of a create-and-pin flow, chunked or direct
type PinOutcome struct {
	TokenURI string `json:"tokenURI"`
	ImageURI string `json:"imageURI"`
	JSONCID  string `json:"jsonCID"`
	ImageCID string `json:"imageCID"`
}

// PinRecord is the persisted history entry for a successful pin
type PinRecord struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;index"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	ImageCID  string    `json:"image_cid" gorm:"not null"`
	JSONCID   string    `json:"json_cid" gorm:"not null;uniqueIndex"`
	TokenURI  string    `json:"token_uri" gorm:"not null"`
	ImageURI  string    `json:"image_uri" gorm:"not null"`
	Source    string    `json:"source" gorm:"not null"` // "chunked" or "direct"
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the record ID
func (p *PinRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// InitUploadRequest starts a chunked upload session
type InitUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	FileType    string `json:"fileType" binding:"required"`
	FileSize    int64  `json:"fileSize" binding:"required,gt=0"`
	TotalChunks int    `json:"totalChunks" binding:"required,gt=0"`
	SessionID   string `json:"sessionId" binding:"required"`
}

// InitUploadResponse acknowledges session creation
type InitUploadResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"sessionId"`
}

// UploadChunkRequest carries one base64-encoded chunk.
// ChunkIndex is a pointer so that index 0 survives required-field validation.
type UploadChunkRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	ChunkIndex  *int   `json:"chunkIndex" binding:"required"`
	ChunkData   string `json:"chunkData" binding:"required"`
	TotalChunks int    `json:"totalChunks"`
}

// UploadChunkResponse reports progress after a chunk is stored
type UploadChunkResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	ChunksReceived int    `json:"chunksReceived"`
	TotalChunks    int    `json:"totalChunks"`
}

// FinalizeUploadRequest closes out a session and pins the reassembled file
type FinalizeUploadRequest struct {
	SessionID   string      `json:"sessionId" binding:"required"`
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description" binding:"required"`
	ExternalURL string      `json:"externalUrl"`
	Attributes  []Attribute `json:"attributes"`
}

// DirectPinRequest pins a whole file and its metadata in one request
type DirectPinRequest struct {
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description" binding:"required"`
	ImageBase64 string      `json:"imageBase64" binding:"required"`
	FileName    string      `json:"fileName"`
	FileType    string      `json:"fileType"`
	ExternalURL string      `json:"externalUrl"`
	Attributes  []Attribute `json:"attributes"`
}

// PinResponse is the shared success shape for finalize and direct pin
type PinResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	TokenURI string `json:"tokenURI"`
	ImageURI string `json:"imageURI"`
	JSONCID  string `json:"jsonCID"`
	ImageCID string `json:"imageCID"`
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
