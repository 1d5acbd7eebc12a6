// Package pinning talks to the Pinata pinning service. Content handed to it
// becomes retrievable by CID from any IPFS gateway once pinned.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yzRobo/mintcanvas-server/pkg/config"
	"github.com/yzRobo/mintcanvas-server/pkg/types"
)

const (
	pinFilePath = "/pinning/pinFileToIPFS"
	pinJSONPath = "/pinning/pinJSONToIPFS"
)

// Client is a Pinata API client scoped to the pinning endpoints
type Client struct {
	baseURL     string
	jwt         string
	httpClient  *http.Client
	fileTimeout time.Duration
	jsonTimeout time.Duration
}

// pinataResponse is the wire shape Pinata returns for both pin endpoints
type pinataResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewClient creates a Pinata client. A missing JWT is a configuration error
// and fails construction rather than the first request.
func NewClient(cfg *config.PinataConfig) (*Client, error) {
	if cfg.JWT == "" {
		return nil, fmt.Errorf("pinata JWT is not configured")
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		jwt:         cfg.JWT,
		httpClient:  &http.Client{},
		fileTimeout: cfg.FileTimeout,
		jsonTimeout: cfg.JSONTimeout,
	}, nil
}

// PinFile pins raw file content and returns its pin result. Large files ride
// the longer file timeout since Pinata hashes the full payload before
// responding.
func (c *Client) PinFile(ctx context.Context, content []byte, fileName, fileType string) (*types.PinResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", fileType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}

	metaJSON, _ := json.Marshal(map[string]string{"name": fileName})
	if err := writer.WriteField("pinataMetadata", string(metaJSON)); err != nil {
		return nil, fmt.Errorf("failed to write metadata part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	startTime := time.Now()
	result, err := c.post(ctx, pinFilePath, &body, writer.FormDataContentType(), c.fileTimeout)
	if err != nil {
		return nil, fmt.Errorf("pinata file pinning failed: %w", err)
	}

	log.Info().
		Str("file_name", fileName).
		Str("cid", result.CID).
		Int64("pin_size", result.SizeBytes).
		Dur("duration", time.Since(startTime)).
		Msg("file pinned")

	return result, nil
}

// PinJSON pins a JSON document and returns its pin result
func (c *Client) PinJSON(ctx context.Context, content interface{}, name string) (*types.PinResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"pinataOptions":  map[string]interface{}{"cidVersion": 1},
		"pinataMetadata": map[string]string{"name": name},
		"pinataContent":  content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pin payload: %w", err)
	}

	result, err := c.post(ctx, pinJSONPath, bytes.NewReader(payload), "application/json", c.jsonTimeout)
	if err != nil {
		return nil, fmt.Errorf("pinata JSON pinning failed: %w", err)
	}

	log.Info().Str("name", name).Str("cid", result.CID).Msg("JSON pinned")
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body io.Reader, contentType string, timeout time.Duration) (*types.PinResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed pinataResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.IpfsHash == "" {
		return nil, fmt.Errorf("response missing IpfsHash")
	}

	timestamp, err := time.Parse(time.RFC3339, parsed.Timestamp)
	if err != nil {
		timestamp = time.Now().UTC()
	}

	return &types.PinResult{
		CID:       parsed.IpfsHash,
		SizeBytes: parsed.PinSize,
		Timestamp: timestamp,
	}, nil
}
