package upload

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortChunkPaths(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		expected []string
	}{
		{
			name:     "already ordered",
			paths:    []string{"s/chunk_0", "s/chunk_1", "s/chunk_2"},
			expected: []string{"s/chunk_0", "s/chunk_1", "s/chunk_2"},
		},
		{
			name:     "reversed",
			paths:    []string{"s/chunk_2", "s/chunk_1", "s/chunk_0"},
			expected: []string{"s/chunk_0", "s/chunk_1", "s/chunk_2"},
		},
		{
			name: "double digit indices sort numerically",
			paths: []string{
				"s/chunk_10", "s/chunk_2", "s/chunk_0", "s/chunk_11",
				"s/chunk_1", "s/chunk_9", "s/chunk_3", "s/chunk_4",
				"s/chunk_5", "s/chunk_6", "s/chunk_7", "s/chunk_8",
			},
			expected: []string{
				"s/chunk_0", "s/chunk_1", "s/chunk_2", "s/chunk_3",
				"s/chunk_4", "s/chunk_5", "s/chunk_6", "s/chunk_7",
				"s/chunk_8", "s/chunk_9", "s/chunk_10", "s/chunk_11",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sorted, err := sortChunkPaths(tt.paths)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sorted)
		})
	}
}

func TestSortChunkPaths_Malformed(t *testing.T) {
	_, err := sortChunkPaths([]string{"s/chunk_0", "s/chunk_abc"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "malformed chunk key")
}

func TestDecodeBase64Payload(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff}
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		payload string
	}{
		{name: "bare base64", payload: encoded},
		{name: "data URI prefix", payload: "data:image/png;base64," + encoded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := decodeBase64Payload(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, raw, decoded)
		})
	}
}

func TestDecodeBase64Payload_Invalid(t *testing.T) {
	_, err := decodeBase64Payload("not base64!!!")
	assert.Error(t, err)
}

func TestIsChunkPath(t *testing.T) {
	assert.True(t, isChunkPath("session-1/chunk_0"))
	assert.True(t, isChunkPath("session-1/chunk_42"))
	assert.False(t, isChunkPath("session-1/session.json"))
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		valid     bool
	}{
		{name: "uuid style", sessionID: "3f2c9a1e-8b4d-4f6a-9c0e-1d2b3a4c5d6e", valid: true},
		{name: "underscores and digits", sessionID: "upload_42", valid: true},
		{name: "empty", sessionID: "", valid: false},
		{name: "parent traversal", sessionID: "../evil", valid: false},
		{name: "embedded separator", sessionID: "a/b", valid: false},
		{name: "backslash separator", sessionID: `a\b`, valid: false},
		{name: "dots", sessionID: "..", valid: false},
		{name: "whitespace", sessionID: "session 1", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSessionID(tt.sessionID)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSessionID)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "My_NFT_1", sanitizeName("My NFT #1"))
	assert.Equal(t, "plain-name_v2.0", sanitizeName("plain-name_v2.0"))
}

func TestCountMismatchError_Message(t *testing.T) {
	err := &CountMismatchError{Expected: 5, Actual: 4, Source: "counter"}
	assert.Contains(t, err.Error(), "expected 5")
	assert.Contains(t, err.Error(), "received 4")
}
