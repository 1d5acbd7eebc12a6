package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const sessionFileName = "session.json"

// ErrInvalidSessionID reports a session ID that is not a plain identifier.
// Session IDs become storage key components, so anything that could act as a
// path segment (separators, "..", empty) is rejected before it reaches a
// backend.
var ErrInvalidSessionID = errors.New("invalid session ID")

// ErrChunkOutOfRange reports a chunk index outside [0, totalChunks). Accepting
// one would let the counter and the storage listing both reach totalChunks
// while a real chunk is still missing.
var ErrChunkOutOfRange = errors.New("chunk index out of range")

// ErrSessionNotFound reports that no session record exists for the given ID,
// either because init was never called or the session was already cleaned up.
var ErrSessionNotFound = errors.New("upload session not found")

// ErrCounterMissing reports that the session's chunk counter is gone while
// the session record still exists. A count of zero is a valid transient
// state; a missing counter means the tracking artifact itself expired.
var ErrCounterMissing = errors.New("session chunk count missing or expired")

// CountMismatchError reports an incomplete or inconsistent upload at
// finalize time. Source distinguishes the counter check from the
// storage-listing check, which guards against counter/storage divergence.
type CountMismatchError struct {
	Expected int
	Actual   int
	Source   string // "counter" or "storage"
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("incomplete upload: expected %d chunks, received %d (%s check); please retry",
		e.Expected, e.Actual, e.Source)
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validateSessionID accepts only plain identifier characters
func validateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return nil
}

// sessionPath returns the storage key of the session's static record
func sessionPath(sessionID string) string {
	return sessionID + "/" + sessionFileName
}

// chunkPath returns the storage key of one chunk blob
func chunkPath(sessionID string, index int) string {
	return fmt.Sprintf("%s/chunk_%d", sessionID, index)
}

// isChunkPath reports whether a listed key under the session prefix is a
// chunk blob (as opposed to the session record)
func isChunkPath(key string) bool {
	return strings.HasPrefix(path.Base(key), "chunk_")
}

// sortChunkPaths orders chunk keys by their numeric index. A plain string
// sort would place chunk_10 before chunk_2.
func sortChunkPaths(paths []string) ([]string, error) {
	indexed := make([]struct {
		key   string
		index int
	}, len(paths))

	for i, key := range paths {
		raw := key[strings.LastIndex(key, "_")+1:]
		index, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed chunk key %q: %w", key, err)
		}
		indexed[i] = struct {
			key   string
			index int
		}{key, index}
	}

	sort.Slice(indexed, func(a, b int) bool {
		return indexed[a].index < indexed[b].index
	})

	sorted := make([]string, len(indexed))
	for i, entry := range indexed {
		sorted[i] = entry.key
	}
	return sorted, nil
}

var dataURIPrefix = regexp.MustCompile(`^data:[^;]+;base64,`)

// decodeBase64Payload decodes base64 content, tolerating an optional
// data-URI prefix the browser's FileReader produces
func decodeBase64Payload(payload string) ([]byte, error) {
	raw := dataURIPrefix.ReplaceAllString(payload, "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// sanitizeName makes an NFT name safe for use in a pin filename
func sanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}
