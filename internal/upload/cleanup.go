package upload

import (
	"context"

	"github.com/rs/zerolog/log"
)

// cleanupAction is one independent deletion step. Actions never depend on
// each other succeeding.
type cleanupAction struct {
	name string
	run  func(ctx context.Context) error
}

// runCleanup executes every action, logging failures without aborting the
// rest. Cleanup errors are never surfaced to the caller; the triggering
// error (if any) takes precedence in the response.
func runCleanup(ctx context.Context, sessionID string, actions []cleanupAction) {
	for _, action := range actions {
		if err := action.run(ctx); err != nil {
			log.Error().Err(err).
				Str("session_id", sessionID).
				Str("action", action.name).
				Msg("session cleanup step failed")
		}
	}
}

// cleanupSession deletes all temporary artifacts of a session: the listed
// chunk blobs, the session record, and the chunk counter
func (s *Service) cleanupSession(ctx context.Context, sessionID string, chunkPaths []string) {
	actions := []cleanupAction{
		{name: "delete_chunks", run: func(ctx context.Context) error {
			return s.storage.DeleteAll(ctx, chunkPaths)
		}},
		{name: "delete_session_record", run: func(ctx context.Context) error {
			return s.storage.Delete(ctx, sessionPath(sessionID))
		}},
		{name: "delete_counter", run: func(ctx context.Context) error {
			return s.counter.Delete(ctx, sessionID)
		}},
	}
	runCleanup(ctx, sessionID, actions)
}
