// Package history records successful pins so the gallery can list previously
// minted metadata without walking the chain.
package history

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yzRobo/mintcanvas-server/internal/common"
	"github.com/yzRobo/mintcanvas-server/pkg/types"
)

// Service handles pin-history persistence
type Service struct {
	DB *common.Database
}

// NewService creates a new history service
func NewService(db *common.Database) *Service {
	return &Service{DB: db}
}

// Record persists one pin-history entry
func (s *Service) Record(ctx context.Context, record *types.PinRecord) error {
	if err := s.DB.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to record pin: %w", err)
	}

	log.Info().
		Str("record_id", record.ID.String()).
		Str("name", record.Name).
		Str("json_cid", record.JSONCID).
		Str("source", record.Source).
		Msg("pin recorded")

	return nil
}

// List returns up to limit pin records, newest first
func (s *Service) List(ctx context.Context, limit int) ([]types.PinRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var records []types.PinRecord
	err := s.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	return records, nil
}
