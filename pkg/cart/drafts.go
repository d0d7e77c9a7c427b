package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DraftStore persists draft lines for one device in a single Redis key
// (<ns>:drafts:<deviceID>). Drafts are scoped to the device, not the user.
type DraftStore struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewDraftStore creates a draft store for deviceID.
func NewDraftStore(client *redis.Client, namespace, deviceID string) *DraftStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if namespace == "" {
		namespace = "pickup"
	}
	return &DraftStore{
		redis:  client,
		key:    fmt.Sprintf("%s:drafts:%s", namespace, deviceID),
		logger: log.With().Str("component", "drafts").Str("device", deviceID).Logger(),
	}
}

// Load returns the last saved draft lines. Missing or unparsable data
// yields an empty slice; only backend failures return an error.
func (s *DraftStore) Load(ctx context.Context) ([]CartLine, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var lines []CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		draftCorruptTotal.Inc()
		s.logger.Warn().Err(err).Msg("Discarding unparsable drafts")
		return nil, nil
	}

	valid := lines[:0]
	for _, l := range lines {
		if l.ID == "" || l.ItemID == "" || l.Quantity <= 0 {
			draftCorruptTotal.Inc()
			s.logger.Warn().Str("line_id", l.ID).Int("quantity", l.Quantity).Msg("Discarding invalid draft line")
			continue
		}
		l.Origin = OriginDraft
		valid = append(valid, l)
	}
	return valid, nil
}

// Save replaces the stored drafts with lines in a single write.
// Saving no lines deletes the record.
func (s *DraftStore) Save(ctx context.Context, lines []CartLine) error {
	if len(lines) == 0 {
		if err := s.redis.Del(ctx, s.key).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal drafts: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
