// File: internal/analytics/store.go
package analytics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store persists analytics state as one JSON file: the bounded record
// journal plus the site metrics map.
type Store struct {
	path   string
	logger *zap.Logger
}

type analyticsState struct {
	Records []jsoniter.RawMessage           `json:"records"`
	Sites   map[string]*schemas.SiteMetrics `json:"sites"`
}

// NewStore creates a store writing to path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger.With(zap.String("component", "analytics_store")),
	}
}

// Save writes the state atomically (temp file plus rename).
func (s *Store) Save(records []schemas.FailureRecord, sites map[string]*schemas.SiteMetrics) error {
	state := analyticsState{
		Records: make([]jsoniter.RawMessage, 0, len(records)),
		Sites:   sites,
	}
	for i := range records {
		raw, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("marshaling record %d: %w", i, err)
		}
		state.Records = append(state.Records, raw)
	}

	data, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling analytics state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing analytics state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing analytics state: %w", err)
	}
	return nil
}

// Load reads persisted state leniently: a missing file or corrupt state
// yields empty results, and malformed individual records are skipped.
func (s *Store) Load() ([]schemas.FailureRecord, map[string]*schemas.SiteMetrics) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read analytics state; starting empty", zap.Error(err))
		}
		return nil, nil
	}

	var state analyticsState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("Corrupt analytics state; starting empty", zap.Error(err))
		return nil, nil
	}

	records := make([]schemas.FailureRecord, 0, len(state.Records))
	for i, raw := range state.Records {
		var rec schemas.FailureRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.logger.Warn("Skipping malformed analytics record",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		if rec.Site == "" || !rec.Type.Valid() {
			s.logger.Warn("Skipping invalid analytics record", zap.Int("index", i))
			continue
		}
		records = append(records, rec)
	}

	for name, m := range state.Sites {
		if m == nil {
			delete(state.Sites, name)
			continue
		}
		m.Site = name
	}
	return records, state.Sites
}
