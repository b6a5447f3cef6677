// File: internal/retry/store.go
package retry

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

// Store persists the retry journal as a JSON file. Loads are lenient: a
// missing file means a fresh start, a corrupt one is logged and treated
// as empty, and individually malformed records are skipped.
type Store struct {
	path   string
	logger *zap.Logger
}

// strategyState is the on-disk layout. Patterns are not persisted; they
// are rebuilt by replaying the records.
type strategyState struct {
	Records []jsoniter.RawMessage `json:"records"`
}

// NewStore creates a store writing to path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger.With(zap.String("component", "retry_store")),
	}
}

// Save writes the journal atomically (temp file plus rename).
func (s *Store) Save(records []schemas.FailureRecord) error {
	state := strategyState{Records: make([]jsoniter.RawMessage, 0, len(records))}
	for i := range records {
		raw, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("marshaling record %d: %w", i, err)
		}
		state.Records = append(state.Records, raw)
	}

	data, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling journal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing journal: %w", err)
	}
	return nil
}

// Load reads the journal. It never returns an error; persistence problems
// degrade to an empty journal with a warning.
func (s *Store) Load() []schemas.FailureRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read retry journal; starting empty", zap.Error(err))
		}
		return nil
	}

	var state strategyState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("Corrupt retry journal; starting empty", zap.Error(err))
		return nil
	}

	records := make([]schemas.FailureRecord, 0, len(state.Records))
	for i, raw := range state.Records {
		var rec schemas.FailureRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.logger.Warn("Skipping malformed journal record",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		if rec.Site == "" || !rec.Type.Valid() {
			s.logger.Warn("Skipping invalid journal record", zap.Int("index", i))
			continue
		}
		records = append(records, rec)
	}
	return records
}
