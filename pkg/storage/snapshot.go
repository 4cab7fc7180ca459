// Package storage persists bridge operations as a single versioned
// JSON snapshot on disk. Persistence is best-effort: a missing,
// corrupt, or unwritable snapshot never blocks the tracker, it only
// loses history.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/internal/metrics"
	"github.com/goliathlabs/bridge-tracker/pkg/bridge"
)

// SnapshotVersion is the only record layout this build reads or writes
const SnapshotVersion = 1

// Snapshot is the on-disk record
type Snapshot struct {
	Version      int                         `json:"version"`
	Operations   map[string]bridge.Operation `json:"operations"`
	OperationIDs []string                    `json:"operationIds"`
	LastUpdated  int64                       `json:"lastUpdated"`
}

// Store reads and writes the snapshot file
type Store struct {
	path       string
	retention  time.Duration
	maxEntries int
	logger     *zap.Logger
	now        func() time.Time
}

// NewStore creates a snapshot store. retention drops operations older
// than the window on load; maxEntries caps how many survive a save.
func NewStore(path string, retention time.Duration, maxEntries int, logger *zap.Logger) *Store {
	return &Store{
		path:       path,
		retention:  retention,
		maxEntries: maxEntries,
		logger:     logger,
		now:        time.Now,
	}
}

// Load reads the snapshot from disk. Absence, corruption, and version
// mismatch all yield an empty result; persistence failures never
// propagate. Operations past the retention window are dropped.
func (s *Store) Load() (map[string]bridge.Operation, []string) {
	empty := map[string]bridge.Operation{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read operations snapshot", zap.Error(err))
		}
		return empty, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("discarding corrupt operations snapshot", zap.Error(err))
		return empty, nil
	}
	if snap.Version != SnapshotVersion {
		s.logger.Warn("discarding operations snapshot with unknown version",
			zap.Int("version", snap.Version))
		return empty, nil
	}

	cutoff := s.now().Add(-s.retention).UnixMilli()
	operations := make(map[string]bridge.Operation, len(snap.Operations))
	var order []string
	dropped := 0

	for _, id := range snap.OperationIDs {
		op, ok := snap.Operations[id]
		if !ok {
			continue
		}
		if op.CreatedAt < cutoff {
			dropped++
			continue
		}
		operations[id] = op
		order = append(order, id)
	}

	s.logger.Info("loaded operations snapshot",
		zap.Int("operations", len(operations)),
		zap.Int("expired", dropped))

	return operations, order
}

// Save writes the snapshot atomically, keeping at most maxEntries of
// the newest operations. Errors are logged and swallowed.
func (s *Store) Save(operations map[string]bridge.Operation, order []string) {
	order = s.cap(operations, order)

	kept := make(map[string]bridge.Operation, len(order))
	for _, id := range order {
		if op, ok := operations[id]; ok {
			kept[id] = op
		}
	}

	snap := Snapshot{
		Version:      SnapshotVersion,
		Operations:   kept,
		OperationIDs: order,
		LastUpdated:  s.now().UnixMilli(),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("failed to encode operations snapshot", zap.Error(err))
		return
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("failed to create snapshot directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("failed to write operations snapshot", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("failed to replace operations snapshot", zap.Error(err))
		return
	}
	metrics.SnapshotSize.Set(float64(len(kept)))
}

// Clear removes the snapshot file. A missing file is not an error.
func (s *Store) Clear() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove operations snapshot", zap.Error(err))
	}
}

// cap keeps the maxEntries newest entries by creation time, preserving
// the stored ordering among survivors.
func (s *Store) cap(operations map[string]bridge.Operation, order []string) []string {
	if s.maxEntries <= 0 || len(order) <= s.maxEntries {
		return order
	}

	type entry struct {
		id      string
		created int64
		pos     int
	}
	entries := make([]entry, 0, len(order))
	for i, id := range order {
		op, ok := operations[id]
		if !ok {
			continue
		}
		entries = append(entries, entry{id: id, created: op.CreatedAt, pos: i})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].created > entries[j].created })
	entries = entries[:s.maxEntries]
	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })

	kept := make([]string, len(entries))
	for i, e := range entries {
		kept[i] = e.id
	}
	return kept
}
