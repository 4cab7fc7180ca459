package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/pkg/bridge"
)

// Saver mirrors the operation store to disk whenever it changes and
// once more on shutdown.
type Saver struct {
	store  *Store
	bridge *bridge.Store
	logger *zap.Logger
}

// NewSaver creates a saver for the given stores
func NewSaver(store *Store, bridgeStore *bridge.Store, logger *zap.Logger) *Saver {
	return &Saver{store: store, bridge: bridgeStore, logger: logger}
}

// Run blocks until ctx is cancelled, saving after every store change
func (s *Saver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("saver stopping, writing final snapshot")
			s.save()
			return
		case <-s.bridge.Changes():
			s.save()
		}
	}
}

func (s *Saver) save() {
	operations, order := s.bridge.Export()
	s.store.Save(operations, order)
}
