package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/goliathlabs/bridge-tracker/internal/metrics"
)

// Store is the in-memory source of truth for bridge operations. All
// mutations go through Merge so the lifecycle rules cannot be bypassed.
// Reads return copies; callers never hold references into the store.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	operations map[string]Operation
	order      []string // newest first

	activeID     string
	pollingError string
	lastError    string

	submitting           bool
	approving            bool
	submittingResetAfter time.Duration
	submittingResetTimer *time.Timer

	changes chan struct{}
}

// NewStore creates an empty store. submittingResetAfter bounds how long
// the submitting flag can stay raised before the safety net clears it;
// zero disables the safety net.
func NewStore(submittingResetAfter time.Duration) *Store {
	return &Store{
		now:                  time.Now,
		operations:           make(map[string]Operation),
		submittingResetAfter: submittingResetAfter,
		changes:              make(chan struct{}, 1),
	}
}

// Changes returns a channel that receives a signal after every
// operation mutation. Used to trigger snapshot persistence.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notifyLocked() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Add inserts a new operation at the front of the ordering and marks it
// active.
func (s *Store) Add(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operations[op.ID]; exists {
		return fmt.Errorf("operation %s already exists", op.ID)
	}

	s.operations[op.ID] = op
	s.order = append([]string{op.ID}, s.order...)
	s.activeID = op.ID
	s.updatePendingGaugeLocked()
	s.notifyLocked()
	return nil
}

// ApplyUpdate merges an update into a stored operation. Unknown ids are
// ignored and reported false.
func (s *Store) ApplyUpdate(id string, u StatusUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operations[id]
	if !ok {
		return false
	}

	merged := Merge(op, u, s.now())
	s.operations[id] = merged

	if !op.Status.Terminal() && merged.Status.Terminal() {
		metrics.OperationsCompleted.WithLabelValues(string(merged.Direction), string(merged.Status)).Inc()
		elapsed := time.Duration(merged.UpdatedAt-merged.CreatedAt) * time.Millisecond
		metrics.OperationDuration.WithLabelValues(string(merged.Direction)).Observe(elapsed.Seconds())
	}

	s.updatePendingGaugeLocked()
	s.notifyLocked()
	return true
}

// Remove deletes an operation. The active id is cleared if it pointed
// at the removed operation.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.operations[id]; !ok {
		return
	}

	delete(s.operations, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = ""
	}
	s.updatePendingGaugeLocked()
	s.notifyLocked()
}

// LoadBulk replaces the store contents with a restored snapshot. Ids
// without a matching operation are dropped; operations missing from the
// ordering are appended at the end so nothing restored is lost.
func (s *Store) LoadBulk(operations map[string]Operation, order []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.operations = make(map[string]Operation, len(operations))
	s.order = s.order[:0]

	seen := make(map[string]bool, len(operations))
	for _, id := range order {
		op, ok := operations[id]
		if !ok || seen[id] {
			continue
		}
		s.operations[id] = op
		s.order = append(s.order, id)
		seen[id] = true
	}
	for id, op := range operations {
		if !seen[id] {
			s.operations[id] = op
			s.order = append(s.order, id)
		}
	}
	s.activeID = ""
	s.updatePendingGaugeLocked()
	s.notifyLocked()
}

func (s *Store) updatePendingGaugeLocked() {
	pending := map[Direction]int{DirectionSepoliaToGoliath: 0, DirectionGoliathToSepolia: 0}
	for _, op := range s.operations {
		if !op.Status.Terminal() {
			pending[op.Direction]++
		}
	}
	for direction, count := range pending {
		metrics.PendingOperations.WithLabelValues(string(direction)).Set(float64(count))
	}
}

// Export returns a copy of the operations map and ordering for
// snapshotting.
func (s *Store) Export() (map[string]Operation, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	operations := make(map[string]Operation, len(s.operations))
	for id, op := range s.operations {
		operations[id] = op
	}
	order := make([]string, len(s.order))
	copy(order, s.order)
	return operations, order
}

// Get returns a single operation by id
func (s *Store) Get(id string) (Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operations[id]
	return op, ok
}

// All returns every operation, newest first
func (s *Store) All() []Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Operation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.operations[id])
	}
	return out
}

// Active returns the operation currently in focus, if any
func (s *Store) Active() (Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == "" {
		return Operation{}, false
	}
	op, ok := s.operations[s.activeID]
	return op, ok
}

// SetActive changes which operation is in focus. An empty id clears it.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
}

// Pending returns non-terminal operations, newest first
func (s *Store) Pending() []Operation {
	return s.filter(func(op Operation) bool { return !op.Status.Terminal() })
}

// Completed returns successfully finished operations, newest first
func (s *Store) Completed() []Operation {
	return s.filter(func(op Operation) bool { return op.Status == StatusCompleted })
}

// Failed returns failed and expired operations, newest first
func (s *Store) Failed() []Operation {
	return s.filter(func(op Operation) bool {
		return op.Status == StatusFailed || op.Status == StatusExpired
	})
}

// Recent returns up to n operations, newest first
func (s *Store) Recent(n int) []Operation {
	all := s.All()
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// ByAddress returns operations sent by the given address, newest first
func (s *Store) ByAddress(sender string) []Operation {
	return s.filter(func(op Operation) bool { return op.Sender == sender })
}

func (s *Store) filter(keep func(Operation) bool) []Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Operation
	for _, id := range s.order {
		if op := s.operations[id]; keep(op) {
			out = append(out, op)
		}
	}
	return out
}

// SetPollingError records a transient poller failure message shown
// alongside otherwise stale data. It is never persisted.
func (s *Store) SetPollingError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollingError = msg
}

// ClearPollingError removes the transient poller failure message
func (s *Store) ClearPollingError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollingError = ""
}

// PollingError returns the current transient poller failure message
func (s *Store) PollingError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pollingError
}

// SetError records the last submission failure message
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// LastError returns the last submission failure message
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// SetSubmitting raises or clears the submission-in-flight flag. When
// raised, a safety timer clears it after submittingResetAfter in case a
// submission path fails to release it.
func (s *Store) SetSubmitting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitting = v
	if s.submittingResetTimer != nil {
		s.submittingResetTimer.Stop()
		s.submittingResetTimer = nil
	}
	if v && s.submittingResetAfter > 0 {
		s.submittingResetTimer = time.AfterFunc(s.submittingResetAfter, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.submitting = false
			s.submittingResetTimer = nil
		})
	}
}

// IsSubmitting reports whether a submission is in flight
func (s *Store) IsSubmitting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submitting
}

// SetApproving raises or clears the approval-in-flight flag
func (s *Store) SetApproving(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approving = v
}

// IsApproving reports whether an ERC-20 approval is in flight
func (s *Store) IsApproving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approving
}
