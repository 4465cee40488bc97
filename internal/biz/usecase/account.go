package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// AccountState holds the runtime counters of one account.
// It carries no behaviour beyond bookkeeping.
type AccountState struct {
	mu   sync.Mutex
	snap domain.AccountSnapshot
	now  func() time.Time
}

// NewAccountState creates the state for an account
func NewAccountState(accountID string, configured bool) *AccountState {
	return &AccountState{
		snap: domain.AccountSnapshot{AccountID: accountID, Configured: configured},
		now:  time.Now,
	}
}

// ID returns the account id
func (s *AccountState) ID() string {
	return s.snap.AccountID
}

func (s *AccountState) update(fn func(snap *domain.AccountSnapshot, now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap, s.now())
}

// MarkStarted records a pipeline start
func (s *AccountState) MarkStarted() {
	s.update(func(snap *domain.AccountSnapshot, now time.Time) {
		snap.Running = true
		snap.LastStartAt = now
	})
}

// MarkStopped records a pipeline stop
func (s *AccountState) MarkStopped() {
	s.update(func(snap *domain.AccountSnapshot, now time.Time) {
		snap.Running = false
		snap.Connected = false
		snap.LastStopAt = now
	})
}

// SetConnected records the transport connection state
func (s *AccountState) SetConnected(connected bool) {
	s.update(func(snap *domain.AccountSnapshot, _ time.Time) {
		snap.Connected = connected
	})
}

// RecordInbound counts one received event
func (s *AccountState) RecordInbound() {
	s.update(func(snap *domain.AccountSnapshot, now time.Time) {
		snap.MessageCount++
		snap.LastInboundAt = now
	})
}

// RecordOutbound records a delivered message
func (s *AccountState) RecordOutbound() {
	s.update(func(snap *domain.AccountSnapshot, now time.Time) {
		snap.LastOutboundAt = now
	})
}

// RecordError counts one error and keeps its message
func (s *AccountState) RecordError(err error) {
	if err == nil {
		return
	}
	s.update(func(snap *domain.AccountSnapshot, _ time.Time) {
		snap.ErrorCount++
		snap.LastError = err.Error()
	})
}

// Snapshot returns a copy of the current state
func (s *AccountState) Snapshot() domain.AccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// AccountRegistry indexes the states of every known account
type AccountRegistry struct {
	mu     sync.RWMutex
	states map[string]*AccountState
}

// NewAccountRegistry creates an empty registry
func NewAccountRegistry() *AccountRegistry {
	return &AccountRegistry{states: make(map[string]*AccountState)}
}

// Register adds or replaces the state for its account
func (r *AccountRegistry) Register(state *AccountState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.ID()] = state
}

// Get returns the state for accountID
func (r *AccountRegistry) Get(accountID string) (*AccountState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[accountID]
	return s, ok
}

// Snapshots returns every account's snapshot ordered by account id
func (r *AccountRegistry) Snapshots() []domain.AccountSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]domain.AccountSnapshot, 0, len(r.states))
	for _, s := range r.states {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].AccountID < snaps[j].AccountID })
	return snaps
}
