package bot

import "sync"

// awaitKind marks what the next plain-text message from a chat means.
type awaitKind string

const (
	awaitNone         awaitKind = ""
	awaitRejectReason awaitKind = "reject_reason"
	awaitCancelReason awaitKind = "cancel_reason"
	awaitBlockRange   awaitKind = "block_range"
	awaitSchedule     awaitKind = "schedule"
)

type pendingInput struct {
	Kind          awaitKind
	AppointmentID string
	BarberID      string
}

type inputStore struct {
	mu sync.Mutex
	m  map[int64]pendingInput
}

func newInputStore() *inputStore {
	return &inputStore{m: make(map[int64]pendingInput)}
}

func (s *inputStore) set(chatID int64, p pendingInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[chatID] = p
}

func (s *inputStore) take(chatID int64) pendingInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.m[chatID]
	delete(s.m, chatID)
	return p
}

func (s *inputStore) clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}
