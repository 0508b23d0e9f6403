// Package booking provides the FSM-based booking dialog implementation.
package booking

import (
	"sync"
	"time"
)

// State represents the current state of a booking dialog.
type State string

const (
	StateIdle           State = "idle"
	StateChooseBarber   State = "choose_barber"
	StateChooseService  State = "choose_service"
	StateChooseDate     State = "choose_date"
	StateChooseSlot     State = "choose_slot"
	StateAskClientName  State = "ask_client_name"
	StateAskClientPhone State = "ask_client_phone"
	StateConfirm        State = "confirm"
	StateComplete       State = "complete"
	StateCanceled       State = "canceled"
)

// Data holds what the dialog has collected so far.
type Data struct {
	ChatID      int64
	BarberID    string
	BarberName  string
	ServiceType int
	Date        string // YYYY-MM-DD
	Slot        string // HH:MM
	StartTime   time.Time
	Notes       string

	// Manual entry fields, set only in the admin flow.
	Manual      bool
	ClientName  string
	ClientPhone string

	CreatedAt time.Time
}

// Session is one user's booking dialog.
type Session struct {
	State     State
	Data      Data
	StartedAt time.Time
	UpdatedAt time.Time
	mu        sync.Mutex
}

// NewSession starts a dialog at barber selection.
func NewSession(chatID int64, manual bool) *Session {
	now := time.Now()
	return &Session{
		State: StateChooseBarber,
		Data: Data{
			ChatID:    chatID,
			Manual:    manual,
			CreatedAt: now,
		},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SetState updates the session state.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.UpdatedAt = time.Now()
}

// GetState returns the current state.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Touch refreshes the activity timestamp without changing state.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// SessionStore manages booking sessions keyed by chat.
type SessionStore struct {
	sessions map[int64]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a session store.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
	}
}

// Get returns the session for a chat, or nil if none or expired. Access
// counts as activity and extends the dialog's lifetime.
func (ss *SessionStore) Get(chatID int64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	session, ok := ss.sessions[chatID]
	if !ok || session.IsExpired(ss.timeout) {
		return nil
	}
	session.Touch()
	return session
}

// Start replaces any existing session with a fresh one.
func (ss *SessionStore) Start(chatID int64, manual bool) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	session := NewSession(chatID, manual)
	ss.sessions[chatID] = session
	return session
}

// Delete removes a session.
func (ss *SessionStore) Delete(chatID int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, chatID)
}

// Cleanup removes expired sessions and returns how many were dropped.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for chatID, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, chatID)
			removed++
		}
	}
	return removed
}

// FSM manages state transitions for the booking dialog. The customer flow
// goes barber, service, date, slot, confirm, with a phone step the first
// time; the admin manual flow inserts client name and phone before the
// confirmation, and jumps from service straight to the contact steps when
// the slot was picked off the calendar grid.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates an FSM with the predefined transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:           {StateChooseBarber},
			StateChooseBarber:   {StateChooseService, StateCanceled},
			StateChooseService:  {StateChooseDate, StateChooseBarber, StateAskClientName, StateCanceled},
			StateChooseDate:     {StateChooseSlot, StateChooseService, StateCanceled},
			StateChooseSlot:     {StateConfirm, StateAskClientName, StateAskClientPhone, StateChooseDate, StateCanceled},
			StateAskClientName:  {StateAskClientPhone, StateCanceled},
			StateAskClientPhone: {StateConfirm, StateCanceled},
			StateConfirm:        {StateComplete, StateChooseSlot, StateCanceled},
			StateComplete:       {StateIdle},
			StateCanceled:       {StateIdle},
		},
	}
}

// CanTransition checks if a transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	allowed, ok := f.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition updates the session state if the transition is allowed.
func (f *FSM) Transition(session *Session, to State) bool {
	if f.CanTransition(session.GetState(), to) {
		session.SetState(to)
		return true
	}
	return false
}

// AfterSlot returns the state that follows slot selection: customers go
// straight to confirmation, manual entries collect client contact first.
func AfterSlot(manual bool) State {
	if manual {
		return StateAskClientName
	}
	return StateConfirm
}
