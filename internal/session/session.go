// Package session keeps transient per-user conversation state in memory.
//
// State is lost on restart and never expires: a user who abandons a
// multi-step flow finds it where they left it until a control command
// starts a new one.
package session

import "sync"

// Phase is the step of the conversation a user is in.
type Phase int

const (
	Idle Phase = iota
	EditingCategories
	AwaitingAmount
	AwaitingCategoryName
	AwaitingCategoryGlyph
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case EditingCategories:
		return "editing_categories"
	case AwaitingAmount:
		return "awaiting_amount"
	case AwaitingCategoryName:
		return "awaiting_category_name"
	case AwaitingCategoryGlyph:
		return "awaiting_category_glyph"
	}
	return "unknown"
}

// Selection is the category chosen for the next amount.
type Selection struct {
	CategoryID int64
	Name       string
	Glyph      string
}

// State is a value copy; mutate it through Store.
type State struct {
	Phase       Phase
	Editing     bool
	Pending     *Selection
	PartialName string
	HasPartial  bool
}

// Store maps user ids to their State. The mutex guards the map only;
// overlapping messages from one user can still interleave their updates.
type Store struct {
	mu     sync.Mutex
	states map[int64]*State
}

func NewStore() *Store {
	return &Store{states: make(map[int64]*State)}
}

// Get returns a copy of the user's state, or the zero state.
func (s *Store) Get(uid int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[uid]
	if !ok {
		return State{}
	}
	out := *st
	if st.Pending != nil {
		p := *st.Pending
		out.Pending = &p
	}
	return out
}

func (s *Store) update(uid int64, fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[uid]
	if !ok {
		st = &State{}
		s.states[uid] = st
	}
	fn(st)
}

func (s *Store) SetPhase(uid int64, p Phase) {
	s.update(uid, func(st *State) { st.Phase = p })
}

func (s *Store) SetEditingMode(uid int64, on bool) {
	s.update(uid, func(st *State) { st.Editing = on })
}

func (s *Store) SetPendingSelection(uid int64, sel Selection) {
	s.update(uid, func(st *State) { st.Pending = &sel })
}

func (s *Store) ClearPendingSelection(uid int64) {
	s.update(uid, func(st *State) { st.Pending = nil })
}

// BeginCategoryCreation drops any half-typed name and waits for a new one.
func (s *Store) BeginCategoryCreation(uid int64) {
	s.update(uid, func(st *State) {
		st.PartialName = ""
		st.HasPartial = false
		st.Phase = AwaitingCategoryName
	})
}

func (s *Store) SetPartialName(uid int64, name string) {
	s.update(uid, func(st *State) {
		st.PartialName = name
		st.HasPartial = true
	})
}

// TakePartialName returns the stored name and clears it.
func (s *Store) TakePartialName(uid int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[uid]
	if !ok || !st.HasPartial {
		return "", false
	}
	name := st.PartialName
	st.PartialName = ""
	st.HasPartial = false
	return name, true
}

// Reset returns the user to Idle with editing off and nothing pending.
func (s *Store) Reset(uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, uid)
}

// Len reports how many users currently have state.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
