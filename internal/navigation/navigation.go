package navigation

import "sync"

// RootScreen is the screen every operator starts at and falls back to.
const RootScreen = "main:menu"

// State is one operator's menu position. The history never contains the
// current screen; the root screen has empty history.
type State struct {
	Current      string
	History      []string
	Data         string // transient screen data, cleared on back/reset
	TerminalMode bool
}

// Stack tracks per-operator navigation state. States are created lazily on
// first interaction and live for the process lifetime.
type Stack struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewStack() *Stack {
	return &Stack{states: make(map[string]*State)}
}

func (s *Stack) state(operator string) *State {
	st, ok := s.states[operator]
	if !ok {
		st = &State{Current: RootScreen}
		s.states[operator] = st
	}
	return st
}

// Navigate moves the operator to screen, pushing the previous screen onto
// history when it differs. Navigating to the current screen only refreshes
// its data.
func (s *Stack) Navigate(operator, screen, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(operator)
	if screen != st.Current {
		st.History = append(st.History, st.Current)
		st.Current = screen
	}
	st.Data = data
}

// GoBack pops the history and returns the screen to render. With empty
// history it resets to the root screen. Transient data is cleared.
func (s *Stack) GoBack(operator string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(operator)
	st.Data = ""
	if len(st.History) == 0 {
		st.Current = RootScreen
		return RootScreen
	}
	last := len(st.History) - 1
	st.Current = st.History[last]
	st.History = st.History[:last]
	return st.Current
}

// Reset returns the operator to the root screen with empty history.
func (s *Stack) Reset(operator string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(operator)
	st.Current = RootScreen
	st.History = nil
	st.Data = ""
}

// Current returns the operator's current screen and its transient data.
func (s *Stack) Current(operator string) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(operator)
	return st.Current, st.Data
}

// SetTerminalMode toggles free-form terminal input for the operator. While
// active, plain-text input bypasses the menu system entirely.
func (s *Stack) SetTerminalMode(operator string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(operator).TerminalMode = active
}

// TerminalModeActive reports whether the operator is in terminal mode.
func (s *Stack) TerminalModeActive(operator string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(operator).TerminalMode
}
