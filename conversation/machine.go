package conversation

import (
	"strings"
	"time"
)

type ActionKind int

const (
	ActionAskNext ActionKind = iota
	ActionBeginFreeChat
	ActionContinue
	ActionEmergencyEscalate
)

func (k ActionKind) String() string {
	switch k {
	case ActionAskNext:
		return "askNext"
	case ActionBeginFreeChat:
		return "beginFreeChat"
	case ActionContinue:
		return "continue"
	case ActionEmergencyEscalate:
		return "emergencyEscalate"
	}
	return "unknown"
}

func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Action is what a turn does after the machine has advanced the session.
type Action struct {
	Kind ActionKind
	// Question is set for ActionAskNext.
	Question string
}

// Machine walks sessions through their topic's intake script.
type Machine struct {
	scripts Scripts
}

func NewMachine(scripts Scripts) *Machine {
	return &Machine{scripts: scripts}
}

func (m *Machine) Scripts() Scripts {
	return m.scripts
}

func (m *Machine) NewSession(id string, topic Topic, now time.Time) *Session {
	return NewSession(id, topic, m.scripts.Len(topic), now)
}

// Advance records msg against the session and decides the turn's action.
// A blank message changes nothing and reports false.
func (m *Machine) Advance(s *Session, msg string) (Action, bool) {
	if strings.TrimSpace(msg) == "" {
		return Action{}, false
	}

	script := m.scripts[s.Topic]
	if len(script) == 0 {
		return Action{Kind: ActionEmergencyEscalate}, true
	}

	if s.Mode == ModeFreeChat {
		return Action{Kind: ActionContinue}, true
	}

	i := s.QuestionIndex
	if i > 0 {
		s.Answers.Set(script[i-1], msg)
	}
	if i < len(script) {
		s.QuestionIndex = i + 1
		return Action{Kind: ActionAskNext, Question: script[i]}, true
	}

	s.Mode = ModeFreeChat
	s.QuestionIndex = 0
	return Action{Kind: ActionBeginFreeChat}, true
}
