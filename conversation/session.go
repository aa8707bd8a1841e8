package conversation

import (
	"encoding/json"
	"slices"
	"time"
)

// HistoryLimit bounds the rolling history: five user/assistant exchanges.
const HistoryLimit = 10

type Mode string

const (
	ModeQuestioning Mode = "questioning"
	ModeFreeChat    Mode = "freeChat"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Answers is an insertion-ordered question to answer mapping.
type Answers struct {
	items []Answer
}

// Set records an answer. Re-answering a question keeps its original position.
func (a *Answers) Set(question, answer string) {
	for i := range a.items {
		if a.items[i].Question == question {
			a.items[i].Answer = answer
			return
		}
	}
	a.items = append(a.items, Answer{Question: question, Answer: answer})
}

func (a Answers) Get(question string) (string, bool) {
	for _, item := range a.items {
		if item.Question == question {
			return item.Answer, true
		}
	}
	return "", false
}

func (a Answers) All() []Answer {
	return slices.Clone(a.items)
}

func (a Answers) Len() int {
	return len(a.items)
}

func (a Answers) MarshalJSON() ([]byte, error) {
	if a.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.items)
}

type Session struct {
	ID               string    `json:"conversationId"`
	Topic            Topic     `json:"topic"`
	Mode             Mode      `json:"mode"`
	QuestionIndex    int       `json:"questionIndex"`
	Answers          Answers   `json:"answers"`
	History          []Message `json:"history"`
	EmergencyFlagged bool      `json:"emergencyFlagged"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewSession starts a conversation. Topics without intake questions begin in free chat.
func NewSession(id string, topic Topic, scriptLen int, now time.Time) *Session {
	mode := ModeQuestioning
	if scriptLen == 0 {
		mode = ModeFreeChat
	}
	return &Session{
		ID:        id,
		Topic:     topic,
		Mode:      mode,
		History:   []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy that shares nothing mutable with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Answers = Answers{items: slices.Clone(s.Answers.items)}
	c.History = slices.Clone(s.History)
	if c.History == nil {
		c.History = []Message{}
	}
	return &c
}

func (s *Session) appendExchange(user, assistant string) {
	s.History = append(s.History,
		Message{Role: RoleUser, Text: user},
		Message{Role: RoleAssistant, Text: assistant},
	)
	if over := len(s.History) - HistoryLimit; over > 0 {
		s.History = slices.Clone(s.History[over:])
	}
}

// flagEmergency sets the emergency flag. It is never cleared.
func (s *Session) flagEmergency() {
	s.EmergencyFlagged = true
}
