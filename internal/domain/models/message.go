package models

import (
	"time"
)

// Message roles. System messages are also used for synthetic summary
// messages injected by context inheritance.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single turn of dialogue inside a card. Messages are
// immutable once created and appended to the card's ordered content list.
type Message struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// MessageMetadata carries optional per-message annotations. IsSummary marks
// the synthetic system message produced by summary-mode inheritance.
type MessageMetadata struct {
	IsSummary            bool `json:"is_summary,omitempty"`
	OriginalMessageCount int  `json:"original_message_count,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Metadata != nil {
		meta := *m.Metadata
		out.Metadata = &meta
	}
	return out
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
