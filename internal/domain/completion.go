package domain

import "context"

// Role is the speaker of a chat message.
type Role string

const (
	// RoleUser is a human turn.
	RoleUser Role = "user"
	// RoleAssistant is a model turn.
	RoleAssistant Role = "assistant"
)

// Message is one turn sent to the completion service.
type Message struct {
	Role Role
	Text string
}

// Completer is the text-in/text-out contract of the language model.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message, temperature float32) (string, error)
}

// UserTurn builds a single-message conversation.
func UserTurn(text string) []Message {
	return []Message{{Role: RoleUser, Text: text}}
}
