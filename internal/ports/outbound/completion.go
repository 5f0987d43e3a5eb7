// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import "context"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Media is a binary part of a message, referenced by URL. Inline images use
// data URIs.
type Media struct {
	URL         string
	ContentType string
}

// Message is one turn of a completion conversation.
type Message struct {
	Role  Role
	Text  string
	Media []Media
}

// OutputSchema describes the structured result the model must produce.
// Document is a JSON Schema.
type OutputSchema struct {
	Name        string
	Description string
	Document    map[string]any
}

// CompletionRequest is a single call to the completion service.
type CompletionRequest struct {
	// Name identifies the prompt in logs and metrics.
	Name     string
	System   string
	Messages []Message
	Schema   OutputSchema
}

// CompletionService produces a structured result (JSON text) for a prompt.
// It does not validate the result against the schema.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
